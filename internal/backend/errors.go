package backend

import "fmt"

// Cause distinguishes why a plugin failed to load.
type Cause int

// Plugin load causes.
const (
	// CauseOpen means the module file could not be opened.
	CauseOpen Cause = iota
	// CauseSymbol means the module does not export a usable BackendEntry.
	CauseSymbol
	// CauseEntry means BackendEntry ran and reported failure.
	CauseEntry
)

func (c Cause) String() string {
	switch c {
	case CauseOpen:
		return "open module"
	case CauseSymbol:
		return "lookup " + EntrySymbol
	case CauseEntry:
		return "enter " + EntrySymbol
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

// PluginLoadError is returned when a dylib engine cannot be produced.
type PluginLoadError struct {
	Path  string
	Cause Cause
	Err   error
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("load plugin %q: %s: %v", e.Path, e.Cause, e.Err)
}

func (e *PluginLoadError) Unwrap() error {
	return e.Err
}

// ConstructionError is returned when the compiled-in entry fails.
type ConstructionError struct {
	Name string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct integrated engine %q: %v", e.Name, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// OperationError wraps an engine failure unmodified.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
