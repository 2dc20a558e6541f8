package backend

import (
	"errors"
	"fmt"
	"plugin"

	"github.com/seantiz/mori/internal/config"
)

// Module is an opened code module that exports symbols.
type Module interface {
	Lookup(symbol string) (any, error)
	Close() error
}

// Opener opens modules by file path.
type Opener interface {
	Open(path string) (Module, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Module, error)

// Open implements Opener.
func (f OpenerFunc) Open(path string) (Module, error) { return f(path) }

// PluginOpener opens Go plugins built with -buildmode=plugin.
var PluginOpener Opener = OpenerFunc(openPlugin)

type goPlugin struct {
	p *plugin.Plugin
}

func openPlugin(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &goPlugin{p: p}, nil
}

func (g *goPlugin) Lookup(symbol string) (any, error) {
	sym, err := g.p.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// Close drops the reference to the plugin. The Go runtime cannot unload a
// plugin, so the code stays mapped until the process exits.
func (g *goPlugin) Close() error {
	g.p = nil
	return nil
}

// entryFrom validates the type of an exported BackendEntry symbol.
func entryFrom(sym any) (Entry, error) {
	switch e := sym.(type) {
	case func(*config.Settings) (Engine, error):
		return e, nil
	case Entry:
		return e, nil
	case *Entry:
		if e == nil || *e == nil {
			return nil, errors.New("symbol is a nil Entry")
		}
		return *e, nil
	case *func(*config.Settings) (Engine, error):
		if e == nil || *e == nil {
			return nil, errors.New("symbol is a nil function")
		}
		return *e, nil
	default:
		return nil, fmt.Errorf("symbol has type %T, want %T", sym, Entry(nil))
	}
}

// loadDylib opens the module at path and produces an engine from its entry.
// The module is closed again on every failure.
func loadDylib(opener Opener, path string, s *config.Settings) (*instance, error) {
	mod, err := opener.Open(path)
	if err != nil {
		return nil, &PluginLoadError{Path: path, Cause: CauseOpen, Err: err}
	}

	fail := func(cause Cause, err error) (*instance, error) {
		if cerr := mod.Close(); cerr != nil {
			err = fmt.Errorf("%w (close module: %v)", err, cerr)
		}
		return nil, &PluginLoadError{Path: path, Cause: cause, Err: err}
	}

	sym, err := mod.Lookup(EntrySymbol)
	if err != nil {
		return fail(CauseSymbol, err)
	}
	entry, err := entryFrom(sym)
	if err != nil {
		return fail(CauseSymbol, err)
	}

	engine, err := entry(s)
	if err != nil {
		return fail(CauseEntry, err)
	}
	if engine == nil {
		return fail(CauseEntry, errors.New("entry returned no engine"))
	}
	return &instance{engine: engine, module: mod}, nil
}
