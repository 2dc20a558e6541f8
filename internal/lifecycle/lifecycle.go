// Package lifecycle defines the once-only lifecycle states shared by the
// frontend, the session and the backend handle, and the typed error returned
// when an operation is invoked outside its valid state.
package lifecycle

import (
	"errors"
	"fmt"
)

// State is a lifecycle state. States only move forward.
type State int

// Lifecycle states.
const (
	Constructed State = iota
	ManagerAttached
	Initialized
	Terminated
)

var stateNames = map[State]string{
	Constructed:     "constructed",
	ManagerAttached: "manager-attached",
	Initialized:     "initialized",
	Terminated:      "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sentinel causes carried by StateError.
var (
	// ErrNotInitialized is returned by operations that require an initialized component.
	ErrNotInitialized = errors.New("not initialized")
	// ErrAlreadyInitialized is returned by setup operations attempted after initialization.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrTerminated is returned by any operation on a terminated component.
	ErrTerminated = errors.New("terminated")
	// ErrNotReady is returned by Init when a required collaborator is missing.
	ErrNotReady = errors.New("required collaborator missing")
	// ErrUnavailable is returned through an observer whose owner released the observed value.
	ErrUnavailable = errors.New("no longer available")
)

// StateError reports an operation invoked outside its valid lifecycle state.
type StateError struct {
	// Component names the component the operation was invoked on.
	Component string
	// Op is the operation that failed.
	Op string
	// State is the component state at the time of the call.
	State State
	// Err is one of the sentinel causes above.
	Err error
	// Detail optionally names what was missing.
	Detail string
}

// NewStateError builds a StateError.
func NewStateError(component, op string, state State, cause error) *StateError {
	return &StateError{Component: component, Op: op, State: state, Err: cause}
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v (state %s)", e.Component, e.Op, e.Err, e.State)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// IsStateError reports whether err is, or wraps, a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// Require returns a StateError unless the current state is want. A terminated
// component always reports ErrTerminated, anything before want reports
// ErrNotInitialized and anything after reports ErrAlreadyInitialized.
func Require(component, op string, current, want State) error {
	switch {
	case current == want:
		return nil
	case current == Terminated:
		return NewStateError(component, op, current, ErrTerminated)
	case current < want:
		return NewStateError(component, op, current, ErrNotInitialized)
	default:
		return NewStateError(component, op, current, ErrAlreadyInitialized)
	}
}
