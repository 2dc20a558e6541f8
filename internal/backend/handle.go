package backend

import (
	"fmt"
	"io"
	"weak"

	"github.com/hashicorp/go-multierror"

	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/logging"
	"github.com/seantiz/mori/internal/model"
)

// Kind is how a handle obtained its engine. It is fixed at resolution time.
type Kind int

// Handle kinds.
const (
	KindIntegrated Kind = iota
	KindDylib
)

func (k Kind) String() string {
	switch k {
	case KindIntegrated:
		return "integrated"
	case KindDylib:
		return "dylib"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Scheme returns the path scheme that selects this kind.
func (k Kind) Scheme() string {
	if k == KindDylib {
		return SchemeDylib
	}
	return SchemeIntegrated
}

// instance pairs an engine with the module that produced it. release is the
// only teardown path and always destroys the engine before the module.
type instance struct {
	engine Engine
	module Module
}

func (in *instance) release() error {
	var result *multierror.Error
	if c, ok := in.engine.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close engine: %w", err))
		}
	}
	in.engine = nil

	if in.module != nil {
		if err := in.module.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close module: %w", err))
		}
		in.module = nil
	}
	return result.ErrorOrNil()
}

const component = "backend handle"

// Handle owns one engine and gives it a single ordered lifecycle. Initialize
// is idempotent; Terminate is not. A Handle is not safe for concurrent use.
type Handle struct {
	kind        Kind
	path        string
	initialized bool
	released    bool
	logger      logging.Logger
	inst        *instance
}

func newHandle(kind Kind, path string, inst *instance, logger logging.Logger) *Handle {
	handlesActive.Inc()
	return &Handle{
		kind:   kind,
		path:   path,
		inst:   inst,
		logger: logging.OrDiscard(logger),
	}
}

// Kind returns how the engine was obtained.
func (h *Handle) Kind() Kind { return h.kind }

// Path returns the module path for dylib handles and the engine name for
// integrated ones.
func (h *Handle) Path() string { return h.path }

// Initialized reports whether the engine has been initialized.
func (h *Handle) Initialized() bool { return h.initialized }

// Released reports whether the engine has been destroyed.
func (h *Handle) Released() bool { return h.released }

func (h *Handle) state() lifecycle.State {
	switch {
	case h.released:
		return lifecycle.Terminated
	case h.initialized:
		return lifecycle.Initialized
	default:
		return lifecycle.Constructed
	}
}

// live fails once the engine has been released.
func (h *Handle) live(op string) error {
	if h.released {
		return lifecycle.NewStateError(component, op, lifecycle.Terminated, lifecycle.ErrTerminated)
	}
	return nil
}

// SetLogger replaces the logger. The handle does not own it. Changing the
// logger of an initialized handle is a state error.
func (h *Handle) SetLogger(l logging.Logger) error {
	if h.initialized {
		return lifecycle.NewStateError(component, "set logger", h.state(), lifecycle.ErrAlreadyInitialized)
	}
	h.logger = logging.OrDiscard(l)
	return nil
}

// Initialize initializes the engine once. Further calls are no-ops.
func (h *Handle) Initialize() error {
	if err := h.live("initialize"); err != nil {
		return err
	}
	if h.initialized {
		return nil
	}
	if err := h.inst.engine.Init(); err != nil {
		return &OperationError{Op: "init", Err: err}
	}
	h.initialized = true
	return nil
}

// RegisterOperator forwards to the engine.
func (h *Handle) RegisterOperator(op model.OperatorStatus) error {
	if err := h.live("register operator"); err != nil {
		return err
	}
	if err := h.inst.engine.RegisterOperator(op); err != nil {
		return &OperationError{Op: "register operator", Err: err}
	}
	return nil
}

// UnregisterOperator forwards to the engine.
func (h *Handle) UnregisterOperator(name string) error {
	if err := h.live("unregister operator"); err != nil {
		return err
	}
	if err := h.inst.engine.UnregisterOperator(name); err != nil {
		return &OperationError{Op: "unregister operator", Err: err}
	}
	return nil
}

// SubmitEvent logs the event, flushes the logger and forwards synchronously.
func (h *Handle) SubmitEvent(ev model.MemoryEvent) error {
	if err := h.live("submit event"); err != nil {
		return err
	}
	h.logger.Info("submitting event", "event", ev.String())
	_ = h.logger.Flush()

	eventsSubmitted.WithLabelValues(ev.Type.String()).Inc()
	if err := h.inst.engine.SubmitEvent(ev); err != nil {
		return &OperationError{Op: "submit event", Err: err}
	}
	return nil
}

// ScheduleEvents pulls the engine's current schedule events.
func (h *Handle) ScheduleEvents() ([]model.ScheduleEvent, error) {
	if err := h.live("schedule events"); err != nil {
		return nil, err
	}
	events, err := h.inst.engine.ScheduleEvents()
	if err != nil {
		return nil, &OperationError{Op: "schedule events", Err: err}
	}
	return events, nil
}

// Iteration returns the engine's training iteration, or 0 when the engine
// does not track iterations.
func (h *Handle) Iteration() (int, error) {
	if err := h.live("iteration"); err != nil {
		return 0, err
	}
	if it, ok := h.inst.engine.(Iterator); ok {
		return it.Iteration(), nil
	}
	return 0, nil
}

// IncreaseIteration tells the engine a training iteration has finished.
func (h *Handle) IncreaseIteration() (int, error) {
	if err := h.live("increase iteration"); err != nil {
		return 0, err
	}
	it, ok := h.inst.engine.(Iterator)
	if !ok {
		return 0, nil
	}
	n, err := it.IncreaseIteration()
	if err != nil {
		return 0, &OperationError{Op: "increase iteration", Err: err}
	}
	return n, nil
}

// Terminate terminates the engine. It fails when the handle is not
// initialized, which includes a second Terminate.
func (h *Handle) Terminate() error {
	if err := h.live("terminate"); err != nil {
		return err
	}
	if !h.initialized {
		return lifecycle.NewStateError(component, "terminate", h.state(), lifecycle.ErrNotInitialized)
	}
	if err := h.inst.engine.Terminate(); err != nil {
		return &OperationError{Op: "terminate", Err: err}
	}
	h.initialized = false
	return nil
}

// Release destroys the engine, then closes its module. Every later call on
// the handle, and on its observers, fails. Releasing twice is a no-op.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	h.initialized = false
	handlesActive.Dec()

	err := h.inst.release()
	h.inst = nil
	return err
}

// Observe returns a non-owning reference to the handle.
func (h *Handle) Observe() *Observer {
	return &Observer{ref: weak.Make(h)}
}

// Observer is a non-owning reference to a Handle. It never keeps the handle
// alive and reports ErrUnavailable once the owner has released it.
type Observer struct {
	ref weak.Pointer[Handle]
}

// Get returns the observed handle if it is still available.
func (o *Observer) Get() (*Handle, error) {
	if o == nil {
		return nil, lifecycle.NewStateError("backend observer", "get", lifecycle.Constructed, lifecycle.ErrUnavailable)
	}
	h := o.ref.Value()
	if h == nil || h.released {
		return nil, lifecycle.NewStateError("backend observer", "get", lifecycle.Terminated, lifecycle.ErrUnavailable)
	}
	return h, nil
}
