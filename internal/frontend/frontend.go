package frontend

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/executor"
	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/logging"
	"github.com/seantiz/mori/internal/memory"
	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/session"
	"github.com/seantiz/mori/internal/status"
)

const component = "frontend"

// Option configures a Frontend.
type Option func(*options)

type options struct {
	opener   backend.Opener
	executor []executor.Option
}

// WithOpener sets how dylib backends are opened.
func WithOpener(o backend.Opener) Option {
	return func(opts *options) { opts.opener = o }
}

// WithExecutorOptions passes options to the schedule executor.
func WithExecutorOptions(eo ...executor.Option) Option {
	return func(opts *options) { opts.executor = append(opts.executor, eo...) }
}

// Frontend is the lifecycle coordinator. It is the single strong owner of
// the backend handle; the session only observes it. A Frontend is not safe
// for concurrent use and cannot be reinitialized once terminated.
type Frontend struct {
	id       string
	state    lifecycle.State
	handle   *backend.Handle
	manager  memory.Manager
	statuses *status.Table
	executor *executor.Executor
	session  *session.Session
	broker   *EventBroker
	logger   logging.Logger
}

// New resolves the backend handle from the path setting and wires the
// executor and session around it.
func New(s *config.Settings, opts ...Option) (*Frontend, error) {
	o := options{opener: backend.PluginOpener}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := backend.NewHandle(s, backend.WithOpener(o.opener))
	if err != nil {
		return nil, fmt.Errorf("resolve backend: %w", err)
	}

	exec, err := executor.New(s, o.executor...)
	if err != nil {
		_ = h.Release()
		return nil, fmt.Errorf("create executor: %w", err)
	}

	f := &Frontend{
		id:       model.NewID(),
		state:    lifecycle.Constructed,
		handle:   h,
		statuses: status.NewTable(),
		executor: exec,
		session:  session.New(),
		broker:   NewEventBroker(),
		logger:   logging.Discard(),
	}

	if err := f.wire(); err != nil {
		_ = h.Release()
		return nil, err
	}
	transitions.WithLabelValues(f.state.String()).Inc()
	return f, nil
}

func (f *Frontend) wire() error {
	if err := f.executor.SetStatusTable(f.statuses); err != nil {
		return err
	}
	if err := f.session.SetBackend(f.handle.Observe()); err != nil {
		return err
	}
	if err := f.session.SetStatusTable(f.statuses); err != nil {
		return err
	}
	if err := f.session.SetExecutor(f.executor); err != nil {
		return err
	}
	return f.session.SetPublisher(f.broker)
}

// ID returns the frontend's unique identifier.
func (f *Frontend) ID() string { return f.id }

// State returns the lifecycle state.
func (f *Frontend) State() lifecycle.State { return f.state }

// Statuses returns the memory status table.
func (f *Frontend) Statuses() *status.Table { return f.statuses }

// Broker returns the memory event broker.
func (f *Frontend) Broker() *EventBroker { return f.broker }

func (f *Frontend) transition(to lifecycle.State) {
	f.state = to
	transitions.WithLabelValues(to.String()).Inc()
}

// attachable fails once the frontend has been initialized or terminated.
func (f *Frontend) attachable(op string) error {
	if f.state == lifecycle.Initialized || f.state == lifecycle.Terminated {
		return lifecycle.Require(component, op, f.state, lifecycle.ManagerAttached)
	}
	return nil
}

// SetMemoryManager attaches the memory manager. The frontend does not own it
// and never checks its liveness.
func (f *Frontend) SetMemoryManager(m memory.Manager) error {
	if err := f.attachable("set memory manager"); err != nil {
		return err
	}
	if err := f.executor.SetMemoryManager(m); err != nil {
		return err
	}
	if err := f.session.SetMemoryManager(m); err != nil {
		return err
	}
	f.manager = m
	if f.state != lifecycle.ManagerAttached {
		f.transition(lifecycle.ManagerAttached)
	}
	return nil
}

// SetLogger sets the logger shared by the handle, executor and session. The
// frontend does not own it.
func (f *Frontend) SetLogger(l logging.Logger) error {
	if err := f.attachable("set logger"); err != nil {
		return err
	}
	l = logging.OrDiscard(l)
	if err := f.handle.SetLogger(l); err != nil {
		return err
	}
	if err := f.session.SetLogger(l); err != nil {
		return err
	}
	f.logger = l
	return nil
}

// Init initializes the backend and publishes its first schedule to the
// executor.
func (f *Frontend) Init() error {
	if err := f.attachable("init"); err != nil {
		return err
	}
	if f.handle == nil || f.manager == nil {
		se := lifecycle.NewStateError(component, "init", f.state, lifecycle.ErrNotReady)
		se.Detail = "backend handle and memory manager are required"
		return se
	}

	if err := f.handle.Initialize(); err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	if err := f.start(); err != nil {
		// Put the backend back so Init can be retried or Close can release it.
		if terr := f.handle.Terminate(); terr != nil {
			return multierror.Append(err, fmt.Errorf("terminate backend: %w", terr))
		}
		return err
	}

	f.transition(lifecycle.Initialized)
	f.logger.Info("frontend initialized", "id", f.id, "backend", f.handle.Kind().String(), "path", f.handle.Path())
	return nil
}

func (f *Frontend) start() error {
	if err := f.executor.SetLogger(f.logger); err != nil {
		return err
	}
	return f.publish()
}

func (f *Frontend) publish() error {
	events, err := f.handle.ScheduleEvents()
	if err != nil {
		return err
	}
	f.executor.UpdateSchedule(events)
	scheduleEvents.Set(float64(len(events)))
	return nil
}

func (f *Frontend) ready(op string) error {
	return lifecycle.Require(component, op, f.state, lifecycle.Initialized)
}

// RegisterOperator records the operator in the status table, then registers
// it with the backend. A backend failure leaves the table entry in place.
func (f *Frontend) RegisterOperator(op model.OperatorStatus) error {
	if err := f.ready("register operator"); err != nil {
		return err
	}
	if err := f.statuses.Register(op); err != nil {
		return err
	}
	f.broker.Reopen(op.Name)
	return f.handle.RegisterOperator(op)
}

// UnregisterOperator removes the operator from the status table, then from
// the backend. A backend failure does not restore the table entry.
func (f *Frontend) UnregisterOperator(name string) error {
	if err := f.ready("unregister operator"); err != nil {
		return err
	}
	if err := f.statuses.Unregister(name); err != nil {
		return err
	}
	f.broker.Close(name)
	return f.handle.UnregisterOperator(name)
}

// UpdateSchedule pulls the backend's schedule and republishes it to the
// executor.
func (f *Frontend) UpdateSchedule() error {
	if err := f.ready("update schedule"); err != nil {
		return err
	}
	return f.publish()
}

// Schedule returns the schedule currently replayed by the executor.
func (f *Frontend) Schedule() []model.ScheduleEvent { return f.executor.Schedule() }

// Session returns the memory session.
func (f *Frontend) Session() (*session.Session, error) {
	if err := f.ready("session"); err != nil {
		return nil, err
	}
	return f.session, nil
}

// BackendInfo describes the resolved backend.
type BackendInfo struct {
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	Initialized bool   `json:"initialized"`
}

// Backend describes the backend handle.
func (f *Frontend) Backend() (BackendInfo, error) {
	if f.handle == nil {
		return BackendInfo{}, lifecycle.NewStateError(component, "backend", f.state, lifecycle.ErrTerminated)
	}
	return BackendInfo{
		Kind:        f.handle.Kind().String(),
		Path:        f.handle.Path(),
		Initialized: f.handle.Initialized(),
	}, nil
}

// Terminate terminates the backend, then the session if it is still running,
// then releases the backend (engine before module). The manager and logger
// are dropped and every later lifecycle call fails.
func (f *Frontend) Terminate() error {
	if err := f.ready("terminate"); err != nil {
		return err
	}

	var result *multierror.Error
	if err := f.handle.Terminate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("terminate backend: %w", err))
	}
	if f.session.Initialized() {
		if err := f.session.Terminate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("terminate session: %w", err))
		}
	}
	if err := f.teardown(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Close tears the frontend down from any state. An initialized frontend is
// terminated; one that never finished Init releases its backend without
// terminating it. Closing a terminated frontend does nothing.
func (f *Frontend) Close() error {
	switch f.state {
	case lifecycle.Terminated:
		return nil
	case lifecycle.Initialized:
		return f.Terminate()
	default:
		return f.teardown()
	}
}

// teardown releases the backend and moves to Terminated.
func (f *Frontend) teardown() error {
	var err error
	if rerr := f.handle.Release(); rerr != nil {
		err = fmt.Errorf("release backend: %w", rerr)
	}

	f.logger.Info("frontend terminated", "id", f.id)
	_ = f.logger.Flush()

	f.handle = nil
	f.manager = nil
	f.logger = logging.Discard()
	f.broker.CloseAll()
	f.transition(lifecycle.Terminated)
	return err
}
