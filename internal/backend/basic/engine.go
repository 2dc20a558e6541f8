// Package basic is the reference memory swapping engine. It records every
// memory event, keeps its own operator bookkeeping and asks a named scheduler
// for the schedule events the frontend pulls.
package basic

import (
	"context"
	"fmt"

	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/scheduler"
	"github.com/seantiz/mori/internal/status"
	"github.com/seantiz/mori/internal/store"
)

// Name is the name the engine registers under when compiled in.
const Name = "basic"

const component = "basic engine"

// Compile-time interface satisfaction checks.
var (
	_ backend.Engine   = (*Engine)(nil)
	_ backend.Iterator = (*Engine)(nil)
)

// Engine implements backend.Engine.
type Engine struct {
	cfg       Config
	scheduler scheduler.Scheduler
	events    store.Store
	operators *status.Table
	state     lifecycle.State
	iteration int
}

// New creates a basic engine from settings. The scheduler key must name a
// registered scheduler.
func New(s *config.Settings) (*Engine, error) {
	cfg := LoadConfig(s)

	sched, err := scheduler.New(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	events, err := store.NewSQLiteStore(cfg.EventsDSN)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		scheduler: sched,
		events:    events,
		operators: status.NewTable(),
		state:     lifecycle.Constructed,
	}, nil
}

// Entry is the construction entry point of the basic engine.
func Entry(s *config.Settings) (backend.Engine, error) {
	e, err := New(s)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) require(op string) error {
	return lifecycle.Require(component, op, e.state, lifecycle.Initialized)
}

// Init initializes the scheduler.
func (e *Engine) Init() error {
	if e.state != lifecycle.Constructed {
		return lifecycle.Require(component, "init", e.state, lifecycle.Constructed)
	}
	if err := e.scheduler.Init(); err != nil {
		return fmt.Errorf("init scheduler %s: %w", e.scheduler.Name(), err)
	}
	e.state = lifecycle.Initialized
	return nil
}

// RegisterOperator records an operator. Names must be unique.
func (e *Engine) RegisterOperator(op model.OperatorStatus) error {
	if err := e.require("register operator"); err != nil {
		return err
	}
	if err := e.operators.Register(op); err != nil {
		return err
	}
	e.scheduler.RegisterOperator(op)
	operatorsRegistered.Inc()
	return nil
}

// UnregisterOperator forgets an operator.
func (e *Engine) UnregisterOperator(name string) error {
	if err := e.require("unregister operator"); err != nil {
		return err
	}
	if err := e.operators.Unregister(name); err != nil {
		return err
	}
	e.scheduler.UnregisterOperator(name)
	operatorsRegistered.Dec()
	return nil
}

// Operators returns the registered operator names in registration order.
func (e *Engine) Operators() []string {
	return e.operators.Order()
}

// SubmitEvent records the event under the current iteration and hands it to
// the scheduler.
func (e *Engine) SubmitEvent(ev model.MemoryEvent) error {
	if err := e.require("submit event"); err != nil {
		return err
	}
	if err := e.events.RecordEvent(context.Background(), e.iteration, ev); err != nil {
		return err
	}
	eventsTotal.WithLabelValues(ev.Type.String()).Inc()
	return e.scheduler.SubmitEvent(ev)
}

// ScheduleEvents returns the scheduler's current plan.
func (e *Engine) ScheduleEvents() ([]model.ScheduleEvent, error) {
	return e.scheduler.ScheduleEvents(), nil
}

// Iteration returns the current training iteration.
func (e *Engine) Iteration() int {
	return e.iteration
}

// IncreaseIteration closes the current iteration and lets the scheduler plan
// the next one.
func (e *Engine) IncreaseIteration() (int, error) {
	if err := e.require("increase iteration"); err != nil {
		return e.iteration, err
	}

	stats, err := e.events.Stats(context.Background(), e.iteration)
	if err != nil {
		return e.iteration, err
	}
	lastIterationEvents.Reset()
	for typ, n := range stats.CountByType {
		lastIterationEvents.WithLabelValues(typ).Set(float64(n))
	}

	e.iteration++
	if err := e.scheduler.IncreaseIteration(); err != nil {
		return e.iteration, err
	}
	return e.iteration, nil
}

// Events returns the event store.
func (e *Engine) Events() store.Store {
	return e.events
}

// Terminate terminates the scheduler. Terminating an engine that is not
// initialized does nothing.
func (e *Engine) Terminate() error {
	if e.state != lifecycle.Initialized {
		return nil
	}
	e.state = lifecycle.Terminated
	return e.scheduler.Terminate()
}

// Close releases the event store.
func (e *Engine) Close() error {
	operatorsRegistered.Sub(float64(e.operators.Len()))
	return e.events.Close()
}
