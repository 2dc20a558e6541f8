// Package executor applies schedule events to the memory status table
// through the memory manager. It runs synchronously on the caller's
// goroutine: due events are applied whenever the caller polls, moves to the
// next operator or starts a new iteration.
package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/logging"
	"github.com/seantiz/mori/internal/memory"
	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/status"
)

// Trigger names accepted by the scheduler.trigger_event key.
const (
	TriggerDependency = "dependency"
	TriggerTime       = "time"
)

// ErrInvalidTransition is returned when a schedule event cannot be applied
// to a tensor in its current data status.
var ErrInvalidTransition = errors.New("invalid data status transition")

const component = "executor"

// trigger decides the current execution interval.
type trigger interface {
	name() string
	interval() int
	reset()
	nextOperator()
}

// dependencyTrigger counts operators since the start of the iteration.
type dependencyTrigger struct {
	offset int
}

func (d *dependencyTrigger) name() string  { return TriggerDependency }
func (d *dependencyTrigger) interval() int { return d.offset }
func (d *dependencyTrigger) reset()        { d.offset = 0 }
func (d *dependencyTrigger) nextOperator() { d.offset++ }

// timeTrigger measures microseconds since the start of the iteration.
type timeTrigger struct {
	now   func() time.Time
	start time.Time
}

func (t *timeTrigger) name() string  { return TriggerTime }
func (t *timeTrigger) interval() int { return int(t.now().Sub(t.start).Microseconds()) }
func (t *timeTrigger) reset()        { t.start = t.now() }
func (t *timeTrigger) nextOperator() {}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock of a time-triggered executor.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if t, ok := e.trigger.(*timeTrigger); ok {
			t.now = now
		}
	}
}

// Executor replays schedule events during an iteration. It is not safe for
// concurrent use.
type Executor struct {
	trigger  trigger
	state    lifecycle.State
	manager  memory.Manager
	statuses *status.Table
	logger   logging.Logger

	events []model.ScheduleEvent
	pos    int
}

// New creates an executor whose trigger is chosen by the
// scheduler.trigger_event setting.
func New(s *config.Settings, opts ...Option) (*Executor, error) {
	kind, err := s.Get(config.KeyTriggerEvent)
	if err != nil {
		return nil, err
	}

	var trig trigger
	switch kind {
	case TriggerDependency:
		trig = &dependencyTrigger{}
	case TriggerTime:
		trig = &timeTrigger{now: time.Now}
	default:
		return nil, config.InvalidError(config.KeyTriggerEvent, fmt.Sprintf("unknown trigger %q", kind))
	}

	e := &Executor{
		trigger: trig,
		state:   lifecycle.Constructed,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Trigger returns the name of the executor's trigger.
func (e *Executor) Trigger() string { return e.trigger.name() }

func (e *Executor) setup(op string) error {
	if e.state != lifecycle.Constructed {
		return lifecycle.Require(component, op, e.state, lifecycle.Constructed)
	}
	return nil
}

// SetMemoryManager sets the manager used to move data.
func (e *Executor) SetMemoryManager(m memory.Manager) error {
	if err := e.setup("set memory manager"); err != nil {
		return err
	}
	e.manager = m
	return nil
}

// SetStatusTable sets the table schedule events are applied to.
func (e *Executor) SetStatusTable(t *status.Table) error {
	if err := e.setup("set status table"); err != nil {
		return err
	}
	e.statuses = t
	return nil
}

// SetLogger sets the logger. The executor does not own it.
func (e *Executor) SetLogger(l logging.Logger) error {
	if err := e.setup("set logger"); err != nil {
		return err
	}
	e.logger = logging.OrDiscard(l)
	return nil
}

// Init starts the first iteration. The memory manager and the status table
// must be set.
func (e *Executor) Init() error {
	if err := e.setup("init"); err != nil {
		return err
	}
	if e.manager == nil || e.statuses == nil {
		se := lifecycle.NewStateError(component, "init", e.state, lifecycle.ErrNotReady)
		se.Detail = "memory manager and status table are required"
		return se
	}
	e.trigger.reset()
	e.pos = 0
	e.state = lifecycle.Initialized
	e.logger.Debug("memory schedule executor initialized", "trigger", e.trigger.name())
	return nil
}

// Initialized reports whether Init has succeeded and Terminate has not run.
func (e *Executor) Initialized() bool { return e.state == lifecycle.Initialized }

// UpdateSchedule replaces the schedule. Events must be ordered by interval.
// Replay restarts from the first event; events already due are applied on
// the next poll.
func (e *Executor) UpdateSchedule(events []model.ScheduleEvent) {
	e.events = append([]model.ScheduleEvent(nil), events...)
	e.pos = 0
	e.logger.Debug("memory schedule executor received new schedule", "events", len(e.events))
}

// Schedule returns a copy of the current schedule.
func (e *Executor) Schedule() []model.ScheduleEvent {
	return append([]model.ScheduleEvent(nil), e.events...)
}

// Interval returns the current execution interval.
func (e *Executor) Interval() int { return e.trigger.interval() }

// Poll applies every schedule event that is due.
func (e *Executor) Poll() error {
	if err := lifecycle.Require(component, "poll", e.state, lifecycle.Initialized); err != nil {
		return err
	}
	current := e.trigger.interval()
	for e.pos < len(e.events) && e.events[e.pos].Interval <= current {
		ev := e.events[e.pos]
		e.pos++
		if err := e.apply(ev); err != nil {
			return fmt.Errorf("apply %s: %w", ev, err)
		}
		eventsApplied.WithLabelValues(ev.Type.String()).Inc()
	}
	return nil
}

// NextOperator advances to the next operator and applies due events.
func (e *Executor) NextOperator() error {
	if err := lifecycle.Require(component, "next operator", e.state, lifecycle.Initialized); err != nil {
		return err
	}
	e.trigger.nextOperator()
	e.logger.Debug("memory schedule executor moves to next operator", "interval", e.trigger.interval())
	return e.Poll()
}

// NextIteration restarts the schedule and applies due events.
func (e *Executor) NextIteration() error {
	if err := lifecycle.Require(component, "next iteration", e.state, lifecycle.Initialized); err != nil {
		return err
	}
	e.trigger.reset()
	e.pos = 0
	e.logger.Debug("memory schedule executor moves to next iteration")
	return e.Poll()
}

// WaitMemory frees device memory on demand by swapping out the first
// operator, in execution order, that still holds data on the device.
func (e *Executor) WaitMemory(size uint64) error {
	if err := lifecycle.Require(component, "wait memory", e.state, lifecycle.Initialized); err != nil {
		return err
	}
	e.logger.Debug("memory insufficient", "size", size)

	for _, op := range e.statuses.Order() {
		o, err := e.statuses.Operator(op)
		if err != nil {
			continue
		}
		var onDevice []string
		for _, name := range o.TensorNames() {
			if o.Tensors[name].Status.OnDevice() {
				onDevice = append(onDevice, name)
			}
		}
		if len(onDevice) == 0 {
			continue
		}

		for _, tensor := range onDevice {
			if err := e.evict(op, tensor); err != nil {
				return err
			}
			e.logger.Debug("tensor swapped out on demand", "operator", op, "tensor", tensor)
		}
		_ = e.logger.Flush()
		return nil
	}
	return nil
}

// Terminate stops the executor and drops the manager and logger.
func (e *Executor) Terminate() error {
	if err := lifecycle.Require(component, "terminate", e.state, lifecycle.Initialized); err != nil {
		return err
	}
	e.state = lifecycle.Terminated
	e.manager = nil
	e.logger = logging.Discard()
	return nil
}
