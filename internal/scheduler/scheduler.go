// Package scheduler implements the memory schedulers an engine consults to
// decide when tensors are swapped. Schedulers watch the memory events of one
// training iteration and, at the iteration boundary, plan the schedule events
// the executor replays during the next iteration.
package scheduler

import (
	"sort"

	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/model"
)

// Scheduler decides which schedule events an engine publishes.
type Scheduler interface {
	// Name is the registry name of the scheduler.
	Name() string
	Init() error
	// Active reports whether the scheduler drives swapping on its own instead
	// of only responding to memory events. None of the built-in schedulers are.
	Active() bool
	RegisterOperator(op model.OperatorStatus)
	UnregisterOperator(name string)
	SubmitEvent(ev model.MemoryEvent) error
	// IncreaseIteration closes the current iteration and plans the next one.
	IncreaseIteration() error
	// ScheduleEvents returns the plan built at the last iteration boundary,
	// ordered by interval.
	ScheduleEvents() []model.ScheduleEvent
	Terminate() error
}

// candidate is a tensor that sits idle on the device between being produced
// and being consumed again.
type candidate struct {
	op, tensor string
	size       uint64
	written    int // step of the last write before the gap
	read       int // step of the next read after the gap
	// accessed is set when the producing event was a read-modify-write access.
	accessed bool
}

// planFunc turns the candidates of one iteration into schedule events.
type planFunc func(cands []candidate) []model.ScheduleEvent

// minGap is the minimum number of steps between a write and the next read for
// a tensor to be worth swapping: one step to move out and one to move back.
const minGap = 3

// base carries the bookkeeping every built-in scheduler shares.
type base struct {
	name   string
	plan   planFunc
	state  lifecycle.State
	sizes  map[string]map[string]uint64
	trace  []model.MemoryEvent
	events []model.ScheduleEvent
}

func newBase(name string, plan planFunc) *base {
	return &base{
		name:  name,
		plan:  plan,
		state: lifecycle.Constructed,
		sizes: make(map[string]map[string]uint64),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) Active() bool { return false }

func (b *base) Init() error {
	if b.state != lifecycle.Constructed {
		return lifecycle.Require("scheduler "+b.name, "init", b.state, lifecycle.Constructed)
	}
	b.state = lifecycle.Initialized
	return nil
}

func (b *base) RegisterOperator(op model.OperatorStatus) {
	sizes := make(map[string]uint64, len(op.Tensors))
	for name, t := range op.Tensors {
		sizes[name] = t.Size
	}
	b.sizes[op.Name] = sizes
}

func (b *base) UnregisterOperator(name string) {
	delete(b.sizes, name)
}

func (b *base) SubmitEvent(ev model.MemoryEvent) error {
	if err := lifecycle.Require("scheduler "+b.name, "submit event", b.state, lifecycle.Initialized); err != nil {
		return err
	}
	b.trace = append(b.trace, ev)
	return nil
}

func (b *base) IncreaseIteration() error {
	if err := lifecycle.Require("scheduler "+b.name, "increase iteration", b.state, lifecycle.Initialized); err != nil {
		return err
	}
	events := b.plan(b.candidates())
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Interval < events[j].Interval
	})
	b.events = events
	b.trace = b.trace[:0]
	return nil
}

func (b *base) ScheduleEvents() []model.ScheduleEvent {
	return append([]model.ScheduleEvent(nil), b.events...)
}

func (b *base) Terminate() error {
	if err := lifecycle.Require("scheduler "+b.name, "terminate", b.state, lifecycle.Initialized); err != nil {
		return err
	}
	b.state = lifecycle.Terminated
	return nil
}

// candidates walks the iteration trace. A step begins whenever the operator
// of an event differs from the previous event's, which matches how the
// dependency executor counts operators.
func (b *base) candidates() []candidate {
	type key struct{ op, tensor string }
	lastWrite := make(map[key]int)
	accessed := make(map[key]bool)
	var out []candidate

	step := -1
	prev := ""
	for _, ev := range b.trace {
		if ev.Operator != prev {
			step++
			prev = ev.Operator
		}
		k := key{ev.Operator, ev.Tensor}
		switch ev.Type {
		case model.EventWrite, model.EventAccess:
			lastWrite[k] = step
			accessed[k] = ev.Type == model.EventAccess
		case model.EventRead:
			w, ok := lastWrite[k]
			if !ok {
				continue
			}
			if step-w >= minGap {
				out = append(out, candidate{
					op:       ev.Operator,
					tensor:   ev.Tensor,
					size:     b.sizes[ev.Operator][ev.Tensor],
					written:  w,
					read:     step,
					accessed: accessed[k],
				})
			}
			delete(lastWrite, k)
		case model.EventFree:
			delete(lastWrite, k)
		}
	}
	return out
}
