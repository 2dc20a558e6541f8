package scheduler

import (
	"sort"

	"github.com/seantiz/mori/internal/model"
)

// Built-in scheduler names.
const (
	FIFO       = "fifo"
	Dependency = "dependency"
	MaxSize    = "maxsize"
	RWAware    = "rwaware"
)

func init() {
	Register(FIFO, func() Scheduler { return newBase(FIFO, planNothing) })
	Register(Dependency, func() Scheduler { return newBase(Dependency, planSwaps) })
	Register(MaxSize, func() Scheduler { return newBase(MaxSize, planLargest) })
	Register(RWAware, func() Scheduler { return newBase(RWAware, planReadAware) })
}

// planNothing leaves all swapping to the on-demand path taken when an
// allocation fails.
func planNothing([]candidate) []model.ScheduleEvent {
	return nil
}

// planSwaps swaps every idle tensor out right after it is produced and back
// in one step before it is read.
func planSwaps(cands []candidate) []model.ScheduleEvent {
	events := make([]model.ScheduleEvent, 0, 2*len(cands))
	for _, c := range cands {
		events = append(events,
			model.ScheduleEvent{Operator: c.op, Tensor: c.tensor, Type: model.ScheduleSwapOut, Interval: c.written + 1},
			model.ScheduleEvent{Operator: c.op, Tensor: c.tensor, Type: model.ScheduleSwapIn, Interval: c.read - 1},
		)
	}
	return events
}

// planLargest only swaps the largest idle tensor. Ties keep trace order.
func planLargest(cands []candidate) []model.ScheduleEvent {
	if len(cands) == 0 {
		return nil
	}
	sorted := append([]candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].size > sorted[j].size
	})
	return planSwaps(sorted[:1])
}

// planReadAware skips tensors produced by a read-modify-write access and
// keeps a host copy of the rest: copy out and free the device copy after the
// write, copy back in before the read.
func planReadAware(cands []candidate) []model.ScheduleEvent {
	var events []model.ScheduleEvent
	for _, c := range cands {
		if c.accessed {
			continue
		}
		events = append(events,
			model.ScheduleEvent{Operator: c.op, Tensor: c.tensor, Type: model.ScheduleCopyOut, Interval: c.written + 1},
			model.ScheduleEvent{Operator: c.op, Tensor: c.tensor, Type: model.ScheduleFreeDevice, Interval: c.written + 1},
			model.ScheduleEvent{Operator: c.op, Tensor: c.tensor, Type: model.ScheduleCopyIn, Interval: c.read - 1},
		)
	}
	return events
}
