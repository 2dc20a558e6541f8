package model

import (
	"fmt"
	"time"
)

// MemoryEventType is the kind of memory access an operator performed.
type MemoryEventType int

// Memory event types.
const (
	EventAllocate MemoryEventType = iota
	EventWrite
	EventRead
	EventAccess
	EventFree
)

var memoryEventNames = map[MemoryEventType]string{
	EventAllocate: "allocate",
	EventWrite:    "write",
	EventRead:     "read",
	EventAccess:   "access",
	EventFree:     "free",
}

func (t MemoryEventType) String() string {
	if s, ok := memoryEventNames[t]; ok {
		return s
	}
	return "access"
}

// ParseMemoryEventType is the inverse of MemoryEventType.String.
func ParseMemoryEventType(s string) (MemoryEventType, error) {
	for t, name := range memoryEventNames {
		if name == s {
			return t, nil
		}
	}
	return EventAccess, fmt.Errorf("unknown memory event type %q", s)
}

// MemoryEvent records one memory access of an operator tensor.
type MemoryEvent struct {
	ID        string          `json:"id"`
	Operator  string          `json:"operator"`
	Tensor    string          `json:"tensor"`
	Type      MemoryEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMemoryEvent creates a memory event stamped with the current time.
func NewMemoryEvent(op, tensor string, typ MemoryEventType) MemoryEvent {
	return MemoryEvent{
		ID:        NewID(),
		Operator:  op,
		Tensor:    tensor,
		Type:      typ,
		Timestamp: time.Now(),
	}
}

// Before orders events by timestamp.
func (e MemoryEvent) Before(other MemoryEvent) bool {
	return e.Timestamp.Before(other.Timestamp)
}

func (e MemoryEvent) String() string {
	return fmt.Sprintf("Timestamp: %d operator: %s tensor: %s type: %s",
		e.Timestamp.UnixMilli(), e.Operator, e.Tensor, e.Type)
}

// ScheduleEventType is the memory operation a schedule event asks the executor to perform.
type ScheduleEventType int

// Schedule event types.
const (
	ScheduleAllocate ScheduleEventType = iota
	ScheduleCopyIn
	ScheduleCopyOut
	ScheduleSwapIn
	ScheduleSwapOut
	ScheduleFreeHost
	ScheduleFreeDevice
	ScheduleFree
)

var scheduleEventNames = map[ScheduleEventType]string{
	ScheduleAllocate:   "allocate",
	ScheduleCopyIn:     "copyin",
	ScheduleCopyOut:    "copyout",
	ScheduleSwapIn:     "swapin",
	ScheduleSwapOut:    "swapout",
	ScheduleFreeHost:   "freehost",
	ScheduleFreeDevice: "freedev",
	ScheduleFree:       "free",
}

func (t ScheduleEventType) String() string {
	if s, ok := scheduleEventNames[t]; ok {
		return s
	}
	return "unknown"
}

// ScheduleEvent is one scheduling decision produced by an engine. Interval is
// the execution interval (operator count or microseconds, depending on the
// executor trigger) at which the event becomes due.
type ScheduleEvent struct {
	Operator string            `json:"operator"`
	Tensor   string            `json:"tensor"`
	Type     ScheduleEventType `json:"type"`
	Interval int               `json:"interval"`
}

func (e ScheduleEvent) String() string {
	return fmt.Sprintf("operator: %s tensor: %s type: %s interval: %d",
		e.Operator, e.Tensor, e.Type, e.Interval)
}
