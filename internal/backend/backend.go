package backend

import (
	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/model"
)

// Engine is the interface every memory swapping engine implements, whether
// it is compiled in or loaded from a plugin. Engines own deduplication and
// validation of operators; the handle only forwards.
type Engine interface {
	Init() error
	RegisterOperator(op model.OperatorStatus) error
	SubmitEvent(ev model.MemoryEvent) error
	// ScheduleEvents returns the schedule events the engine has produced.
	// Callers poll; the engine never pushes.
	ScheduleEvents() ([]model.ScheduleEvent, error)
	UnregisterOperator(name string) error
	Terminate() error
}

// Iterator is implemented by engines that track training iterations.
type Iterator interface {
	Iteration() int
	IncreaseIteration() (int, error)
}

// Entry constructs one engine from the resolved settings. A non-nil error or
// a nil engine means construction failed.
type Entry func(s *config.Settings) (Engine, error)

// EntrySymbol is the name a plugin must export its Entry under, either as a
// function or as a variable of type Entry.
const EntrySymbol = "BackendEntry"
