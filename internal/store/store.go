// Package store records the memory events an engine observes, keyed by the
// training iteration they were submitted in.
package store

import (
	"context"
	"errors"

	"github.com/seantiz/mori/internal/model"
)

// ErrNotFound is returned when a recorded event does not exist.
var ErrNotFound = errors.New("memory event not found")

// EventStats holds aggregate counts for one iteration.
type EventStats struct {
	Iteration       int            `json:"iteration"`
	Total           int            `json:"total"`
	CountByType     map[string]int `json:"count_by_type"`
	CountByOperator map[string]int `json:"count_by_operator"`
}

// Store defines the operations on recorded memory events.
type Store interface {
	RecordEvent(ctx context.Context, iteration int, ev model.MemoryEvent) error
	GetEvent(ctx context.Context, id string) (model.MemoryEvent, int, error)
	// Events returns the events of one iteration in submission order.
	Events(ctx context.Context, iteration int) ([]model.MemoryEvent, error)
	// OperatorEvents returns every event of one operator across iterations.
	OperatorEvents(ctx context.Context, op string) ([]model.MemoryEvent, error)
	Iterations(ctx context.Context) ([]int, error)
	Stats(ctx context.Context, iteration int) (*EventStats, error)
	Close() error
}
