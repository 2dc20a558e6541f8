package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/seantiz/mori/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *SQLiteStore, iteration int, op, tensor string, typ model.MemoryEventType) model.MemoryEvent {
	t.Helper()
	ev := model.NewMemoryEvent(op, tensor, typ)
	if err := s.RecordEvent(context.Background(), iteration, ev); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	return ev
}

func TestRecordAndGetEvent(t *testing.T) {
	s := newTestStore(t)
	ev := record(t, s, 2, "o1", "t", model.EventWrite)

	got, iteration, err := s.GetEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if iteration != 2 {
		t.Errorf("iteration = %d, want 2", iteration)
	}
	if got.Operator != "o1" || got.Tensor != "t" {
		t.Errorf("event = %s/%s, want o1/t", got.Operator, got.Tensor)
	}
	if got.Type != model.EventWrite {
		t.Errorf("Type = %v, want %v", got.Type, model.EventWrite)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ev.Timestamp)
	}
}

func TestGetEventNotFound(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.GetEvent(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEvent error = %v, want ErrNotFound", err)
	}
}

func TestEventsByIteration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record(t, s, 0, "o1", "t", model.EventAllocate)
	record(t, s, 0, "o1", "t", model.EventWrite)
	record(t, s, 1, "o1", "t", model.EventAllocate)
	record(t, s, 0, "o1", "t", model.EventFree)

	events, err := s.Events(ctx, 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	want := []model.MemoryEventType{model.EventAllocate, model.EventWrite, model.EventFree}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("events[%d].Type = %v, want %v", i, ev.Type, want[i])
		}
	}

	iterations, err := s.Iterations(ctx)
	if err != nil {
		t.Fatalf("Iterations: %v", err)
	}
	if len(iterations) != 2 || iterations[0] != 0 || iterations[1] != 1 {
		t.Errorf("Iterations = %v, want [0 1]", iterations)
	}
}

func TestEventsEmpty(t *testing.T) {
	s := newTestStore(t)

	events, err := s.Events(context.Background(), 7)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
}

func TestOperatorEvents(t *testing.T) {
	s := newTestStore(t)

	record(t, s, 0, "o1", "t", model.EventWrite)
	record(t, s, 0, "o2", "t", model.EventWrite)
	record(t, s, 1, "o1", "t", model.EventRead)

	events, err := s.OperatorEvents(context.Background(), "o1")
	if err != nil {
		t.Fatalf("OperatorEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[1].Type != model.EventRead {
		t.Errorf("events[1].Type = %v, want read", events[1].Type)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)

	record(t, s, 0, "o1", "t", model.EventAllocate)
	record(t, s, 0, "o1", "t", model.EventWrite)
	record(t, s, 0, "o2", "t", model.EventAllocate)
	record(t, s, 1, "o2", "t", model.EventAllocate)

	stats, err := s.Stats(context.Background(), 0)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.CountByType["allocate"] != 2 {
		t.Errorf("CountByType[allocate] = %d, want 2", stats.CountByType["allocate"])
	}
	if stats.CountByOperator["o1"] != 2 {
		t.Errorf("CountByOperator[o1] = %d, want 2", stats.CountByOperator["o1"])
	}
}

func TestFileDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	record(t, s, 0, "o1", "t", model.EventRead)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.Events(context.Background(), 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
}
