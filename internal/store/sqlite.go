package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/mori/internal/model"

	_ "modernc.org/sqlite"
)

// DefaultDSN keeps the event store in memory for the lifetime of the engine.
const DefaultDSN = ":memory:"

const createEventsTable = `
CREATE TABLE IF NOT EXISTS memory_events (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    iteration  INTEGER NOT NULL,
    operator   TEXT NOT NULL,
    tensor     TEXT NOT NULL,
    type       TEXT NOT NULL,
    timestamp  INTEGER NOT NULL
)`

const createEventsIndex = `
CREATE INDEX IF NOT EXISTS memory_events_iteration ON memory_events (iteration)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dsn and creates the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createEventsTable, createEventsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create memory_events schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordEvent inserts a memory event under the given iteration.
func (s *SQLiteStore) RecordEvent(ctx context.Context, iteration int, ev model.MemoryEvent) error {
	id := ev.ID
	if id == "" {
		id = model.NewID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_events (id, iteration, operator, tensor, type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, iteration, ev.Operator, ev.Tensor, ev.Type.String(), ev.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert memory event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (model.MemoryEvent, int, error) {
	var (
		ev        model.MemoryEvent
		iteration int
		typ       string
		ts        int64
	)
	if err := r.Scan(&ev.ID, &iteration, &ev.Operator, &ev.Tensor, &typ, &ts); err != nil {
		return ev, 0, err
	}
	t, err := model.ParseMemoryEventType(typ)
	if err != nil {
		return ev, 0, err
	}
	ev.Type = t
	ev.Timestamp = time.Unix(0, ts)
	return ev, iteration, nil
}

// GetEvent retrieves an event and its iteration by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (model.MemoryEvent, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, iteration, operator, tensor, type, timestamp
		FROM memory_events WHERE id = ?`, id)
	ev, iteration, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MemoryEvent{}, 0, ErrNotFound
	}
	if err != nil {
		return model.MemoryEvent{}, 0, fmt.Errorf("get memory event: %w", err)
	}
	return ev, iteration, nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]model.MemoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memory events: %w", err)
	}
	defer rows.Close()

	var events []model.MemoryEvent
	for rows.Next() {
		ev, _, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory events: %w", err)
	}
	return events, nil
}

// Events returns the events of one iteration in submission order.
func (s *SQLiteStore) Events(ctx context.Context, iteration int) ([]model.MemoryEvent, error) {
	return s.queryEvents(ctx,
		`SELECT id, iteration, operator, tensor, type, timestamp
		FROM memory_events WHERE iteration = ? ORDER BY seq`, iteration)
}

// OperatorEvents returns every event of one operator in submission order.
func (s *SQLiteStore) OperatorEvents(ctx context.Context, op string) ([]model.MemoryEvent, error) {
	return s.queryEvents(ctx,
		`SELECT id, iteration, operator, tensor, type, timestamp
		FROM memory_events WHERE operator = ? ORDER BY seq`, op)
}

// Iterations returns the iterations that have recorded events, ascending.
func (s *SQLiteStore) Iterations(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT iteration FROM memory_events ORDER BY iteration")
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var it int
		if err := rows.Scan(&it); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return out, nil
}

// Stats returns aggregate counts for one iteration.
func (s *SQLiteStore) Stats(ctx context.Context, iteration int) (*EventStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &EventStats{
		Iteration:       iteration,
		CountByType:     make(map[string]int),
		CountByOperator: make(map[string]int),
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memory_events WHERE iteration = ?", iteration,
	).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count memory events: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"type", stats.CountByType},
		{"operator", stats.CountByOperator},
	}
	for _, g := range groups {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+g.column+", COUNT(*) FROM memory_events WHERE iteration = ? GROUP BY "+g.column,
			iteration)
		if err != nil {
			return nil, fmt.Errorf("count by %s: %w", g.column, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s count: %w", g.column, err)
			}
			g.into[key] = n
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate %s counts: %w", g.column, err)
		}
	}

	return stats, nil
}
