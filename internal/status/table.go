// Package status holds the memory status table: the per-operator, per-tensor
// record of where tensor data currently lives.
package status

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/seantiz/mori/internal/model"
)

var (
	// ErrAlreadyRegistered is returned when an operator name is registered twice.
	ErrAlreadyRegistered = errors.New("operator already registered")
	// ErrNotRegistered is returned for operators or tensors the table does not know.
	ErrNotRegistered = errors.New("operator not registered")
)

// Table is the memory status table. Operators are kept in registration
// order, which doubles as the execution order. It is safe for concurrent use
// so the debug API can read it while the training loop updates it.
type Table struct {
	mu        sync.RWMutex
	operators map[string]*model.OperatorStatus
	order     []string
}

// NewTable creates an empty status table.
func NewTable() *Table {
	return &Table{operators: make(map[string]*model.OperatorStatus)}
}

// Register adds an operator. The table stores its own copy.
func (t *Table) Register(op model.OperatorStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.operators[op.Name]; ok {
		return fmt.Errorf("register %q: %w", op.Name, ErrAlreadyRegistered)
	}
	cp := op.Clone()
	t.operators[op.Name] = &cp
	t.order = append(t.order, op.Name)
	return nil
}

// Unregister removes an operator and drops it from the execution order.
func (t *Table) Unregister(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.operators[name]; !ok {
		return fmt.Errorf("unregister %q: %w", name, ErrNotRegistered)
	}
	delete(t.operators, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// IsRegistered reports whether an operator is known.
func (t *Table) IsRegistered(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.operators[name]
	return ok
}

// Operator returns a copy of an operator's status.
func (t *Table) Operator(name string) (model.OperatorStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	op, ok := t.operators[name]
	if !ok {
		return model.OperatorStatus{}, fmt.Errorf("operator %q: %w", name, ErrNotRegistered)
	}
	return op.Clone(), nil
}

// Tensor returns a copy of one tensor's status.
func (t *Table) Tensor(op, tensor string) (model.TensorStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ts, err := t.lookup(op, tensor)
	if err != nil {
		return model.TensorStatus{}, err
	}
	return *ts, nil
}

// DataStatus returns where a tensor's data currently lives.
func (t *Table) DataStatus(op, tensor string) (model.DataStatus, error) {
	ts, err := t.Tensor(op, tensor)
	if err != nil {
		return model.StatusNone, err
	}
	return ts.Status, nil
}

// SetDataStatus records where a tensor's data lives.
func (t *Table) SetDataStatus(op, tensor string, s model.DataStatus) error {
	return t.Update(op, tensor, func(ts *model.TensorStatus) error {
		ts.Status = s
		return nil
	})
}

// Update runs fn with exclusive access to one tensor's status. Changes made by
// fn are kept even when it returns an error.
func (t *Table) Update(op, tensor string, fn func(*model.TensorStatus) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts, err := t.lookup(op, tensor)
	if err != nil {
		return err
	}
	return fn(ts)
}

func (t *Table) lookup(op, tensor string) (*model.TensorStatus, error) {
	o, ok := t.operators[op]
	if !ok {
		return nil, fmt.Errorf("operator %q: %w", op, ErrNotRegistered)
	}
	ts, ok := o.Tensors[tensor]
	if !ok {
		return nil, fmt.Errorf("tensor %q of operator %q: %w", tensor, op, ErrNotRegistered)
	}
	return ts, nil
}

// Order returns operator names in execution order.
func (t *Table) Order() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// Names returns operator names sorted alphabetically.
func (t *Table) Names() []string {
	names := t.Order()
	sort.Strings(names)
	return names
}

// Len returns the number of registered operators.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.operators)
}

// Snapshot returns copies of all operators in execution order.
func (t *Table) Snapshot() []model.OperatorStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.OperatorStatus, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.operators[name].Clone())
	}
	return out
}
