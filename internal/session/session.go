// Package session tracks the memory lifecycle of a training iteration. The
// training loop reports allocations and data accesses here; the session keeps
// the status table current and emits a memory event per call through the
// observed backend handle.
package session

import (
	"errors"
	"fmt"

	"github.com/seantiz/mori/internal/backend"
	"github.com/seantiz/mori/internal/executor"
	"github.com/seantiz/mori/internal/lifecycle"
	"github.com/seantiz/mori/internal/logging"
	"github.com/seantiz/mori/internal/memory"
	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/status"
)

// ErrDataStatus is returned when a tensor is not in a data status that
// allows the requested operation.
var ErrDataStatus = errors.New("unexpected tensor data status")

// allocateAttempts is the number of allocations tried before the executor is
// asked to free device memory.
const allocateAttempts = 2

const component = "memory session"

// Publisher receives one line per emitted memory event, keyed by operator.
type Publisher interface {
	Publish(op, line string)
}

// Session is the training loop's view of the swapping subsystem. It is not
// safe for concurrent use.
type Session struct {
	state     lifecycle.State
	backend   *backend.Observer
	statuses  *status.Table
	executor  *executor.Executor
	manager   memory.Manager
	logger    logging.Logger
	publisher Publisher
}

// New creates an unattached session.
func New() *Session {
	return &Session{state: lifecycle.Constructed, logger: logging.Discard()}
}

func (s *Session) setup(op string) error {
	if s.state != lifecycle.Constructed {
		return lifecycle.Require(component, op, s.state, lifecycle.Constructed)
	}
	return nil
}

func (s *Session) ready(op string) error {
	return lifecycle.Require(component, op, s.state, lifecycle.Initialized)
}

// SetBackend sets the non-owning reference to the backend handle.
func (s *Session) SetBackend(o *backend.Observer) error {
	if err := s.setup("set backend"); err != nil {
		return err
	}
	s.backend = o
	return nil
}

// SetStatusTable sets the memory status table.
func (s *Session) SetStatusTable(t *status.Table) error {
	if err := s.setup("set status table"); err != nil {
		return err
	}
	s.statuses = t
	return nil
}

// SetExecutor sets the schedule executor.
func (s *Session) SetExecutor(e *executor.Executor) error {
	if err := s.setup("set executor"); err != nil {
		return err
	}
	s.executor = e
	return nil
}

// SetMemoryManager sets the memory manager. Its lifetime is the caller's
// responsibility.
func (s *Session) SetMemoryManager(m memory.Manager) error {
	if err := s.setup("set memory manager"); err != nil {
		return err
	}
	s.manager = m
	return nil
}

// SetPublisher sets where emitted events are published. It is optional.
func (s *Session) SetPublisher(p Publisher) error {
	if err := s.setup("set publisher"); err != nil {
		return err
	}
	s.publisher = p
	return nil
}

// SetLogger sets the logger.
func (s *Session) SetLogger(l logging.Logger) error {
	if err := s.setup("set logger"); err != nil {
		return err
	}
	s.logger = logging.OrDiscard(l)
	return nil
}

// Init checks the session is fully attached and initializes the executor.
func (s *Session) Init() error {
	if err := s.setup("init"); err != nil {
		return err
	}
	if _, err := s.backend.Get(); err != nil {
		return err
	}
	if s.statuses == nil || s.executor == nil || s.manager == nil {
		se := lifecycle.NewStateError(component, "init", s.state, lifecycle.ErrNotReady)
		se.Detail = "status table, executor and memory manager are required"
		return se
	}
	if err := s.executor.Init(); err != nil {
		return fmt.Errorf("init executor: %w", err)
	}
	s.state = lifecycle.Initialized
	return nil
}

// Initialized reports whether the session is usable.
func (s *Session) Initialized() bool { return s.state == lifecycle.Initialized }

func (s *Session) submit(op, tensor string, typ model.MemoryEventType) error {
	h, err := s.backend.Get()
	if err != nil {
		return err
	}
	ev := model.NewMemoryEvent(op, tensor, typ)
	if err := h.SubmitEvent(ev); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(op, ev.String())
	}
	return nil
}

// AllocateMemory allocates device memory for a tensor that has none. When
// allocation keeps failing the executor frees memory and one last attempt
// is made.
func (s *Session) AllocateMemory(op, tensor string) error {
	if err := s.ready("allocate memory"); err != nil {
		return err
	}
	ts, err := s.statuses.Tensor(op, tensor)
	if err != nil {
		return err
	}
	if ts.Status != model.StatusNone {
		return fmt.Errorf("allocate %s/%s in status %s: %w", op, tensor, ts.Status, ErrDataStatus)
	}

	addr, err := s.allocate(ts.Size)
	if err != nil {
		return fmt.Errorf("allocate %s/%s: %w", op, tensor, err)
	}

	err = s.statuses.Update(op, tensor, func(ts *model.TensorStatus) error {
		ts.DeviceAddress = addr
		ts.Status = model.StatusEmpty
		return nil
	})
	if err != nil {
		return err
	}
	return s.submit(op, tensor, model.EventAllocate)
}

func (s *Session) allocate(size uint64) (model.Address, error) {
	var err error
	for i := 0; i < allocateAttempts; i++ {
		var addr model.Address
		if addr, err = s.manager.Allocate(size); err == nil {
			return addr, nil
		}
	}
	if err := s.executor.WaitMemory(size); err != nil {
		return model.NilAddress, err
	}
	return s.manager.Allocate(size)
}

// check rejects tensors without device data and warns about tensors that
// are being moved.
func (s *Session) check(action, op string, ts *model.TensorStatus) error {
	switch ts.Status {
	case model.StatusNone, model.StatusHost:
		s.logger.Error(action+" tensor that does not exist or exists on host", "operator", op, "tensor", ts.Name)
		_ = s.logger.Flush()
		return fmt.Errorf("%s %s/%s in status %s: %w", action, op, ts.Name, ts.Status, ErrDataStatus)
	case model.StatusSwapIn, model.StatusSwapOut:
		s.logger.Warn(action+" tensor that is swapping", "operator", op, "tensor", ts.Name)
		_ = s.logger.Flush()
	}
	return nil
}

// SetMemoryDataAssigned records that the operator wrote the tensor.
func (s *Session) SetMemoryDataAssigned(op, tensor string) error {
	if err := s.ready("set memory data assigned"); err != nil {
		return err
	}
	err := s.statuses.Update(op, tensor, func(ts *model.TensorStatus) error {
		if err := s.check("assigning", op, ts); err != nil {
			return err
		}
		ts.Status = model.StatusDevice
		return nil
	})
	if err != nil {
		return err
	}
	return s.submit(op, tensor, model.EventWrite)
}

// SetMemoryDataAcquired records that the operator read the tensor.
func (s *Session) SetMemoryDataAcquired(op, tensor string) error {
	if err := s.ready("set memory data acquired"); err != nil {
		return err
	}
	err := s.statuses.Update(op, tensor, func(ts *model.TensorStatus) error {
		return s.check("acquiring", op, ts)
	})
	if err != nil {
		return err
	}
	return s.submit(op, tensor, model.EventRead)
}

// SetMemoryDataAccessed records that the operator read and wrote the tensor.
func (s *Session) SetMemoryDataAccessed(op, tensor string) error {
	if err := s.ready("set memory data accessed"); err != nil {
		return err
	}
	err := s.statuses.Update(op, tensor, func(ts *model.TensorStatus) error {
		if err := s.check("accessing", op, ts); err != nil {
			return err
		}
		ts.Status = model.StatusDevice
		return nil
	})
	if err != nil {
		return err
	}
	return s.submit(op, tensor, model.EventAccess)
}

// FreeMemory releases every copy of the tensor.
func (s *Session) FreeMemory(op, tensor string) error {
	if err := s.ready("free memory"); err != nil {
		return err
	}
	err := s.statuses.Update(op, tensor, func(ts *model.TensorStatus) error {
		switch ts.Status {
		case model.StatusEmpty, model.StatusDevice:
			if err := s.manager.FreeDevice(ts.DeviceAddress); err != nil {
				return err
			}
		case model.StatusHost:
			if err := s.manager.FreeHost(ts.HostAddress); err != nil {
				return err
			}
		case model.StatusCoexist:
			if err := s.manager.FreeDevice(ts.DeviceAddress); err != nil {
				return err
			}
			if err := s.manager.FreeHost(ts.HostAddress); err != nil {
				return err
			}
		default:
			return fmt.Errorf("free %s/%s in status %s: %w", op, tensor, ts.Status, ErrDataStatus)
		}
		ts.DeviceAddress = model.NilAddress
		ts.HostAddress = model.NilAddress
		ts.Status = model.StatusNone
		return nil
	})
	if err != nil {
		return err
	}
	return s.submit(op, tensor, model.EventFree)
}

// IsMemoryReady reports whether every tensor of the operator is usable from
// device memory.
func (s *Session) IsMemoryReady(op string) (bool, error) {
	if err := s.ready("is memory ready"); err != nil {
		return false, err
	}
	o, err := s.statuses.Operator(op)
	if err != nil {
		return false, err
	}
	for _, ts := range o.Tensors {
		if !ts.Status.OnDevice() {
			return false, nil
		}
	}
	return true, nil
}

// WithData swaps in any host-resident tensor of the operator, then calls fn.
// Tensors without memory or in the middle of a move are an error.
func (s *Session) WithData(op string, fn func() error) error {
	if err := s.ready("with data"); err != nil {
		return err
	}
	o, err := s.statuses.Operator(op)
	if err != nil {
		return err
	}

	for _, name := range o.TensorNames() {
		err := s.statuses.Update(op, name, func(ts *model.TensorStatus) error {
			switch ts.Status {
			case model.StatusEmpty, model.StatusDevice, model.StatusCoexist:
				return nil
			case model.StatusHost:
				ts.Status = model.StatusSwapIn
				addr, err := memory.SwapIn(s.manager, ts.HostAddress, ts.Size)
				if err != nil {
					ts.Status = model.StatusHost
					return err
				}
				ts.DeviceAddress = addr
				ts.HostAddress = model.NilAddress
				ts.Status = model.StatusDevice
				s.logger.Debug("tensor swapped in (memory access)", "operator", op, "tensor", name)
				_ = s.logger.Flush()
				return nil
			default:
				return fmt.Errorf("prepare %s/%s in status %s: %w", op, name, ts.Status, ErrDataStatus)
			}
		})
		if err != nil {
			return err
		}
	}
	return fn()
}

// WaitMemory asks the executor to free device memory.
func (s *Session) WaitMemory(size uint64) error {
	if err := s.ready("wait memory"); err != nil {
		return err
	}
	return s.executor.WaitMemory(size)
}

// NextOperator tells the executor the training loop moved to the next
// operator.
func (s *Session) NextOperator() error {
	if err := s.ready("next operator"); err != nil {
		return err
	}
	return s.executor.NextOperator()
}

// Iteration returns the backend's training iteration.
func (s *Session) Iteration() (int, error) {
	if err := s.ready("iteration"); err != nil {
		return 0, err
	}
	h, err := s.backend.Get()
	if err != nil {
		return 0, err
	}
	return h.Iteration()
}

// IncreaseIteration closes the current iteration on the backend and restarts
// schedule replay.
func (s *Session) IncreaseIteration() (int, error) {
	if err := s.ready("increase iteration"); err != nil {
		return 0, err
	}
	h, err := s.backend.Get()
	if err != nil {
		return 0, err
	}
	n, err := h.IncreaseIteration()
	if err != nil {
		return 0, err
	}
	if err := s.executor.NextIteration(); err != nil {
		return n, err
	}
	return n, nil
}

// Terminate terminates the executor and detaches the logger.
func (s *Session) Terminate() error {
	if err := s.ready("terminate"); err != nil {
		return err
	}
	s.state = lifecycle.Terminated
	s.logger = logging.Discard()
	return s.executor.Terminate()
}
