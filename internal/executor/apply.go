package executor

import (
	"fmt"

	"github.com/seantiz/mori/internal/model"
)

func (e *Executor) apply(ev model.ScheduleEvent) error {
	switch ev.Type {
	case model.ScheduleAllocate:
		return e.update(ev, e.allocate)
	case model.ScheduleCopyIn:
		return e.update(ev, e.copyIn)
	case model.ScheduleCopyOut:
		return e.update(ev, e.copyOut)
	case model.ScheduleSwapIn:
		err := e.update(ev, e.swapIn)
		if err == nil {
			e.logger.Debug("tensor swapped in (prefetch)", "operator", ev.Operator, "tensor", ev.Tensor)
			_ = e.logger.Flush()
		}
		return err
	case model.ScheduleSwapOut:
		err := e.update(ev, e.swapOut)
		if err == nil {
			e.logger.Debug("tensor swapped out (instant)", "operator", ev.Operator, "tensor", ev.Tensor)
			_ = e.logger.Flush()
		}
		return err
	case model.ScheduleFreeHost:
		return e.update(ev, e.freeHost)
	case model.ScheduleFreeDevice:
		return e.update(ev, e.freeDevice)
	case model.ScheduleFree:
		return e.update(ev, e.free)
	default:
		return nil
	}
}

func (e *Executor) update(ev model.ScheduleEvent, fn func(*model.TensorStatus) error) error {
	return e.statuses.Update(ev.Operator, ev.Tensor, fn)
}

// evict moves one tensor off the device. Empty tensors hold no data, so their
// device memory is simply freed.
func (e *Executor) evict(op, tensor string) error {
	return e.statuses.Update(op, tensor, func(ts *model.TensorStatus) error {
		if ts.Status == model.StatusEmpty {
			return e.freeDevice(ts)
		}
		return e.swapOut(ts)
	})
}

func invalid(ts *model.TensorStatus, action string) error {
	return fmt.Errorf("%s tensor %q in status %s: %w", action, ts.Name, ts.Status, ErrInvalidTransition)
}

func (e *Executor) allocate(ts *model.TensorStatus) error {
	switch ts.Status {
	case model.StatusNone:
		addr, err := e.manager.Allocate(ts.Size)
		if err != nil {
			return err
		}
		ts.DeviceAddress = addr
		ts.Status = model.StatusEmpty
		return nil
	case model.StatusSwapIn, model.StatusSwapOut:
		return invalid(ts, "allocate")
	default:
		return nil
	}
}

func (e *Executor) copyIn(ts *model.TensorStatus) error {
	switch ts.Status {
	case model.StatusHost:
		addr, err := e.manager.CopyIn(ts.HostAddress, ts.Size)
		if err != nil {
			return err
		}
		ts.DeviceAddress = addr
		ts.Status = model.StatusCoexist
		return nil
	case model.StatusDevice, model.StatusCoexist:
		return nil
	default:
		return invalid(ts, "copy in")
	}
}

func (e *Executor) copyOut(ts *model.TensorStatus) error {
	switch ts.Status {
	case model.StatusDevice:
		addr, err := e.manager.CopyOut(ts.DeviceAddress, ts.Size)
		if err != nil {
			return err
		}
		ts.HostAddress = addr
		ts.Status = model.StatusCoexist
		return nil
	case model.StatusHost, model.StatusCoexist:
		return nil
	default:
		return invalid(ts, "copy out")
	}
}

func (e *Executor) freeDevice(ts *model.TensorStatus) error {
	switch ts.Status {
	case model.StatusEmpty, model.StatusDevice:
		if err := e.manager.FreeDevice(ts.DeviceAddress); err != nil {
			return err
		}
		ts.DeviceAddress = model.NilAddress
		ts.Status = model.StatusNone
		return nil
	case model.StatusCoexist:
		if err := e.manager.FreeDevice(ts.DeviceAddress); err != nil {
			return err
		}
		ts.DeviceAddress = model.NilAddress
		ts.Status = model.StatusHost
		return nil
	case model.StatusSwapIn, model.StatusSwapOut:
		return invalid(ts, "free device memory of")
	default:
		return nil
	}
}

func (e *Executor) freeHost(ts *model.TensorStatus) error {
	switch ts.Status {
	case model.StatusHost:
		if err := e.manager.FreeHost(ts.HostAddress); err != nil {
			return err
		}
		ts.HostAddress = model.NilAddress
		ts.Status = model.StatusNone
		return nil
	case model.StatusCoexist:
		if err := e.manager.FreeHost(ts.HostAddress); err != nil {
			return err
		}
		ts.HostAddress = model.NilAddress
		ts.Status = model.StatusDevice
		return nil
	case model.StatusSwapIn, model.StatusSwapOut:
		return invalid(ts, "free host memory of")
	default:
		return nil
	}
}

func (e *Executor) swapIn(ts *model.TensorStatus) error {
	if err := e.copyIn(ts); err != nil {
		return err
	}
	return e.freeHost(ts)
}

func (e *Executor) swapOut(ts *model.TensorStatus) error {
	if err := e.copyOut(ts); err != nil {
		return err
	}
	return e.freeDevice(ts)
}

// free releases both copies of the tensor.
func (e *Executor) free(ts *model.TensorStatus) error {
	if ts.Status == model.StatusCoexist {
		if err := e.freeHost(ts); err != nil {
			return err
		}
	}
	if ts.Status == model.StatusHost {
		return e.freeHost(ts)
	}
	return e.freeDevice(ts)
}
