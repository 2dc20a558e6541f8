// Package memory defines the memory manager callback the swapping layer
// uses to move tensor data, plus a simulated manager for demos and tests.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/seantiz/mori/internal/model"
)

// ErrOutOfMemory is returned when a device allocation does not fit.
var ErrOutOfMemory = errors.New("device memory exhausted")

// ErrUnknownAddress is returned when freeing or copying an address the
// manager never handed out.
var ErrUnknownAddress = errors.New("unknown address")

// Manager is supplied by the embedding runtime. The swapping layer never owns
// it and never checks its liveness.
type Manager interface {
	// Allocate reserves size bytes of device memory.
	Allocate(size uint64) (model.Address, error)
	// CopyIn copies host data to newly allocated device memory.
	CopyIn(host model.Address, size uint64) (model.Address, error)
	// CopyOut copies device data to newly allocated host memory.
	CopyOut(device model.Address, size uint64) (model.Address, error)
	FreeDevice(device model.Address) error
	FreeHost(host model.Address) error
}

// SwapIn copies host data to the device and frees the host copy.
func SwapIn(m Manager, host model.Address, size uint64) (model.Address, error) {
	dev, err := m.CopyIn(host, size)
	if err != nil {
		return model.NilAddress, fmt.Errorf("swap in: %w", err)
	}
	if err := m.FreeHost(host); err != nil {
		return dev, fmt.Errorf("swap in: %w", err)
	}
	return dev, nil
}

// SwapOut copies device data to the host and frees the device copy.
func SwapOut(m Manager, device model.Address, size uint64) (model.Address, error) {
	host, err := m.CopyOut(device, size)
	if err != nil {
		return model.NilAddress, fmt.Errorf("swap out: %w", err)
	}
	if err := m.FreeDevice(device); err != nil {
		return host, fmt.Errorf("swap out: %w", err)
	}
	return host, nil
}

// Simulated is an in-process Manager with a fixed device capacity and an
// unbounded host. Addresses are synthetic.
type Simulated struct {
	mu       sync.Mutex
	capacity uint64
	used     uint64
	next     model.Address
	device   map[model.Address]uint64
	host     map[model.Address]uint64
}

// NewSimulated creates a simulated manager. A zero capacity means unlimited.
func NewSimulated(capacity uint64) *Simulated {
	return &Simulated{
		capacity: capacity,
		next:     0x1000,
		device:   make(map[model.Address]uint64),
		host:     make(map[model.Address]uint64),
	}
}

func (s *Simulated) addr() model.Address {
	a := s.next
	s.next += 0x1000
	return a
}

func (s *Simulated) allocDevice(size uint64) (model.Address, error) {
	if s.capacity > 0 && s.used+size > s.capacity {
		return model.NilAddress, fmt.Errorf("allocate %d bytes (%d/%d in use): %w", size, s.used, s.capacity, ErrOutOfMemory)
	}
	a := s.addr()
	s.device[a] = size
	s.used += size
	return a, nil
}

// Allocate implements Manager.
func (s *Simulated) Allocate(size uint64) (model.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocDevice(size)
}

// CopyIn implements Manager.
func (s *Simulated) CopyIn(host model.Address, size uint64) (model.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.host[host]; !ok {
		return model.NilAddress, fmt.Errorf("copy in from %#x: %w", uintptr(host), ErrUnknownAddress)
	}
	return s.allocDevice(size)
}

// CopyOut implements Manager.
func (s *Simulated) CopyOut(device model.Address, size uint64) (model.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.device[device]; !ok {
		return model.NilAddress, fmt.Errorf("copy out from %#x: %w", uintptr(device), ErrUnknownAddress)
	}
	a := s.addr()
	s.host[a] = size
	return a, nil
}

// FreeDevice implements Manager.
func (s *Simulated) FreeDevice(device model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.device[device]
	if !ok {
		return fmt.Errorf("free device %#x: %w", uintptr(device), ErrUnknownAddress)
	}
	delete(s.device, device)
	s.used -= size
	return nil
}

// FreeHost implements Manager.
func (s *Simulated) FreeHost(host model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.host[host]; !ok {
		return fmt.Errorf("free host %#x: %w", uintptr(host), ErrUnknownAddress)
	}
	delete(s.host, host)
	return nil
}

// DeviceUsed returns the number of device bytes currently allocated.
func (s *Simulated) DeviceUsed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// HostBlocks returns the number of live host allocations.
func (s *Simulated) HostBlocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.host)
}
