package model

import (
	"fmt"
	"sort"
)

// Address is an opaque device or host memory address handed out by a memory manager.
type Address uintptr

// NilAddress is the zero address.
const NilAddress Address = 0

// MemoryType classifies what a tensor is used for.
type MemoryType int

// Memory type constants.
const (
	MemoryAll MemoryType = iota
	MemoryInOut
	MemoryWeight
	MemoryWorkspace
)

var memoryTypeNames = map[MemoryType]string{
	MemoryAll:       "all",
	MemoryInOut:     "inout",
	MemoryWeight:    "weight",
	MemoryWorkspace: "workspace",
}

func (t MemoryType) String() string {
	if s, ok := memoryTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the type by name.
func (t MemoryType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a name written by MarshalText.
func (t *MemoryType) UnmarshalText(b []byte) error {
	for k, name := range memoryTypeNames {
		if name == string(b) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown memory type %q", b)
}

// DataStatus is where the data of a tensor currently lives.
type DataStatus int

// Data status constants.
const (
	// StatusNone means no memory is allocated for the tensor.
	StatusNone DataStatus = iota
	// StatusEmpty means device memory is allocated but holds no data yet.
	StatusEmpty
	// StatusDevice means the data lives in device memory only.
	StatusDevice
	// StatusHost means the data lives in host memory only.
	StatusHost
	// StatusCoexist means the data lives in both device and host memory.
	StatusCoexist
	// StatusSwapIn means the data is being moved host -> device.
	StatusSwapIn
	// StatusSwapOut means the data is being moved device -> host.
	StatusSwapOut
)

var dataStatusNames = map[DataStatus]string{
	StatusNone:    "none",
	StatusEmpty:   "empty",
	StatusDevice:  "device",
	StatusHost:    "host",
	StatusCoexist: "coexist",
	StatusSwapIn:  "swapin",
	StatusSwapOut: "swapout",
}

func (s DataStatus) String() string {
	if name, ok := dataStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s DataStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a name written by MarshalText.
func (s *DataStatus) UnmarshalText(b []byte) error {
	for k, name := range dataStatusNames {
		if name == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown data status %q", b)
}

// OnDevice reports whether the data is usable from device memory.
func (s DataStatus) OnDevice() bool {
	return s == StatusEmpty || s == StatusDevice || s == StatusCoexist
}

// TensorStatus is the memory status of one tensor of an operator.
type TensorStatus struct {
	Name          string     `json:"name"`
	Size          uint64     `json:"size"`
	Type          MemoryType `json:"type"`
	Status        DataStatus `json:"status"`
	HostAddress   Address    `json:"-"`
	DeviceAddress Address    `json:"-"`
}

// NewTensorStatus creates a tensor status with no memory allocated.
func NewTensorStatus(name string, size uint64, typ MemoryType) *TensorStatus {
	return &TensorStatus{Name: name, Size: size, Type: typ, Status: StatusNone}
}

// OperatorStatus is the memory status of an operator (a node of the
// computation graph) and its tensors.
type OperatorStatus struct {
	Name    string                   `json:"name"`
	Prevs   []string                 `json:"prevs"`
	Posts   []string                 `json:"posts"`
	Tensors map[string]*TensorStatus `json:"tensors"`
}

// NewOperatorStatus creates an operator status. Tensors are keyed by name.
func NewOperatorStatus(name string, prevs, posts []string, tensors ...*TensorStatus) OperatorStatus {
	op := OperatorStatus{
		Name:    name,
		Prevs:   append([]string(nil), prevs...),
		Posts:   append([]string(nil), posts...),
		Tensors: make(map[string]*TensorStatus, len(tensors)),
	}
	for _, t := range tensors {
		cp := *t
		op.Tensors[t.Name] = &cp
	}
	return op
}

// Clone returns a deep copy of the operator status.
func (o OperatorStatus) Clone() OperatorStatus {
	cp := OperatorStatus{
		Name:    o.Name,
		Prevs:   append([]string(nil), o.Prevs...),
		Posts:   append([]string(nil), o.Posts...),
		Tensors: make(map[string]*TensorStatus, len(o.Tensors)),
	}
	for name, t := range o.Tensors {
		tc := *t
		cp.Tensors[name] = &tc
	}
	return cp
}

// TensorNames returns the tensor names of the operator in sorted order.
func (o OperatorStatus) TensorNames() []string {
	names := make([]string, 0, len(o.Tensors))
	for name := range o.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the total size of all tensors of the operator.
func (o OperatorStatus) Size() uint64 {
	var total uint64
	for _, t := range o.Tensors {
		total += t.Size
	}
	return total
}
