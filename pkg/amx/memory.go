package amx

import (
	"errors"
	"fmt"
)

var (
	// ErrMemAccess is returned (or panicked with, from Pointer) when a VM
	// address does not resolve to a cell of the data segment.
	ErrMemAccess = errors.New("amx: invalid memory access")
	// ErrNotFound is returned when a native is not present in a table.
	ErrNotFound = errors.New("amx: native not found")
	// ErrNative is returned when a native cannot be registered.
	ErrNative = errors.New("amx: native registration failed")
)

// Memory is the data segment of a running script. Addresses are byte offsets
// and must be cell aligned.
type Memory interface {
	LoadCell(addr Cell) (Cell, bool)
	StoreCell(addr Cell, v Cell) bool
	Size() int
}

// Pointer is a host-side view of one cell inside VM memory, the equivalent of
// the cell pointer amx_GetAddr hands out. Reads and writes go straight to the
// script's memory.
type Pointer struct {
	mem  Memory
	addr Cell
}

// NewPointer validates addr against mem and returns a pointer to it.
func NewPointer(mem Memory, addr Cell) (Pointer, error) {
	if mem == nil || addr < 0 || addr%CellSize != 0 || int(addr)+CellSize > mem.Size() {
		return Pointer{}, fmt.Errorf("%w: address %#x", ErrMemAccess, int32(addr))
	}
	return Pointer{mem: mem, addr: addr}, nil
}

// Addr returns the VM address the pointer refers to.
func (p Pointer) Addr() Cell {
	return p.addr
}

// IsNil reports whether the pointer was never resolved.
func (p Pointer) IsNil() bool {
	return p.mem == nil
}

// Load reads the cell the pointer refers to.
func (p Pointer) Load() Cell {
	return p.At(0)
}

// Store writes the cell the pointer refers to.
func (p Pointer) Store(v Cell) {
	p.SetAt(0, v)
}

// At reads the i-th cell after the pointer, as p[i] would in C.
func (p Pointer) At(i int) Cell {
	if p.mem == nil {
		panic(fmt.Errorf("%w: nil pointer", ErrMemAccess))
	}
	addr := p.addr + Cell(i*CellSize)
	v, ok := p.mem.LoadCell(addr)
	if !ok {
		panic(fmt.Errorf("%w: read at %#x", ErrMemAccess, int32(addr)))
	}
	return v
}

// SetAt writes the i-th cell after the pointer.
func (p Pointer) SetAt(i int, v Cell) {
	if p.mem == nil {
		panic(fmt.Errorf("%w: nil pointer", ErrMemAccess))
	}
	addr := p.addr + Cell(i*CellSize)
	if !p.mem.StoreCell(addr, v) {
		panic(fmt.Errorf("%w: write at %#x", ErrMemAccess, int32(addr)))
	}
}

// Add returns a pointer n cells further into memory.
func (p Pointer) Add(n int) Pointer {
	return Pointer{mem: p.mem, addr: p.addr + Cell(n*CellSize)}
}
