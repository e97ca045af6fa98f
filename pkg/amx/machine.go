// machine.go implements an in-memory abstract machine: a little-endian data
// segment with a bump heap and a table of natives addressed by name.
package amx

import (
	"encoding/binary"
	"fmt"
)

// Machine is a minimal AMX environment. It owns a data segment and a native
// table and can invoke natives with a stack slice, exactly like a script's
// SYSREQ would. It is single threaded like the real machine.
type Machine struct {
	mem  []byte
	hea  Cell
	slot map[string]*Native
	// order keeps registration order so listings are stable.
	order []string
}

var (
	_ AMX         = (*Machine)(nil)
	_ NativeTable = (*Machine)(nil)
	_ Memory      = (*Machine)(nil)
)

// NewMachine creates a machine with a data segment of the given number of
// cells. The first cell is reserved so that address 0 is never handed out.
func NewMachine(cells int) *Machine {
	if cells < 1 {
		cells = 1
	}
	return &Machine{
		mem:  make([]byte, cells*CellSize),
		hea:  CellSize,
		slot: make(map[string]*Native),
	}
}

// Size returns the size of the data segment in bytes.
func (m *Machine) Size() int {
	return len(m.mem)
}

// LoadCell reads the cell at a VM address.
func (m *Machine) LoadCell(addr Cell) (Cell, bool) {
	if addr < 0 || addr%CellSize != 0 || int(addr)+CellSize > len(m.mem) {
		return 0, false
	}
	return Cell(binary.LittleEndian.Uint32(m.mem[addr:])), true
}

// StoreCell writes the cell at a VM address.
func (m *Machine) StoreCell(addr Cell, v Cell) bool {
	if addr < 0 || addr%CellSize != 0 || int(addr)+CellSize > len(m.mem) {
		return false
	}
	binary.LittleEndian.PutUint32(m.mem[addr:], uint32(v))
	return true
}

// GetAddr implements AMX.
func (m *Machine) GetAddr(addr Cell) (Pointer, error) {
	return NewPointer(m, addr)
}

// Load reads one cell, reporting bad addresses as errors.
func (m *Machine) Load(addr Cell) (Cell, error) {
	v, ok := m.LoadCell(addr)
	if !ok {
		return 0, fmt.Errorf("%w: read at %#x", ErrMemAccess, int32(addr))
	}
	return v, nil
}

// Store writes one cell, reporting bad addresses as errors.
func (m *Machine) Store(addr Cell, v Cell) error {
	if !m.StoreCell(addr, v) {
		return fmt.Errorf("%w: write at %#x", ErrMemAccess, int32(addr))
	}
	return nil
}

// Alloc reserves n zeroed cells on the heap and returns their VM address.
func (m *Machine) Alloc(n int) (Cell, error) {
	if n < 1 {
		n = 1
	}
	need := n * CellSize
	if int(m.hea)+need > len(m.mem) {
		return 0, fmt.Errorf("amx: heap exhausted (%d cells requested, %d bytes free)", n, len(m.mem)-int(m.hea))
	}
	addr := m.hea
	clear(m.mem[addr : int(addr)+need])
	m.hea += Cell(need)
	return addr, nil
}

// AllocArray copies values into freshly allocated cells.
func (m *Machine) AllocArray(values ...Cell) (Cell, error) {
	addr, err := m.Alloc(len(values))
	if err != nil {
		return 0, err
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(m.mem[int(addr)+i*CellSize:], uint32(v))
	}
	return addr, nil
}

// AllocString stores s unpacked in a buffer of size cells, or just big enough
// for s and its terminator when size is smaller than that.
func (m *Machine) AllocString(s string, size int) (Cell, error) {
	if size < len(s)+1 {
		size = len(s) + 1
	}
	addr, err := m.Alloc(size)
	if err != nil {
		return 0, err
	}
	p, err := m.GetAddr(addr)
	if err != nil {
		return 0, err
	}
	SetString(p, s, false, size)
	return addr, nil
}

// AllocPackedString stores s packed.
func (m *Machine) AllocPackedString(s string) (Cell, error) {
	size := len(s)/CellSize + 1
	addr, err := m.Alloc(size)
	if err != nil {
		return 0, err
	}
	p, err := m.GetAddr(addr)
	if err != nil {
		return 0, err
	}
	SetString(p, s, true, size)
	return addr, nil
}

// ReadString reads the string stored at addr in either encoding.
func (m *Machine) ReadString(addr Cell) (string, error) {
	p, err := m.GetAddr(addr)
	if err != nil {
		return "", err
	}
	return GetString(p, StrLen(p)+1), nil
}

// Define installs a native the machine already provides, the way a server
// exposes its own functions before any plugin loads.
func (m *Machine) Define(name string, fn Native) {
	if s, ok := m.slot[name]; ok {
		*s = fn
		return
	}
	s := new(Native)
	*s = fn
	m.slot[name] = s
	m.order = append(m.order, name)
}

// Register implements AMX. Registering a name again rebinds the existing slot.
func (m *Machine) Register(natives []NativeInfo) error {
	for _, n := range natives {
		if n.Name == "" || n.Func == nil {
			return fmt.Errorf("%w: empty entry", ErrNative)
		}
	}
	for _, n := range natives {
		m.Define(n.Name, n.Func)
	}
	return nil
}

// FindNative implements NativeTable.
func (m *Machine) FindNative(name string) *Native {
	return m.slot[name]
}

// Natives lists the names in the table in the order they first appeared.
func (m *Machine) Natives() []string {
	return append([]string(nil), m.order...)
}

// Invoke calls a native by name with the given arguments, building the stack
// slice header from the argument count.
func (m *Machine) Invoke(name string, args ...Cell) (Cell, error) {
	s := m.slot[name]
	if s == nil || *s == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	params := make([]Cell, 0, len(args)+1)
	params = append(params, Header(len(args)))
	params = append(params, args...)
	return (*s)(m, params), nil
}
