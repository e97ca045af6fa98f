package wasmhost

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

// Memory exposes the linear memory of a guest module as a script data
// segment. Script addresses are offsets into linear memory.
type Memory struct {
	mem api.Memory
}

var _ amx.Memory = (*Memory)(nil)

func NewMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

func (m *Memory) LoadCell(addr amx.Cell) (amx.Cell, bool) {
	if addr < 0 || addr%amx.CellSize != 0 {
		return 0, false
	}
	v, ok := m.mem.ReadUint32Le(uint32(addr))
	return amx.Cell(v), ok
}

func (m *Memory) StoreCell(addr amx.Cell, v amx.Cell) bool {
	if addr < 0 || addr%amx.CellSize != 0 {
		return false
	}
	return m.mem.WriteUint32Le(uint32(addr), uint32(v))
}

func (m *Memory) Size() int {
	return int(m.mem.Size())
}
