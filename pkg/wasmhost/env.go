// Package wasmhost runs natives for a script compiled to WebAssembly.
//
// Every native becomes a host function of the "pawn" module with the
// signature (i32 params) -> i32, where params is the address of the stack
// slice in the guest's linear memory. The guest module's exported memory is
// the data segment natives read and write.
package wasmhost

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

// HostModule is the import module natives are exported from.
const HostModule = "pawn"

var (
	ErrStarted    = errors.New("wasmhost: environment already started")
	ErrNotStarted = errors.New("wasmhost: environment not started")
	ErrNoMemory   = errors.New("wasmhost: guest exports no memory")
)

// EmptyGuest is a guest module with one exported page of memory and no code.
// It lets the host drive natives against guest memory without a compiled
// script.
var EmptyGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// Env is a script environment backed by a wazero runtime.
type Env struct {
	log     zerolog.Logger
	runtime wazero.Runtime

	host  api.Module
	guest api.Module
	mem   *Memory
	heap  amx.Cell

	slots map[string]*amx.Native
	order []string
	funcs map[string]api.GoModuleFunc
}

var (
	_ amx.AMX         = (*Env)(nil)
	_ amx.NativeTable = (*Env)(nil)
)

// New creates an environment with its own wazero runtime.
func New(ctx context.Context, log zerolog.Logger) *Env {
	return &Env{
		log:     log,
		runtime: wazero.NewRuntime(ctx),
		slots:   make(map[string]*amx.Native),
		funcs:   make(map[string]api.GoModuleFunc),
	}
}

// Define adds a native the environment provides itself.
func (e *Env) Define(name string, fn amx.Native) error {
	if e.host != nil {
		return ErrStarted
	}
	if s, ok := e.slots[name]; ok {
		*s = fn
		return nil
	}
	s := new(amx.Native)
	*s = fn
	e.slots[name] = s
	e.order = append(e.order, name)
	return nil
}

// Register implements amx.AMX. Natives can only be added before Start.
func (e *Env) Register(natives []amx.NativeInfo) error {
	for _, n := range natives {
		if n.Name == "" || n.Func == nil {
			return fmt.Errorf("%w: empty entry", amx.ErrNative)
		}
	}
	for _, n := range natives {
		if err := e.Define(n.Name, n.Func); err != nil {
			return fmt.Errorf("%w: %s: %w", amx.ErrNative, n.Name, err)
		}
	}
	return nil
}

// FindNative implements amx.NativeTable.
func (e *Env) FindNative(name string) *amx.Native {
	return e.slots[name]
}

// Natives lists the known natives in the order they were added.
func (e *Env) Natives() []string {
	return append([]string(nil), e.order...)
}

// Start exports every native to the host module and instantiates the guest.
func (e *Env) Start(ctx context.Context, guest []byte) error {
	if e.host != nil {
		return ErrStarted
	}
	builder := e.runtime.NewHostModuleBuilder(HostModule)
	for _, name := range e.order {
		e.export(builder, name, e.slots[name])
	}
	host, err := builder.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("wasmhost: instantiate host module: %w", err)
	}
	mod, err := e.runtime.InstantiateWithConfig(ctx, guest, wazero.NewModuleConfig().WithName("script"))
	if err != nil {
		_ = host.Close(ctx)
		return fmt.Errorf("wasmhost: instantiate guest: %w", err)
	}
	if mod.Memory() == nil {
		_ = mod.Close(ctx)
		_ = host.Close(ctx)
		return ErrNoMemory
	}
	e.host, e.guest = host, mod
	e.mem = NewMemory(mod.Memory())
	e.heap = amx.CellSize
	e.log.Debug().Int("natives", len(e.order)).Uint32("memory", mod.Memory().Size()).Msg("Guest started")
	return nil
}

func (e *Env) export(b wazero.HostModuleBuilder, name string, slot *amx.Native) {
	fn := api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		params, err := e.stackSlice(amx.Cell(api.DecodeI32(stack[0])))
		if err != nil {
			e.log.Warn().Err(err).Str("native", name).Msg("Dropped native call")
			stack[0] = 0
			return
		}
		stack[0] = api.EncodeI32(int32((*slot)(e, params)))
	})
	e.funcs[name] = fn
	b.NewFunctionBuilder().
		WithGoModuleFunction(fn, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export(name)
}

// stackSlice copies the stack slice at addr out of guest memory.
func (e *Env) stackSlice(addr amx.Cell) ([]amx.Cell, error) {
	p, err := e.GetAddr(addr)
	if err != nil {
		return nil, err
	}
	words := amx.Words(p.Load())
	if words < 0 || int(addr)+(words+1)*amx.CellSize > e.mem.Size() {
		return nil, fmt.Errorf("%w: stack slice of %d words at %#x", amx.ErrMemAccess, words, int32(addr))
	}
	params := make([]amx.Cell, words+1)
	for i := range params {
		params[i] = p.At(i)
	}
	return params, nil
}

// GetAddr implements amx.AMX.
func (e *Env) GetAddr(addr amx.Cell) (amx.Pointer, error) {
	if e.mem == nil {
		return amx.Pointer{}, ErrNotStarted
	}
	return amx.NewPointer(e.mem, addr)
}

// Guest returns the started guest module, nil before Start.
func (e *Env) Guest() api.Module {
	return e.guest
}

// Memory returns the guest's memory, nil before Start.
func (e *Env) Memory() *Memory {
	return e.mem
}

// Alloc reserves n zeroed cells of guest memory for host use.
func (e *Env) Alloc(n int) (amx.Cell, error) {
	if e.mem == nil {
		return 0, ErrNotStarted
	}
	if n < 1 {
		n = 1
	}
	if int(e.heap)+n*amx.CellSize > e.mem.Size() {
		return 0, fmt.Errorf("wasmhost: guest memory exhausted (%d cells requested)", n)
	}
	addr := e.heap
	e.heap += amx.Cell(n * amx.CellSize)
	for i := range n {
		e.mem.StoreCell(addr+amx.Cell(i*amx.CellSize), 0)
	}
	return addr, nil
}

// AllocString stores s unpacked in a buffer of at least size cells.
func (e *Env) AllocString(s string, size int) (amx.Cell, error) {
	if size < len(s)+1 {
		size = len(s) + 1
	}
	addr, err := e.Alloc(size)
	if err != nil {
		return 0, err
	}
	p, _ := e.GetAddr(addr)
	amx.SetString(p, s, false, size)
	return addr, nil
}

// ReadString reads the string at addr in either encoding.
func (e *Env) ReadString(addr amx.Cell) (string, error) {
	p, err := e.GetAddr(addr)
	if err != nil {
		return "", err
	}
	return amx.GetString(p, amx.StrLen(p)+1), nil
}

// Invoke calls a native from the host through the function the host module
// exports for it, on behalf of the guest. The stack slice lives in guest
// memory for the duration of the call.
func (e *Env) Invoke(ctx context.Context, name string, args ...amx.Cell) (amx.Cell, error) {
	if e.guest == nil {
		return 0, ErrNotStarted
	}
	fn, ok := e.funcs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", amx.ErrNotFound, name)
	}
	top := e.heap
	defer func() {
		e.heap = top
	}()
	addr, err := e.Alloc(len(args) + 1)
	if err != nil {
		return 0, err
	}
	e.mem.StoreCell(addr, amx.Header(len(args)))
	for i, a := range args {
		e.mem.StoreCell(addr+amx.Cell((i+1)*amx.CellSize), a)
	}
	stack := []uint64{api.EncodeI32(int32(addr))}
	fn.Call(ctx, e.guest, stack)
	return amx.Cell(api.DecodeI32(stack[0])), nil
}

// Close releases the runtime and every module in it.
func (e *Env) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
