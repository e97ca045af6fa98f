package natives

import (
	"go.mau.fi/util/exerrors"

	"github.com/highesttt/pawn-natives/pkg/amx"
	"github.com/highesttt/pawn-natives/pkg/hook"
)

// Hook replaces a native the environment already provides. Calls through the
// native's slot reach the host function; a call made while the host
// function is still running goes to the original instead.
type Hook struct {
	name string
	reg  *Registry
	sig  *signature

	tramp     hook.Hook[amx.Native]
	recursing bool

	vm     amx.AMX
	params []amx.Cell
}

// NewHook declares a replacement for the native called name and adds it to
// r. The hook is installed by Registry.Load.
func NewHook(r *Registry, name string, fn any) (*Hook, error) {
	sig, err := newSignature(r, fn)
	if err != nil {
		return nil, &DeclError{Name: name, Err: err}
	}
	h := &Hook{name: name, reg: r, sig: sig}
	r.hooks = append(r.hooks, h)
	return h, nil
}

// MustHook is NewHook for package level declarations. It panics on error.
func MustHook(r *Registry, name string, fn any) *Hook {
	return exerrors.Must(NewHook(r, name, fn))
}

// Name returns the name of the hooked native.
func (h *Hook) Name() string { return h.name }

// Footprint returns the number of stack words a call must carry.
func (h *Hook) Footprint() int { return h.sig.size }

// Signature describes the parameters of the hook.
func (h *Hook) Signature() []Param { return h.sig.describe() }

// AMX returns the interpreter of the call in progress, nil outside a call.
func (h *Hook) AMX() amx.AMX { return h.vm }

// Params returns the stack slice of the call in progress, nil outside a call.
func (h *Hook) Params() []amx.Cell { return h.params }

// Installed reports whether calls through the native's slot reach the hook.
func (h *Hook) Installed() bool { return h.tramp.Installed() }

// Recursing reports whether the hook body is running, in which case calls
// to the native go to the original.
func (h *Hook) Recursing() bool { return h.recursing }

func (h *Hook) install(table amx.NativeTable) bool {
	slot := table.FindNative(h.name)
	if slot == nil || *slot == nil {
		return false
	}
	return h.tramp.Install(slot, h.entry)
}

// entry is what the patched slot points to.
func (h *Hook) entry(vm amx.AMX, params []amx.Cell) amx.Cell {
	if h.recursing {
		undo := hook.NewScopedRemove(&h.tramp)
		defer undo.Close()
		return h.tramp.Original()(vm, params)
	}
	h.recursing = true
	defer func() {
		h.recursing = false
	}()
	return h.call(vm, params)
}

func (h *Hook) call(vm amx.AMX, params []amx.Cell) amx.Cell {
	if vm == nil || params == nil {
		return 0
	}
	prevVM, prevParams := h.vm, h.params
	h.vm, h.params = vm, params
	defer func() {
		h.vm, h.params = prevVM, prevParams
	}()
	return h.reg.guard(h.name, func() (amx.Cell, error) {
		return h.sig.dispatch(&frame{vm: vm, params: params, reg: h.reg})
	})
}

// Invoke calls the hooked native from host code, going through the same
// recursion check as a call from a script.
func (h *Hook) Invoke(vm amx.AMX, args ...amx.Cell) amx.Cell {
	return h.entry(vm, stackSlice(args))
}

// Original takes the hook out until the returned ScopedCall is closed, so
// the original native can be called deliberately:
//
//	orig := h.Original()
//	defer orig.Close()
//	ret := orig.Call(vm, params)
func (h *Hook) Original() *ScopedCall {
	return &ScopedCall{
		undo:     hook.NewScopedRemove(&h.tramp),
		original: h.tramp.Original(),
	}
}

// ScopedCall calls the original of a hooked native while the hook is out.
type ScopedCall struct {
	undo     *hook.ScopedRemove[amx.Native]
	original amx.Native
}

// Call runs the original native. It returns 0 when the hook never found an
// original to replace.
func (sc *ScopedCall) Call(vm amx.AMX, params []amx.Cell) amx.Cell {
	if sc.original == nil {
		return 0
	}
	return sc.original(vm, params)
}

// Invoke runs the original native with the given argument words.
func (sc *ScopedCall) Invoke(vm amx.AMX, args ...amx.Cell) amx.Cell {
	return sc.Call(vm, stackSlice(args))
}

// Close reinstalls the hook if this ScopedCall removed it.
func (sc *ScopedCall) Close() {
	sc.undo.Close()
}
