package natives

import (
	"errors"
	"runtime"

	"go.mau.fi/util/exerrors"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

// Func exposes a host function to scripts as a native.
//
// The parameters of the host function decide how the stack slice is read;
// see Kind for the supported shapes. A trailing error result is how the host
// function reports failure. Without a result the native returns 1.
type Func struct {
	name string
	reg  *Registry
	sig  *signature

	vm     amx.AMX
	params []amx.Cell
}

// NewFunc declares a native called name backed by fn and adds it to r. It
// fails if fn has a parameter or result shape with no cast.
func NewFunc(r *Registry, name string, fn any) (*Func, error) {
	sig, err := newSignature(r, fn)
	if err != nil {
		return nil, &DeclError{Name: name, Err: err}
	}
	f := &Func{name: name, reg: r, sig: sig}
	r.funcs = append(r.funcs, f)
	return f, nil
}

// MustFunc is NewFunc for package level declarations. It panics on error.
func MustFunc(r *Registry, name string, fn any) *Func {
	return exerrors.Must(NewFunc(r, name, fn))
}

// Name returns the name scripts call the native by.
func (f *Func) Name() string { return f.name }

// Footprint returns the number of stack words a call must carry.
func (f *Func) Footprint() int { return f.sig.size }

// Signature describes the parameters of the native.
func (f *Func) Signature() []Param { return f.sig.describe() }

// AMX returns the interpreter of the call in progress, nil outside a call.
func (f *Func) AMX() amx.AMX { return f.vm }

// Params returns the stack slice of the call in progress, nil outside a call.
func (f *Func) Params() []amx.Cell { return f.params }

// Native returns the entry point registered with the VM.
func (f *Func) Native() amx.Native { return f.Call }

// Call is the entry point scripts reach. Failures never escape as panics,
// they are logged and the native returns 0, with the exception of panics
// that do not carry an error.
func (f *Func) Call(vm amx.AMX, params []amx.Cell) amx.Cell {
	if vm == nil || params == nil {
		return 0
	}
	prevVM, prevParams := f.vm, f.params
	f.vm, f.params = vm, params
	defer func() {
		f.vm, f.params = prevVM, prevParams
	}()
	return f.reg.guard(f.name, func() (amx.Cell, error) {
		return f.sig.dispatch(&frame{vm: vm, params: params, reg: f.reg})
	})
}

// Invoke calls the native from host code with the given argument words.
func (f *Func) Invoke(vm amx.AMX, args ...amx.Cell) amx.Cell {
	return f.Call(vm, stackSlice(args))
}

func stackSlice(args []amx.Cell) []amx.Cell {
	params := make([]amx.Cell, 0, len(args)+1)
	params = append(params, amx.Header(len(args)))
	return append(params, args...)
}

// dispatch validates the word count of a call and runs it.
func (s *signature) dispatch(f *frame) (amx.Cell, error) {
	if len(f.params) == 0 || f.params[0] < amx.Header(s.size) || f.words() > len(f.params)-1 {
		return 0, ErrArgCount
	}
	return s.call(f)
}

// guard is the boundary between host code and the VM. Errors returned or
// panicked become a log line and a 0 result. ErrCastFailure is not logged.
// Anything else is logged and re-panicked.
func (r *Registry) guard(name string, run func() (amx.Cell, error)) (ret amx.Cell) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		var rerr runtime.Error
		if err, ok := rec.(error); ok && !errors.As(err, &rerr) {
			ret = r.fail(name, err)
			return
		}
		r.log.Error().Str("native", name).Any("panic", rec).Msgf("Unknown exception in %s", name)
		panic(rec)
	}()
	ret, err := run()
	if err != nil {
		return r.fail(name, err)
	}
	return ret
}

func (r *Registry) fail(name string, err error) amx.Cell {
	if errors.Is(err, ErrCastFailure) {
		return 0
	}
	r.log.Error().Str("native", name).Msgf("Exception in %s: \"%s\"", name, err)
	return 0
}
