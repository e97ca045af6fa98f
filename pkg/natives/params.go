package natives

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/highesttt/pawn-natives/pkg/amx"
	"github.com/highesttt/pawn-natives/pkg/inject"
)

// Kind is the category of a native parameter, which decides how it is read
// from the stack slice and whether anything is written back.
type Kind int

const (
	KindValue Kind = iota
	KindConst
	KindRef
	KindConstRef
	KindOutString
	KindString
	KindVarArgs
	KindInject
	KindArg
	KindAMX
)

var kindNames = [...]string{
	KindValue:     "value",
	KindConst:     "const",
	KindRef:       "ref",
	KindConstRef:  "const ref",
	KindOutString: "out string",
	KindString:    "string",
	KindVarArgs:   "varargs",
	KindInject:    "inject",
	KindArg:       "arg",
	KindAMX:       "amx",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Footprint is the number of stack words a parameter of this kind consumes.
func (k Kind) Footprint() int {
	switch k {
	case KindOutString:
		return 2
	case KindInject, KindArg, KindAMX:
		return 0
	}
	return 1
}

// wrapper is implemented by the parameter types of this package. The methods
// are unexported so no other package can add a parameter shape.
type wrapper interface {
	// shape returns the kind and, for kinds wrapping another parameter, the
	// wrapped type.
	shape() (Kind, reflect.Type)
	// bind reads the parameter at idx. elem is the cast of the wrapped type
	// when there is one. The returned release, if any, runs after the call.
	bind(f *frame, idx int, elem *caster) (release func(), err error)
}

var wrapperType = reflect.TypeFor[wrapper]()

// Const is a by-value parameter that is copied out of the stack slice.
type Const[T any] struct {
	v T
}

// Get returns the copied value.
func (c Const[T]) Get() T {
	return c.v
}

func (*Const[T]) shape() (Kind, reflect.Type) {
	return KindConst, reflect.TypeFor[T]()
}

func (c *Const[T]) bind(f *frame, idx int, elem *caster) (func(), error) {
	cs, err := elem.build(f, idx)
	if err != nil {
		return nil, err
	}
	if cs.release != nil {
		defer cs.release()
	}
	c.v = cs.value.Interface().(T)
	return nil, nil
}

// Ref is a parameter passed by reference. Reads and writes go straight to
// script memory, so there is nothing to write back.
type Ref[T Scalar] struct {
	p amx.Pointer
}

// Get reads the referenced cell.
func (r Ref[T]) Get() T {
	return ValueOf[T](r.p.Load())
}

// Set writes the referenced cell.
func (r Ref[T]) Set(v T) {
	r.p.Store(CellOf(v))
}

// At reads the i-th cell of a referenced array.
func (r Ref[T]) At(i int) T {
	return ValueOf[T](r.p.At(i))
}

// SetAt writes the i-th cell of a referenced array.
func (r Ref[T]) SetAt(i int, v T) {
	r.p.SetAt(i, CellOf(v))
}

// Pointer returns the underlying script pointer.
func (r Ref[T]) Pointer() amx.Pointer {
	return r.p
}

func (*Ref[T]) shape() (Kind, reflect.Type) {
	return KindRef, nil
}

func (r *Ref[T]) bind(f *frame, idx int, _ *caster) (func(), error) {
	p, err := f.addr(idx)
	if err != nil {
		return nil, err
	}
	r.p = p
	return nil, nil
}

// ConstRef is a reference parameter the native may only read. The value is
// copied at the start of the call.
type ConstRef[T Scalar] struct {
	v    T
	addr amx.Cell
}

// Get returns the copied value.
func (r ConstRef[T]) Get() T {
	return r.v
}

// Addr returns the script address the value was read from.
func (r ConstRef[T]) Addr() amx.Cell {
	return r.addr
}

func (*ConstRef[T]) shape() (Kind, reflect.Type) {
	return KindConstRef, nil
}

func (r *ConstRef[T]) bind(f *frame, idx int, _ *caster) (func(), error) {
	p, err := f.addr(idx)
	if err != nil {
		return nil, err
	}
	r.v = ValueOf[T](p.Load())
	r.addr = p.Addr()
	return nil, nil
}

// VarArgs captures every argument from its position to the end of the call.
// Pawn passes variadic arguments by reference, so each one is an address.
type VarArgs struct {
	vm    amx.AMX
	addrs []amx.Pointer
}

// Len returns the number of captured arguments.
func (va VarArgs) Len() int {
	return len(va.addrs)
}

// Addr returns the pointer to the i-th argument.
func (va VarArgs) Addr(i int) amx.Pointer {
	return va.addrs[i]
}

// Cell returns the value of the i-th argument.
func (va VarArgs) Cell(i int) amx.Cell {
	return va.addrs[i].Load()
}

// Int returns the i-th argument as an integer.
func (va VarArgs) Int(i int) int {
	return int(va.Cell(i))
}

// Float returns the i-th argument as a float.
func (va VarArgs) Float(i int) float32 {
	return amx.Ctof(va.Cell(i))
}

// String returns the i-th argument as a string.
func (va VarArgs) String(i int) string {
	p := va.addrs[i]
	return amx.GetString(p, amx.StrLen(p)+1)
}

// SetCell writes the i-th argument.
func (va VarArgs) SetCell(i int, v amx.Cell) {
	va.addrs[i].Store(v)
}

// AMX returns the interpreter the arguments live in.
func (va VarArgs) AMX() amx.AMX {
	return va.vm
}

func (*VarArgs) shape() (Kind, reflect.Type) {
	return KindVarArgs, nil
}

func (va *VarArgs) bind(f *frame, idx int, _ *caster) (func(), error) {
	count := f.words() - idx + 1
	if count < 0 {
		count = 0
	}
	if idx+count > len(f.params) {
		return nil, fmt.Errorf("%w: %d arguments from position %d", ErrAllocation, count, idx)
	}
	va.vm = f.vm
	va.addrs = make([]amx.Pointer, count)
	for i := range va.addrs {
		p, err := f.vm.GetAddr(f.params[idx+i])
		if err != nil {
			return nil, fmt.Errorf("%w: vararg %d: %w", ErrCastError, i, err)
		}
		va.addrs[i] = p
	}
	return nil, nil
}

// DI is a parameter resolved from the registry's container instead of the
// stack. The instance is held for the whole call.
type DI[T any] struct {
	v *T
}

// Get returns the injected instance.
func (d DI[T]) Get() *T {
	return d.v
}

func (*DI[T]) shape() (Kind, reflect.Type) {
	return KindInject, nil
}

func (d *DI[T]) bind(f *frame, _ int, _ *caster) (func(), error) {
	key := reflect.TypeFor[T]()
	c := f.reg.container
	h, err := c.Acquire(key)
	if errors.Is(err, inject.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrCastFailure, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCastError, err)
	}
	p, ok := h.Value().(*T)
	if !ok {
		h.Release()
		return nil, fmt.Errorf("%w: %s instance is %T", ErrCastError, key, h.Value())
	}
	d.v = p
	return h.Release, nil
}

// Position selects the stack slot an Arg reads from.
type Position interface {
	position() int
}

type (
	P0  struct{}
	P1  struct{}
	P2  struct{}
	P3  struct{}
	P4  struct{}
	P5  struct{}
	P6  struct{}
	P7  struct{}
	P8  struct{}
	P9  struct{}
	P10 struct{}
	P11 struct{}
	P12 struct{}
	P13 struct{}
	P14 struct{}
	P15 struct{}
)

func (P0) position() int  { return 0 }
func (P1) position() int  { return 1 }
func (P2) position() int  { return 2 }
func (P3) position() int  { return 3 }
func (P4) position() int  { return 4 }
func (P5) position() int  { return 5 }
func (P6) position() int  { return 6 }
func (P7) position() int  { return 7 }
func (P8) position() int  { return 8 }
func (P9) position() int  { return 9 }
func (P10) position() int { return 10 }
func (P11) position() int { return 11 }
func (P12) position() int { return 12 }
func (P13) position() int { return 13 }
func (P14) position() int { return 14 }
func (P15) position() int { return 15 }

// Arg reads the parameter at the fixed position P instead of the current
// cursor, so one script argument can feed several host parameters. It takes
// no stack words of its own.
type Arg[T any, P Position] struct {
	v T
}

// Get returns the value read at position P.
func (a Arg[T, P]) Get() T {
	return a.v
}

func (*Arg[T, P]) shape() (Kind, reflect.Type) {
	return KindArg, reflect.TypeFor[T]()
}

func (a *Arg[T, P]) bind(f *frame, _ int, elem *caster) (func(), error) {
	var p P
	cs, err := elem.build(f, p.position()+1)
	if err != nil {
		return nil, err
	}
	a.v = cs.value.Interface().(T)
	return cs.release, nil
}
