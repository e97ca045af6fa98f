package natives

import (
	"fmt"
	"reflect"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

// frame is the context of one native call. It never outlives the call.
type frame struct {
	vm     amx.AMX
	params []amx.Cell
	reg    *Registry
}

func (f *frame) words() int {
	return amx.Words(f.params[0])
}

// arg returns the argument word at idx, counting from 1.
func (f *frame) arg(idx int) (amx.Cell, error) {
	if idx < 1 || idx > f.words() || idx >= len(f.params) {
		return 0, ErrArgCount
	}
	return f.params[idx], nil
}

// addr resolves the argument at idx as a script address.
func (f *frame) addr(idx int) (amx.Pointer, error) {
	c, err := f.arg(idx)
	if err != nil {
		return amx.Pointer{}, err
	}
	p, err := f.vm.GetAddr(c)
	if err != nil {
		return amx.Pointer{}, fmt.Errorf("%w: parameter %d: %w", ErrCastError, idx, err)
	}
	return p, nil
}

// cast is one converted parameter. release, when set, performs the write-back.
type cast struct {
	value   reflect.Value
	release func()
}

// caster knows how to build the cast for one parameter type.
type caster struct {
	typ   reflect.Type
	kind  Kind
	size  int
	build func(f *frame, idx int) (cast, error)
}

var (
	amxType       = reflect.TypeFor[amx.AMX]()
	outStringType = reflect.TypeFor[*string]()
	byteSliceType = reflect.TypeFor[[]byte]()
)

// casterFor classifies t. Shapes without a cast are rejected here, when the
// native is declared, and never reach a call.
func (r *Registry) casterFor(t reflect.Type) (*caster, error) {
	if fn, ok := r.lookups[t]; ok {
		return &caster{typ: t, kind: KindValue, size: 1, build: func(f *frame, idx int) (cast, error) {
			c, err := f.arg(idx)
			if err != nil {
				return cast{}, err
			}
			v, err := fn(f.vm, c)
			return cast{value: v}, err
		}}, nil
	}
	switch {
	case t == amxType:
		return &caster{typ: t, kind: KindAMX, build: func(f *frame, _ int) (cast, error) {
			return cast{value: reflect.ValueOf(&f.vm).Elem()}, nil
		}}, nil
	case reflect.PointerTo(t).Implements(wrapperType):
		return r.wrapperCaster(t)
	case t == outStringType:
		return &caster{typ: t, kind: KindOutString, size: 2, build: buildOutString}, nil
	case t.Kind() == reflect.String:
		return &caster{typ: t, kind: KindString, size: 1, build: func(f *frame, idx int) (cast, error) {
			p, err := f.addr(idx)
			if err != nil {
				return cast{}, err
			}
			v := reflect.New(t).Elem()
			v.SetString(amx.GetString(p, amx.StrLen(p)+1))
			return cast{value: v}, nil
		}}, nil
	case isScalar(t):
		return &caster{typ: t, kind: KindValue, size: 1, build: func(f *frame, idx int) (cast, error) {
			c, err := f.arg(idx)
			if err != nil {
				return cast{}, err
			}
			return cast{value: valueOf(t, c)}, nil
		}}, nil
	}
	return nil, unsupported(t)
}

func unsupported(t reflect.Type) error {
	switch {
	case t == byteSliceType, t == reflect.PointerTo(byteSliceType), t == reflect.TypeFor[[]rune]():
		return fmt.Errorf("%w: %s has no length contract, use *string for output or string for input", ErrUnsupported, t)
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String:
		return fmt.Errorf("%w: %s, only *string is an output string", ErrUnsupported, t)
	case t.Kind() == reflect.Pointer:
		return fmt.Errorf("%w: %s, use Ref or ConstRef for references", ErrUnsupported, t)
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, t)
}

func (r *Registry) wrapperCaster(t reflect.Type) (*caster, error) {
	kind, elemType := reflect.New(t).Interface().(wrapper).shape()
	var elem *caster
	if elemType != nil {
		var err error
		if elem, err = r.casterFor(elemType); err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		switch {
		case elem.kind == KindAMX || elem.kind == KindInject || elem.kind == KindArg:
			return nil, fmt.Errorf("%w: %s cannot wrap %s", ErrUnsupported, t, elemType)
		case kind == KindConst && elem.size != 1:
			return nil, fmt.Errorf("%w: %s must wrap a single word parameter", ErrUnsupported, t)
		}
	}
	return &caster{typ: t, kind: kind, size: kind.Footprint(), build: func(f *frame, idx int) (cast, error) {
		v := reflect.New(t)
		release, err := v.Interface().(wrapper).bind(f, idx, elem)
		if err != nil {
			return cast{}, err
		}
		return cast{value: v.Elem(), release: release}, nil
	}}, nil
}

// buildOutString copies the string at idx into a local the native may modify
// and writes it back, truncated to the declared length, on release. The
// length word follows the address word.
func buildOutString(f *frame, idx int) (cast, error) {
	lc, err := f.arg(idx + 1)
	if err != nil {
		return cast{}, err
	}
	n := int(lc)
	if n < 0 {
		return cast{}, ErrLength
	}
	local := new(string)
	if n == 0 {
		return cast{value: reflect.ValueOf(local)}, nil
	}
	p, err := f.addr(idx)
	if err != nil {
		return cast{}, err
	}
	*local = amx.GetString(p, n)
	return cast{
		value: reflect.ValueOf(local),
		release: func() {
			amx.SetString(p, *local, false, n)
		},
	}, nil
}
