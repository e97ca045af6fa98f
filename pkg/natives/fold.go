package natives

import (
	"fmt"
	"reflect"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

var errorType = reflect.TypeFor[error]()

// Param describes one parameter of a native.
type Param struct {
	Type reflect.Type
	Kind Kind
	// Offset is the stack slot the parameter starts at. Parameters that take
	// no words report the slot the cursor was at.
	Offset int
}

// signature is the parameter list of a host function, classified once when
// the native is declared.
type signature struct {
	fn      reflect.Value
	params  []*caster
	offsets []int
	size    int
	result  reflect.Type
	errOut  bool
}

func newSignature(r *Registry, fn any) (*signature, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: expected a function, got %T", ErrUnsupported, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic Go function, take VarArgs instead", ErrUnsupported)
	}
	s := &signature{fn: v}
	pos := 1
	for i := range t.NumIn() {
		c, err := r.casterFor(t.In(i))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		s.params = append(s.params, c)
		s.offsets = append(s.offsets, pos)
		pos += c.size
	}
	s.size = pos - 1

	outs := make([]reflect.Type, t.NumOut())
	for i := range outs {
		outs[i] = t.Out(i)
	}
	if n := len(outs); n > 0 && outs[n-1] == errorType {
		s.errOut = true
		outs = outs[:n-1]
	}
	switch {
	case len(outs) > 1:
		return nil, fmt.Errorf("%w: too many results", ErrUnsupported)
	case len(outs) == 1 && !isScalar(outs[0]):
		return nil, fmt.Errorf("%w: result %s does not fit in a cell", ErrUnsupported, outs[0])
	case len(outs) == 1:
		s.result = outs[0]
	}
	return s, nil
}

func (s *signature) describe() []Param {
	out := make([]Param, len(s.params))
	for i, c := range s.params {
		out[i] = Param{Type: c.typ, Kind: c.kind, Offset: s.offsets[i]}
	}
	return out
}

// call builds every cast left to right, runs the function and releases the
// casts in reverse order on the way out, panics included.
func (s *signature) call(f *frame) (amx.Cell, error) {
	args := make([]reflect.Value, len(s.params))
	releases := make([]func(), 0, len(s.params))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	for i, c := range s.params {
		cs, err := c.build(f, s.offsets[i])
		if err != nil {
			return 0, err
		}
		args[i] = cs.value
		if cs.release != nil {
			releases = append(releases, cs.release)
		}
	}

	out := s.fn.Call(args)
	if s.errOut {
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			return 0, err
		}
	}
	if s.result == nil {
		return 1, nil
	}
	return cellOf(out[0]), nil
}
