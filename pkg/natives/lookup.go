package natives

import (
	"reflect"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

// Scalar lists the host types a single cell converts to by value.
type Scalar interface {
	~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// lookupFunc converts a cell into a host value of a type registered with
// AddLookup.
type lookupFunc func(vm amx.AMX, c amx.Cell) (reflect.Value, error)

// AddLookup teaches r how to turn a cell into a T, typically by resolving an
// id into a live object. Natives declared afterwards may take T by value. fn
// returns ErrCastFailure when the id is valid but names nothing.
func AddLookup[T any](r *Registry, fn func(vm amx.AMX, c amx.Cell) (T, error)) {
	r.lookups[reflect.TypeFor[T]()] = func(vm amx.AMX, c amx.Cell) (reflect.Value, error) {
		v, err := fn(vm, c)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(&v).Elem(), nil
	}
}

// ValueOf converts a cell to T. Integers truncate or widen, floats are
// bit-reinterpreted.
func ValueOf[T Scalar](c amx.Cell) T {
	var v T
	setCell(reflect.ValueOf(&v).Elem(), c)
	return v
}

// CellOf is the inverse of ValueOf.
func CellOf[T Scalar](v T) amx.Cell {
	return cellOf(reflect.ValueOf(v))
}

func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func setCell(v reflect.Value, c amx.Cell) {
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(c != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(c))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(uint32(c)))
	case reflect.Float32, reflect.Float64:
		v.SetFloat(float64(amx.Ctof(c)))
	}
}

func valueOf(t reflect.Type, c amx.Cell) reflect.Value {
	v := reflect.New(t).Elem()
	setCell(v, c)
	return v
}

func cellOf(v reflect.Value) amx.Cell {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return amx.Cell(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return amx.Cell(uint32(v.Uint()))
	case reflect.Float32, reflect.Float64:
		return amx.Ftoc(float32(v.Float()))
	}
	return 0
}
