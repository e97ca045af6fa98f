package natives

import "errors"

var (
	// ErrCastFailure means a parameter legitimately has no value, for example
	// a handle to an object that no longer exists. A call failing this way
	// returns 0 to the script without logging anything.
	ErrCastFailure = errors.New("param cast failed acceptably")
	// ErrCastError is a real conversion failure, such as an address that does
	// not resolve to script memory.
	ErrCastError = errors.New("param cast error")
	// ErrLength is returned for an output string declared with a negative
	// length.
	ErrLength = errors.New("invalid string length")
	// ErrAllocation is returned when a variadic capture cannot hold the
	// arguments the call declares.
	ErrAllocation = errors.New("varargs allocation failed")
	// ErrArgCount is returned when a call carries fewer words than the
	// parameters of the native need.
	ErrArgCount = errors.New("insufficient arguments")
	// ErrUnsupported is returned when a native is declared with a parameter
	// or result shape that has no cast.
	ErrUnsupported = errors.New("unsupported native signature")
)

// DeclError is returned when a native cannot be declared.
type DeclError struct {
	Name string
	Err  error
}

func (e *DeclError) Error() string {
	return "native " + e.Name + ": " + e.Err.Error()
}

func (e *DeclError) Unwrap() error {
	return e.Err
}
