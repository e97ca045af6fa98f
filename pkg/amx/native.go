package amx

// Native is the entry point of a native function. params is the stack slice
// of the call: params[0] is the byte count of the arguments, params[1:] the
// arguments themselves.
type Native func(vm AMX, params []Cell) Cell

// NativeInfo pairs a native with the name scripts know it by.
type NativeInfo struct {
	Name string
	Func Native
}

// AMX is the interpreter handle a native receives.
type AMX interface {
	// GetAddr translates a VM address into a host-side pointer.
	GetAddr(addr Cell) (Pointer, error)
	// Register makes natives callable from the script.
	Register(natives []NativeInfo) error
}

// NativeTable is implemented by environments that expose the slots of natives
// they already know, which is what hooks patch.
type NativeTable interface {
	FindNative(name string) *Native
}
