// Package inject keeps the live host objects natives can ask for by type.
//
// Every instance carries a reference count so a call that resolved an
// instance keeps it alive until the call has unwound, even if the owner
// removes it from the container in the meantime.
package inject

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNotFound is returned when no live instance of a type is provided.
var ErrNotFound = errors.New("inject: no instance provided")

type entry struct {
	value   any
	refCnt  int
	removed bool
}

// Container maps a host type to the one live instance of it.
type Container struct {
	mu      sync.Mutex
	entries map[reflect.Type]*entry
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{entries: make(map[reflect.Type]*entry)}
}

// TypeKey returns the key an instance is stored under: the pointed-to type
// for pointers, the type itself otherwise.
func TypeKey(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// Provide stores v, replacing any earlier instance of the same type. The
// container holds one reference until Remove. Handles to a replaced instance
// stay valid and release that instance, not v.
func (c *Container) Provide(v any) reflect.Type {
	if v == nil {
		panic("inject: Provide(nil)")
	}
	key := TypeKey(reflect.TypeOf(v))
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok && !old.removed {
		old.removed = true
		old.refCnt--
	}
	c.entries[key] = &entry{value: v, refCnt: 1}
	return key
}

// Remove drops the container's own reference. Callers still holding the
// instance keep it until they release it.
func (c *Container) Remove(t reflect.Type) {
	key := TypeKey(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.removed {
		return
	}
	e.removed = true
	c.decRef(key, e)
}

// Handle is a reference to one provided instance, taken by Acquire.
type Handle struct {
	c        *Container
	key      reflect.Type
	e        *entry
	released bool
}

// Value returns the instance the handle refers to.
func (h *Handle) Value() any {
	return h.e.value
}

// Release gives the reference back. Releasing twice is a no-op.
func (h *Handle) Release() {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.c.decRef(h.key, h.e)
}

// Acquire resolves the instance for t and takes a reference on it.
func (c *Container) Acquire(t reflect.Type) (*Handle, error) {
	key := TypeKey(t)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.removed {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	e.refCnt++
	return &Handle{c: c, key: key, e: e}, nil
}

// Refs returns the reference count of the current instance for t, zero
// when unknown.
func (c *Container) Refs(t reflect.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[TypeKey(t)]; ok {
		return e.refCnt
	}
	return 0
}

// decRef drops a reference on e and forgets e once nothing holds it. A
// replaced entry is no longer in the map and is left alone there.
func (c *Container) decRef(key reflect.Type, e *entry) {
	e.refCnt--
	if e.refCnt <= 0 && c.entries[key] == e {
		delete(c.entries, key)
	}
}

// Provide is the typed form of Container.Provide.
func Provide[T any](c *Container, v *T) {
	c.Provide(v)
}

// Get resolves a *T without taking a reference.
func Get[T any](c *Container) (*T, error) {
	key := reflect.TypeFor[T]()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.removed {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	v, ok := e.value.(*T)
	if !ok {
		return nil, fmt.Errorf("inject: instance of %s is %T", key, e.value)
	}
	return v, nil
}
