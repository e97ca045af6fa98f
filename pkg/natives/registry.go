// Package natives exposes Go functions to Pawn scripts as natives and hooks
// natives the environment already provides.
//
// A native is declared from a plain Go function. Its parameter types decide
// how each argument is read from the stack slice of a call:
//
//	reg := natives.NewRegistry(natives.WithLogger(log))
//	natives.MustFunc(reg, "GetName", func(id int, name *string) bool {
//		*name = players[id]
//		return true
//	})
//	err := reg.Load(vm)
//
// Parameters are converted in declaration order and anything written
// through them is copied back into script memory, in reverse order, once
// the function returns.
package natives

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/highesttt/pawn-natives/pkg/amx"
	"github.com/highesttt/pawn-natives/pkg/inject"
)

// Registry holds the natives and hooks of one plugin until the environment
// they belong to is loaded.
type Registry struct {
	log       zerolog.Logger
	container *inject.Container
	lookups   map[reflect.Type]lookupFunc

	funcs  []*Func
	hooks  []*Hook
	hooked bool
}

type Option func(*Registry)

// WithLogger sets the logger failures and registrations are reported to.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithContainer sets where DI parameters are resolved from.
func WithContainer(c *inject.Container) Option {
	return func(r *Registry) {
		r.container = c
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:     zerolog.Nop(),
		lookups: make(map[reflect.Type]lookupFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.container == nil {
		r.container = inject.NewContainer()
	}
	return r
}

func (r *Registry) Container() *inject.Container {
	return r.container
}

// Load registers every native with vm, one entry per Register call, and
// installs the hooks the first time it runs against an environment with a
// native table. Registration failures are logged and returned together.
func (r *Registry) Load(vm amx.AMX) error {
	var errs []error
	for _, f := range r.funcs {
		r.log.Info().Str("native", f.name).Msgf("Registering native %s", f.name)
		err := vm.Register([]amx.NativeInfo{{Name: f.name, Func: f.Call}})
		if err != nil {
			r.log.Error().Err(err).Str("native", f.name).Msg("Failed to register native")
			errs = append(errs, fmt.Errorf("register %s: %w", f.name, err))
		}
	}
	if r.hooked || len(r.hooks) == 0 {
		return errors.Join(errs...)
	}
	table, ok := vm.(amx.NativeTable)
	if !ok {
		r.log.Warn().Int("hooks", len(r.hooks)).Msg("Environment has no native table, hooks not installed")
		return errors.Join(errs...)
	}
	r.hooked = true
	for _, h := range r.hooks {
		if h.install(table) {
			r.log.Info().Str("native", h.name).Msgf("Hooking native %s", h.name)
		} else {
			r.log.Info().Str("native", h.name).Msgf("Hooking native %s (NOT FOUND)", h.name)
		}
	}
	return errors.Join(errs...)
}

// Funcs returns the declared natives in declaration order.
func (r *Registry) Funcs() []*Func {
	return append([]*Func(nil), r.funcs...)
}

// Hooks returns the declared hooks in declaration order.
func (r *Registry) Hooks() []*Hook {
	return append([]*Hook(nil), r.hooks...)
}

// Lookup finds a declared native by name.
func (r *Registry) Lookup(name string) *Func {
	for _, f := range r.funcs {
		if f.name == name {
			return f
		}
	}
	return nil
}

// LookupHook finds a declared hook by name.
func (r *Registry) LookupHook(name string) *Hook {
	for _, h := range r.hooks {
		if h.name == name {
			return h
		}
	}
	return nil
}
