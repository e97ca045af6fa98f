// Package stdnatives is a set of general purpose natives for scripts:
// string formatting, hashing, JSON access and regular expressions.
package stdnatives

import (
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/highesttt/pawn-natives/pkg/inject"
	"github.com/highesttt/pawn-natives/pkg/natives"
)

const (
	GroupString = "string"
	GroupCrypto = "crypto"
	GroupJSON   = "json"
	GroupRegex  = "regex"
)

// Groups lists every group in registration order.
var Groups = []string{GroupString, GroupCrypto, GroupJSON, GroupRegex}

// Settings is injected into the natives that need host configuration.
type Settings struct {
	BcryptCost int
}

var groupFuncs = map[string]func(*natives.Registry) error{
	GroupString: registerStrings,
	GroupCrypto: registerCrypto,
	GroupJSON:   registerJSON,
	GroupRegex:  registerRegex,
}

// Register declares the natives of the given groups in reg, all of them when
// no group is named, and provides settings to the registry's container.
func Register(reg *natives.Registry, settings Settings, groups ...string) error {
	if len(groups) == 0 {
		groups = Groups
	}
	if settings.BcryptCost == 0 {
		settings.BcryptCost = bcrypt.DefaultCost
	}
	if settings.BcryptCost < bcrypt.MinCost || settings.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("stdnatives: bcrypt cost %d out of range", settings.BcryptCost)
	}
	for _, g := range groups {
		if _, ok := groupFuncs[g]; !ok {
			return fmt.Errorf("stdnatives: unknown group %q", g)
		}
	}
	inject.Provide(reg.Container(), &settings)
	for _, g := range Groups {
		if !slices.Contains(groups, g) {
			continue
		}
		if err := groupFuncs[g](reg); err != nil {
			return fmt.Errorf("stdnatives: %s: %w", g, err)
		}
	}
	return nil
}

type declaration struct {
	name string
	fn   any
}

func declare(reg *natives.Registry, decls ...declaration) error {
	for _, d := range decls {
		if _, err := natives.NewFunc(reg, d.name, d.fn); err != nil {
			return err
		}
	}
	return nil
}
