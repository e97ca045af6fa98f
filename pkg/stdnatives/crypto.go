package stdnatives

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"

	"github.com/highesttt/pawn-natives/pkg/natives"
)

func registerCrypto(reg *natives.Registry) error {
	return declare(reg,
		// bcrypt_hash(const password[], hash[], size)
		declaration{"bcrypt_hash", func(password string, hash *string, settings natives.DI[Settings]) (bool, error) {
			h, err := bcrypt.GenerateFromPassword([]byte(password), settings.Get().BcryptCost)
			if err != nil {
				return false, err
			}
			*hash = string(h)
			return true, nil
		}},
		// bcrypt_check(const password[], const hash[])
		declaration{"bcrypt_check", func(password, hash string) (bool, error) {
			err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return false, nil
			} else if err != nil {
				return false, err
			}
			return true, nil
		}},
		// sha3_256(const input[], digest[], size)
		declaration{"sha3_256", func(input string, digest *string) {
			sum := sha3.Sum256([]byte(input))
			*digest = hex.EncodeToString(sum[:])
		}},
	)
}
