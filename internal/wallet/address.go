package wallet

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that address is a base58 ed25519 public key on the
// curve. Program-derived addresses are off the curve and cannot sign, so they
// are rejected as wallet addresses.
func ValidateAddress(address string) error {
	b, err := base58.Decode(address)
	if err != nil || len(b) != 32 {
		return ErrInvalidAddress
	}
	if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
		return ErrOffCurve
	}
	return nil
}
