package domain

import "time"

// AgentWallet is a custodial wallet held for an owning entity.
// Wallets are rotated, never updated in place.
type AgentWallet struct {
	ID        string
	Owner     string
	Address   string
	Sealed    []byte // encrypted secret key
	Active    bool
	CreatedAt time.Time
	RetiredAt *time.Time
}
