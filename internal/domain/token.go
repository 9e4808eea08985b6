package domain

import "time"

// TokenStatus is the bonding-curve lifecycle state of a token.
type TokenStatus string

// Token lifecycle states. Graduated is terminal.
const (
	TokenStatusCreated    TokenStatus = "created"
	TokenStatusTrading    TokenStatus = "trading"
	TokenStatusGraduating TokenStatus = "graduating"
	TokenStatusGraduated  TokenStatus = "graduated"
)

// Token is a creator token priced by the bonding curve until graduation.
// Corresponds to the curve_tokens table.
type Token struct {
	Mint          string // mint address, immutable
	Name          string
	Symbol        string
	CreatorID     string
	CreatorWallet string
	CurveAccount  string // reserve wallet ATA holding the tradeable supply
	Decimals      uint8
	Supply        uint64 // raw units minted to the curve account
	TokensSold    uint64 // raw units currently held outside the curve account
	Reserve       uint64 // curve units backing the curve
	AccruedFees   uint64 // quote base units retained by the protocol in the reserve wallet
	Status        TokenStatus
	Graduated     bool
	PoolAddress   string
	MintSignature string // buy-in payment that created the token
	ProvisionSig  string // on-chain mint provisioning transaction
	GraduationSig string
	Version       int64 // compare-and-set guard
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tradable reports whether curve trades are accepted.
func (t *Token) Tradable() bool {
	return t.Status == TokenStatusTrading && !t.Graduated
}

// Available returns raw token units still held by the curve account.
func (t *Token) Available() uint64 {
	if t.TokensSold >= t.Supply {
		return 0
	}
	return t.Supply - t.TokensSold
}
