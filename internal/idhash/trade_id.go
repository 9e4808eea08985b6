package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-marketplace/internal/domain"
)

// ComputeTradeID computes a deterministic curve trade id using SHA256.
// Formula: SHA256(mint|side|payment_signature)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	mint string,
	side domain.TradeSide,
	paymentSignature string,
) string {
	data := fmt.Sprintf("%s|%s|%s",
		mint,
		string(side),
		paymentSignature,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
