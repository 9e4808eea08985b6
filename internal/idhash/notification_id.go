package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-marketplace/internal/domain"
)

// ComputeNotificationID computes a deterministic notification id using SHA256.
// Formula: SHA256(kind|subject_id|recipient)
// Returns hex-encoded hash (64 characters). Re-enqueueing the same message
// yields the same id, so the outbox stores it once.
func ComputeNotificationID(
	kind domain.NotificationKind,
	subjectID string,
	recipient string,
) string {
	data := fmt.Sprintf("%s|%s|%s",
		string(kind),
		subjectID,
		recipient,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
