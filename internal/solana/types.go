package solana

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Commitment levels.
const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Well-known account sizes.
const (
	MintAccountSize = 82
)
