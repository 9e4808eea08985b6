package domain

import "time"

// TxDirection is the claimed purpose of an externally signed transaction.
type TxDirection string

// Transaction directions.
const (
	DirectionBuy      TxDirection = "buy"
	DirectionSell     TxDirection = "sell"
	DirectionMint     TxDirection = "mint"
	DirectionGraduate TxDirection = "graduate"
	DirectionPayout   TxDirection = "payout"
	DirectionPurchase TxDirection = "purchase"
)

// TxRecordStatus is the lifecycle state of an ExternalTransactionRecord.
type TxRecordStatus string

// Record states. Applied and rejected are terminal.
const (
	TxStatusPending  TxRecordStatus = "pending_verification"
	TxStatusVerified TxRecordStatus = "verified"
	TxStatusApplied  TxRecordStatus = "applied"
	TxStatusRejected TxRecordStatus = "rejected"
)

// ExternalTransactionRecord is the idempotency record keyed by the chain signature.
// A signature is applied to internal state at most once.
type ExternalTransactionRecord struct {
	Signature string
	Direction TxDirection
	Amount    uint64 // verified amount (claimed amount until verified)
	From      string
	To        string
	Mint      string // empty for native transfers
	Status    TxRecordStatus
	Slot      int64
	BlockTime int64
	Reason    string // rejection reason
	ResultRef string // id of the state row produced when applied
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SameShape reports whether two records describe the same claimed transfer.
func (r *ExternalTransactionRecord) SameShape(o *ExternalTransactionRecord) bool {
	return r.Direction == o.Direction && r.Mint == o.Mint && r.From == o.From && r.To == o.To
}
