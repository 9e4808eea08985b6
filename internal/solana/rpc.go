package solana

import "context"

// RPCClient defines the Solana JSON-RPC surface used by settlement.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil when the ledger has no such transaction.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetLatestBlockhash returns a fresh recency token and its expiry height.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a signed wire-format transaction exactly once.
	SendTransaction(ctx context.Context, raw []byte) (string, error)

	// GetSignatureStatuses returns one entry per signature; nil for unknown signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetBlockHeight returns the current confirmed block height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// GetAccountInfo returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMinimumBalanceForRentExemption returns lamports needed for an account of size bytes.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// Transaction represents a confirmed Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains execution results and balance snapshots.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LogMessages       []string
}

// TokenBalance is an SPL token account balance snapshot.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       uint64 // raw units
	Decimals     uint8
}

// TransactionMessage contains the account keys referenced by the transaction,
// static keys first, then addresses loaded from lookup tables.
type TransactionMessage struct {
	AccountKeys     []string
	RecentBlockhash string
}

// Failed reports whether the transaction executed with an instruction error.
func (t *Transaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// Blockhash is a recency token with its last valid block height.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}

// SignatureStatus is the confirmation state of a submitted signature.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *uint64
	Err                interface{}
	ConfirmationStatus string // processed, confirmed, finalized
}

// Confirmed reports whether the signature reached confirmed or finalized commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s != nil && (s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}
