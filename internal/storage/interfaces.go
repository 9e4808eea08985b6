package storage

import (
	"context"
	"time"

	"solana-marketplace/internal/domain"
)

// TxRecordStore provides access to external_tx_records, the idempotency ledger.
type TxRecordStore interface {
	// Insert adds a record if the signature is absent. Returns ErrDuplicateKey otherwise.
	Insert(ctx context.Context, r *domain.ExternalTransactionRecord) error

	// GetBySignature returns ErrNotFound if the signature has no record.
	GetBySignature(ctx context.Context, signature string) (*domain.ExternalTransactionRecord, error)

	// Transition overwrites the record only if its stored status equals from.
	// Returns ErrConflict otherwise.
	Transition(ctx context.Context, r *domain.ExternalTransactionRecord, from domain.TxRecordStatus) error

	// ClaimStale refreshes a pending record last touched before staleBefore.
	// Returns ErrConflict if the record is not pending or is still fresh.
	ClaimStale(ctx context.Context, signature string, staleBefore, now time.Time) error

	// DeletePending removes a record still in pending_verification. Missing records are ignored.
	DeletePending(ctx context.Context, signature string) error
}

// TokenStore provides access to curve_tokens.
type TokenStore interface {
	// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByMint returns ErrNotFound if the mint is unknown.
	GetByMint(ctx context.Context, mint string) (*domain.Token, error)

	// CompareAndSwap writes t if the stored version equals expectedVersion and
	// bumps t.Version. Returns ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, t *domain.Token, expectedVersion int64) error

	// List returns tokens in the given status, or all tokens when status is empty.
	List(ctx context.Context, status domain.TokenStatus) ([]*domain.Token, error)
}

// TradeStore provides access to curve_trades.
type TradeStore interface {
	// GetByID returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.CurveTrade, error)

	// GetByPaymentSignature returns ErrNotFound if absent.
	GetByPaymentSignature(ctx context.Context, signature string) (*domain.CurveTrade, error)

	// Insert adds a trade that has no idempotency record of its own (forwarded trades).
	Insert(ctx context.Context, t *domain.CurveTrade) error

	// UpdateDelivery moves a trade out of from. Returns ErrConflict if the status differs.
	UpdateDelivery(ctx context.Context, id string, from, to domain.TradeStatus, deliverySig, reason string) error

	// ListByMint returns the newest trades first.
	ListByMint(ctx context.Context, mint string, limit int) ([]*domain.CurveTrade, error)

	// ListByStatus returns trades in status, oldest first.
	ListByStatus(ctx context.Context, status domain.TradeStatus, limit int) ([]*domain.CurveTrade, error)
}

// ListingStore provides access to marketplace listings.
type ListingStore interface {
	// Insert adds a listing. Returns ErrDuplicateKey if the item exists.
	Insert(ctx context.Context, l *domain.Listing) error

	// GetByID returns ErrNotFound if absent.
	GetByID(ctx context.Context, itemID string) (*domain.Listing, error)
}

// UserRole selects which side of a settlement a user listing covers.
type UserRole string

// User roles.
const (
	RoleBuyer  UserRole = "buyer"
	RoleSeller UserRole = "seller"
	RoleAny    UserRole = "all"
)

// SettlementStore provides access to settlements and purchases.
type SettlementStore interface {
	// GetByID returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.SettlementTransaction, error)

	// GetByPaymentSignature returns ErrNotFound if absent.
	GetByPaymentSignature(ctx context.Context, signature string) (*domain.SettlementTransaction, error)

	// SetPayoutSignature records a submitted payout on a pending settlement.
	SetPayoutSignature(ctx context.Context, id, signature string) error

	// Transition writes the terminal state of s if its stored status equals from.
	// Returns ErrConflict otherwise.
	Transition(ctx context.Context, s *domain.SettlementTransaction, from domain.SettlementStatus) error

	// ListByStatus returns settlements in status, oldest first.
	ListByStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]*domain.SettlementTransaction, error)

	// ListByUser returns a user's settlements, newest first.
	ListByUser(ctx context.Context, userID string, role UserRole, limit int) ([]*domain.SettlementTransaction, error)

	// HasPurchased reports whether buyer owns item.
	HasPurchased(ctx context.Context, buyerID, itemID string) (bool, error)

	// Stats aggregates all settlements.
	Stats(ctx context.Context) (*domain.MarketplaceStats, error)
}

// SettlementSource provides completed settlements to the commission reporter.
type SettlementSource interface {
	// CompletedBetween returns completed settlements with CompletedAt in [start, end).
	CompletedBetween(ctx context.Context, start, end time.Time) ([]*domain.SettlementTransaction, error)
}

// SettlementMirror receives completed settlements for the analytics read model.
type SettlementMirror interface {
	Record(ctx context.Context, s *domain.SettlementTransaction) error
}

// WalletStore provides access to agent_wallets.
type WalletStore interface {
	// Insert adds the first wallet of an owner. Returns ErrDuplicateKey if an active one exists.
	Insert(ctx context.Context, w *domain.AgentWallet) error

	// GetActive returns ErrNotFound if the owner has no active wallet.
	GetActive(ctx context.Context, owner string) (*domain.AgentWallet, error)

	// GetByAddress returns the wallet with the given public address, active or not.
	GetByAddress(ctx context.Context, address string) (*domain.AgentWallet, error)

	// Rotate retires the active wallet of next.Owner and inserts next in one step.
	// Returns ErrNotFound if there is no active wallet to retire.
	Rotate(ctx context.Context, next *domain.AgentWallet, retiredAt time.Time) error
}

// Applier executes the state change of a verified transaction together with
// the verified→applied transition of its record. Either both happen or neither.
// All methods return ErrConflict when the record is no longer verified or the
// guarded row changed underneath.
type Applier interface {
	// ApplyMint inserts the token created by a verified buy-in.
	ApplyMint(ctx context.Context, rec *domain.ExternalTransactionRecord, t *domain.Token) error

	// ApplyTrade writes the token at expectedVersion and inserts the trade.
	ApplyTrade(ctx context.Context, rec *domain.ExternalTransactionRecord, t *domain.Token, expectedVersion int64, trade *domain.CurveTrade) error

	// ApplySettlement inserts a pending settlement and the buyer's purchase.
	ApplySettlement(ctx context.Context, rec *domain.ExternalTransactionRecord, s *domain.SettlementTransaction, p *domain.Purchase) error
}
