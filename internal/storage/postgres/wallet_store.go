package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
// The partial unique index on (owner) WHERE active keeps one active wallet per owner.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `id, owner, address, sealed, active, created_at, retired_at`

// Insert adds the first wallet of an owner.
func (s *WalletStore) Insert(ctx context.Context, w *domain.AgentWallet) error {
	return insertWallet(ctx, s.pool, w)
}

func insertWallet(ctx context.Context, q querier, w *domain.AgentWallet) error {
	query := `
		INSERT INTO agent_wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query, w.ID, w.Owner, w.Address, w.Sealed, w.Active, w.CreatedAt, w.RetiredAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetActive returns ErrNotFound if the owner has no active wallet.
func (s *WalletStore) GetActive(ctx context.Context, owner string) (*domain.AgentWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM agent_wallets WHERE owner = $1 AND active`
	return s.getOne(ctx, query, owner)
}

// GetByAddress returns ErrNotFound if no wallet has the address.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (*domain.AgentWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM agent_wallets WHERE address = $1`
	return s.getOne(ctx, query, address)
}

func (s *WalletStore) getOne(ctx context.Context, query, arg string) (*domain.AgentWallet, error) {
	var w domain.AgentWallet
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&w.ID, &w.Owner, &w.Address, &w.Sealed, &w.Active, &w.CreatedAt, &w.RetiredAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// Rotate retires the active wallet of next.Owner and inserts next in one transaction.
func (s *WalletStore) Rotate(ctx context.Context, next *domain.AgentWallet, retiredAt time.Time) error {
	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE agent_wallets SET active = FALSE, retired_at = $2 WHERE owner = $1 AND active`,
			next.Owner, retiredAt,
		)
		if err != nil {
			return fmt.Errorf("retire wallet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return insertWallet(ctx, tx, next)
	})
}
