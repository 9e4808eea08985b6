package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `mint, name, symbol, creator_id, creator_wallet, curve_account, decimals,
	supply, tokens_sold, reserve, accrued_fees, status, graduated, pool_address,
	mint_signature, provision_sig, graduation_sig, version, created_at, updated_at`

// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	return insertToken(ctx, s.pool, t)
}

func insertToken(ctx context.Context, q querier, t *domain.Token) error {
	query := `
		INSERT INTO curve_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := q.Exec(ctx, query,
		t.Mint, t.Name, t.Symbol, t.CreatorID, t.CreatorWallet, t.CurveAccount, int16(t.Decimals),
		t.Supply, t.TokensSold, t.Reserve, t.AccruedFees, string(t.Status), t.Graduated, t.PoolAddress,
		t.MintSignature, t.ProvisionSig, t.GraduationSig, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByMint returns ErrNotFound if absent.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM curve_tokens WHERE mint = $1`

	t, err := scanToken(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// CompareAndSwap writes t if the stored version equals expectedVersion.
func (s *TokenStore) CompareAndSwap(ctx context.Context, t *domain.Token, expectedVersion int64) error {
	return swapToken(ctx, s.pool, t, expectedVersion)
}

func swapToken(ctx context.Context, q querier, t *domain.Token, expectedVersion int64) error {
	query := `
		UPDATE curve_tokens
		SET curve_account = $2, tokens_sold = $3, reserve = $4, accrued_fees = $5, status = $6,
			graduated = $7, pool_address = $8, provision_sig = $9, graduation_sig = $10,
			updated_at = $11, version = version + 1
		WHERE mint = $1 AND version = $12
	`

	tag, err := q.Exec(ctx, query,
		t.Mint, t.CurveAccount, t.TokensSold, t.Reserve, t.AccruedFees, string(t.Status),
		t.Graduated, t.PoolAddress, t.ProvisionSig, t.GraduationSig, t.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("swap token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	t.Version = expectedVersion + 1
	return nil
}

// List returns tokens in status, or all tokens when status is empty.
func (s *TokenStore) List(ctx context.Context, status domain.TokenStatus) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM curve_tokens
		WHERE $1 = '' OR status = $1
		ORDER BY created_at ASC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return result, nil
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		t        domain.Token
		decimals int16
		status   string
	)
	err := row.Scan(
		&t.Mint, &t.Name, &t.Symbol, &t.CreatorID, &t.CreatorWallet, &t.CurveAccount, &decimals,
		&t.Supply, &t.TokensSold, &t.Reserve, &t.AccruedFees, &status, &t.Graduated, &t.PoolAddress,
		&t.MintSignature, &t.ProvisionSig, &t.GraduationSig, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Decimals = uint8(decimals)
	t.Status = domain.TokenStatus(status)
	return &t, nil
}
