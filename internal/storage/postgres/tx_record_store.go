package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TxRecordStore implements storage.TxRecordStore using PostgreSQL.
type TxRecordStore struct {
	pool *Pool
}

// NewTxRecordStore creates a new TxRecordStore.
func NewTxRecordStore(pool *Pool) *TxRecordStore {
	return &TxRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TxRecordStore = (*TxRecordStore)(nil)

const recordColumns = `signature, direction, amount, from_addr, to_addr, mint, status,
	slot, block_time, reason, result_ref, created_at, updated_at`

// Insert adds r if its signature is absent. Returns ErrDuplicateKey otherwise.
func (s *TxRecordStore) Insert(ctx context.Context, r *domain.ExternalTransactionRecord) error {
	query := `
		INSERT INTO external_tx_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (signature) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		r.Signature, string(r.Direction), r.Amount, r.From, r.To, r.Mint, string(r.Status),
		r.Slot, r.BlockTime, r.Reason, r.ResultRef, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tx record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetBySignature returns ErrNotFound if absent.
func (s *TxRecordStore) GetBySignature(ctx context.Context, signature string) (*domain.ExternalTransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM external_tx_records WHERE signature = $1`

	var (
		r         domain.ExternalTransactionRecord
		direction string
		status    string
	)
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&r.Signature, &direction, &r.Amount, &r.From, &r.To, &r.Mint, &status,
		&r.Slot, &r.BlockTime, &r.Reason, &r.ResultRef, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tx record: %w", err)
	}
	r.Direction = domain.TxDirection(direction)
	r.Status = domain.TxRecordStatus(status)
	return &r, nil
}

// Transition overwrites the record if its stored status equals from.
func (s *TxRecordStore) Transition(ctx context.Context, r *domain.ExternalTransactionRecord, from domain.TxRecordStatus) error {
	return transitionRecord(ctx, s.pool, r, from)
}

func transitionRecord(ctx context.Context, q querier, r *domain.ExternalTransactionRecord, from domain.TxRecordStatus) error {
	query := `
		UPDATE external_tx_records
		SET direction = $2, amount = $3, from_addr = $4, to_addr = $5, mint = $6, status = $7,
			slot = $8, block_time = $9, reason = $10, result_ref = $11, updated_at = $12
		WHERE signature = $1 AND status = $13
	`

	tag, err := q.Exec(ctx, query,
		r.Signature, string(r.Direction), r.Amount, r.From, r.To, r.Mint, string(r.Status),
		r.Slot, r.BlockTime, r.Reason, r.ResultRef, r.UpdatedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("transition tx record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// ClaimStale refreshes a pending record last updated before staleBefore.
func (s *TxRecordStore) ClaimStale(ctx context.Context, signature string, staleBefore, now time.Time) error {
	query := `
		UPDATE external_tx_records
		SET updated_at = $3
		WHERE signature = $1 AND status = $4 AND updated_at < $2
	`

	tag, err := s.pool.Exec(ctx, query, signature, staleBefore, now, string(domain.TxStatusPending))
	if err != nil {
		return fmt.Errorf("claim stale tx record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// DeletePending removes a pending record. Records in other states are kept.
func (s *TxRecordStore) DeletePending(ctx context.Context, signature string) error {
	query := `DELETE FROM external_tx_records WHERE signature = $1 AND status = $2`

	if _, err := s.pool.Exec(ctx, query, signature, string(domain.TxStatusPending)); err != nil {
		return fmt.Errorf("delete pending tx record: %w", err)
	}
	return nil
}
