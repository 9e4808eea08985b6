package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// Applier implements storage.Applier with one database transaction per call.
type Applier struct {
	pool *Pool
}

// NewApplier creates a new Applier.
func NewApplier(pool *Pool) *Applier {
	return &Applier{pool: pool}
}

// Compile-time interface check.
var _ storage.Applier = (*Applier)(nil)

func markApplied(ctx context.Context, tx pgx.Tx, rec *domain.ExternalTransactionRecord) error {
	applied := *rec
	applied.Status = domain.TxStatusApplied
	return transitionRecord(ctx, tx, &applied, domain.TxStatusVerified)
}

// ApplyMint inserts t and marks rec applied.
func (a *Applier) ApplyMint(ctx context.Context, rec *domain.ExternalTransactionRecord, t *domain.Token) error {
	err := a.pool.inTx(ctx, func(tx pgx.Tx) error {
		if err := markApplied(ctx, tx, rec); err != nil {
			return err
		}
		return insertToken(ctx, tx, t)
	})
	if err != nil {
		return err
	}
	rec.Status = domain.TxStatusApplied
	return nil
}

// ApplyTrade swaps t at expectedVersion, inserts trade and marks rec applied.
func (a *Applier) ApplyTrade(ctx context.Context, rec *domain.ExternalTransactionRecord, t *domain.Token, expectedVersion int64, trade *domain.CurveTrade) error {
	err := a.pool.inTx(ctx, func(tx pgx.Tx) error {
		if err := markApplied(ctx, tx, rec); err != nil {
			return err
		}
		if err := swapToken(ctx, tx, t, expectedVersion); err != nil {
			return err
		}
		return insertTrade(ctx, tx, trade)
	})
	if err != nil {
		// The version bump only holds if the transaction committed.
		t.Version = expectedVersion
		return err
	}
	rec.Status = domain.TxStatusApplied
	return nil
}

// ApplySettlement inserts s and p and marks rec applied.
func (a *Applier) ApplySettlement(ctx context.Context, rec *domain.ExternalTransactionRecord, s *domain.SettlementTransaction, p *domain.Purchase) error {
	err := a.pool.inTx(ctx, func(tx pgx.Tx) error {
		if err := markApplied(ctx, tx, rec); err != nil {
			return err
		}
		if err := insertSettlement(ctx, tx, s); err != nil {
			return err
		}
		return insertPurchase(ctx, tx, p)
	})
	if err != nil {
		return err
	}
	rec.Status = domain.TxStatusApplied
	return nil
}
