package settlement

import (
	"context"
	"errors"
	"fmt"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// Reconciliation failure causes.
var (
	errPayoutNotSubmitted = errors.New("payout never submitted")
	errPayoutExpired      = errors.New("payout not confirmed before expiry")
	errPayoutFailed       = errors.New("payout failed on ledger")
)

// Reconcile resolves a pending settlement against the ledger. A payout that
// landed completes the settlement; one that failed, expired or was never
// submitted fails it. A payout still inside its expiry window is left pending.
//
// Payouts are never re-sent here: a settlement without a recorded signature
// may have crashed after submission, so it is failed for operator review.
func (d *Distributor) Reconcile(ctx context.Context, id string) (*domain.SettlementTransaction, error) {
	s, err := d.stores.Settlements.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	if s.Status != domain.SettlementPending {
		return nil, ErrNotPending
	}

	expired := d.now().Sub(s.CreatedAt) >= d.cfg.PayoutExpiry

	if s.PayoutSignature == "" {
		if !expired {
			return s, nil
		}
		return s, d.fail(ctx, s, errPayoutNotSubmitted)
	}

	statuses, err := d.rpc.GetSignatureStatuses(ctx, []string{s.PayoutSignature})
	if err != nil {
		return nil, fmt.Errorf("payout status: %w", err)
	}

	if len(statuses) > 0 && statuses[0] != nil {
		switch {
		case statuses[0].Err != nil:
			return s, d.fail(ctx, s, fmt.Errorf("%w: %v", errPayoutFailed, statuses[0].Err))
		case statuses[0].Confirmed():
			return s, d.complete(ctx, s)
		}
	}

	if expired {
		return s, d.fail(ctx, s, errPayoutExpired)
	}
	return s, nil
}

// ReconcilePending reconciles pending settlements, oldest first, and returns
// how many left the pending state.
func (d *Distributor) ReconcilePending(ctx context.Context, limit int) (int, error) {
	pending, err := d.stores.Settlements.ListByStatus(ctx, domain.SettlementPending, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	resolved := 0
	for _, p := range pending {
		s, err := d.Reconcile(ctx, p.ID)
		if err != nil {
			d.logger.Warn("reconcile settlement failed", "settlement", p.ID, "error", err)
			continue
		}
		if s.Status != domain.SettlementPending {
			resolved++
		}
	}
	return resolved, nil
}
