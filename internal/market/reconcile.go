package market

import (
	"context"
	"errors"
	"fmt"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
)

var (
	errDeliveryNotSubmitted = errors.New("delivery never submitted")
	errDeliveryExpired      = errors.New("delivery not confirmed before expiry")
	errGraduationFailed     = errors.New("graduation transfer failed on ledger")
	errGraduationExpired    = errors.New("graduation transfer not confirmed before expiry")
)

// ReconcileToken resumes a token stuck between states. A created token is
// provisioned again. A graduating token is completed or returned to trading
// according to the ledger, and returned to trading once DeliveryExpiry has
// passed with nothing landed.
func (m *Market) ReconcileToken(ctx context.Context, mint string) (*domain.Token, error) {
	t, err := m.Token(ctx, mint)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case domain.TokenStatusCreated:
		mintKey, err := m.keys.DeriveMintKey(t.MintSignature)
		if err != nil {
			return nil, fmt.Errorf("derive mint key: %w", err)
		}
		return m.provision(ctx, t, mintKey)

	case domain.TokenStatusGraduating:
		// UpdatedAt is when the graduation claim or its signature was written.
		expired := m.now().Sub(t.UpdatedAt) >= m.cfg.DeliveryExpiry
		if t.GraduationSig == "" {
			if !expired {
				return t, nil
			}
			m.logger.Warn("graduating token has no transfer signature", "mint", t.Mint)
			return m.revertGraduation(ctx, t, errGraduationExpired)
		}
		st, err := m.status(ctx, t.GraduationSig)
		if err != nil {
			return nil, err
		}
		switch {
		case st != nil && st.Err != nil:
			return m.revertGraduation(ctx, t, fmt.Errorf("%w: %v", errGraduationFailed, st.Err))
		case st != nil && st.Confirmed():
			return m.completeGraduation(ctx, t, t.PoolAddress, t.GraduationSig)
		case st == nil && expired:
			return m.revertGraduation(ctx, t, errGraduationExpired)
		}
	}
	return t, nil
}

// revertGraduation returns t to trading. The cause is logged, not returned.
func (m *Market) revertGraduation(ctx context.Context, t *domain.Token, cause error) (*domain.Token, error) {
	next, err := m.abortGraduation(ctx, t, cause)
	if next == nil {
		return nil, err
	}
	return next, nil
}

// ReconcileTrade resolves a pending trade delivery against the ledger.
// Deliveries are never re-sent here.
func (m *Market) ReconcileTrade(ctx context.Context, id string) (*domain.CurveTrade, error) {
	tr, err := m.stores.Trades.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	if tr.Status != domain.TradePending {
		return nil, ErrTradeNotPending
	}

	expired := m.now().Sub(tr.CreatedAt) >= m.cfg.DeliveryExpiry
	if tr.DeliverySig == "" {
		if !expired {
			return tr, nil
		}
		return tr, m.finishTrade(ctx, tr, domain.TradeFailed, errDeliveryNotSubmitted.Error())
	}

	st, err := m.status(ctx, tr.DeliverySig)
	if err != nil {
		return nil, err
	}
	switch {
	case st != nil && st.Err != nil:
		return tr, m.finishTrade(ctx, tr, domain.TradeFailed, fmt.Sprintf("delivery failed on ledger: %v", st.Err))
	case st != nil && st.Confirmed():
		return tr, m.finishTrade(ctx, tr, domain.TradeCompleted, "")
	case expired:
		return tr, m.finishTrade(ctx, tr, domain.TradeFailed, errDeliveryExpired.Error())
	}
	return tr, nil
}

// ReconcilePending reconciles created and graduating tokens and up to limit
// pending trades, and returns how many changed state.
func (m *Market) ReconcilePending(ctx context.Context, limit int) (int, error) {
	resolved := 0
	for _, status := range []domain.TokenStatus{domain.TokenStatusCreated, domain.TokenStatusGraduating} {
		tokens, err := m.stores.Tokens.List(ctx, status)
		if err != nil {
			return resolved, fmt.Errorf("list %s tokens: %w", status, err)
		}
		for _, t := range tokens {
			next, err := m.ReconcileToken(ctx, t.Mint)
			if err != nil {
				m.logger.Warn("reconcile token failed", "mint", t.Mint, "error", err)
				continue
			}
			if next.Status != status {
				resolved++
			}
		}
	}

	trades, err := m.stores.Trades.ListByStatus(ctx, domain.TradePending, limit)
	if err != nil {
		return resolved, fmt.Errorf("list pending trades: %w", err)
	}
	for _, tr := range trades {
		next, err := m.ReconcileTrade(ctx, tr.ID)
		if err != nil {
			m.logger.Warn("reconcile trade failed", "trade_id", tr.ID, "error", err)
			continue
		}
		if next.Status != domain.TradePending {
			resolved++
		}
	}
	return resolved, nil
}

func (m *Market) status(ctx context.Context, sig string) (*solana.SignatureStatus, error) {
	statuses, err := m.rpc.GetSignatureStatuses(ctx, []string{sig})
	if err != nil {
		return nil, fmt.Errorf("signature status: %w", err)
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return statuses[0], nil
}
