package market

import (
	"context"
	"errors"
	"fmt"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/observability"
)

// GraduateRequest asks to move a token from the curve into the pool.
type GraduateRequest struct {
	Mint        string
	RequesterID string
}

var errNotTrading = errors.New("token left trading")

// Graduate moves a token's liquidity into the pool and closes curve trading.
//
// The trading→graduating compare-and-set is the single step that admits one
// graduation per token. The graduation fee and accrued protocol fees go to
// the treasury; the rest of the reserve and the unsold supply go to the pool.
// A fatal transfer error returns the token to trading. A transfer that is
// submitted but unconfirmed leaves it graduating for reconciliation.
func (m *Market) Graduate(ctx context.Context, req GraduateRequest) (*domain.Token, error) {
	if req.Mint == "" || req.RequesterID == "" {
		return nil, ErrInvalidRequest
	}
	t, err := m.Token(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	if t.CreatorID != req.RequesterID {
		return nil, ErrNotCreator
	}
	if err := tradable(t); err != nil {
		return nil, err
	}

	// Checks run on the version the CAS writes, so a reload sees them again.
	t, err = m.swap(ctx, t, func(n *domain.Token) error {
		if n.Status != domain.TokenStatusTrading || n.Graduated {
			return errNotTrading
		}
		if n.Reserve < m.cfg.GraduationThreshold {
			return ErrBelowThreshold
		}
		base, err := m.toBase(n.Reserve)
		if err != nil {
			return err
		}
		if base <= m.cfg.GraduationFee {
			return ErrReserveBelowFee
		}
		n.Status = domain.TokenStatusGraduating
		return nil
	})
	if errors.Is(err, errNotTrading) {
		observability.RecordGraduation("rejected")
		return nil, ErrGraduationInProgress
	}
	if err != nil {
		return nil, err
	}
	reserveBase, err := m.toBase(t.Reserve)
	if err != nil {
		return m.abortGraduation(ctx, t, err)
	}
	m.logger.Info("graduation started", "mint", t.Mint, "reserve", t.Reserve)

	quote, err := m.pool.DepositQuote(ctx, DepositRequest{
		Mint:        t.Mint,
		QuoteMint:   m.cfg.QuoteMint,
		QuoteAmount: reserveBase - m.cfg.GraduationFee,
		TokenAmount: t.Available(),
	})
	if err != nil {
		return m.abortGraduation(ctx, t, fmt.Errorf("deposit quote: %w", err))
	}
	if quote.QuoteIn > reserveBase-m.cfg.GraduationFee || quote.TokenIn > t.Available() {
		return m.abortGraduation(ctx, t, fmt.Errorf("%w: deposit quote exceeds the token's reserve", ErrPoolUnavailable))
	}

	transfers := []executor.Transfer{
		{From: m.cfg.ReserveWallet, To: m.cfg.TreasuryWallet, Amount: m.cfg.GraduationFee + t.AccruedFees, Mint: m.cfg.QuoteMint},
		{From: m.cfg.ReserveWallet, To: quote.PoolAddress, Amount: quote.QuoteIn, Mint: m.cfg.QuoteMint},
		{From: m.cfg.ReserveWallet, To: quote.PoolAddress, Amount: quote.TokenIn, Mint: t.Mint},
	}
	res, err := m.executor.Execute(ctx, transfers, m.cfg.ReserveWallet)
	bg := context.WithoutCancel(ctx)
	sig := ""
	if res != nil {
		sig = res.Signature
	}

	switch {
	case err == nil:
		return m.completeGraduation(bg, t, quote.PoolAddress, sig)

	case errors.Is(err, executor.ErrPendingConfirmation):
		m.logger.Warn("graduation pending confirmation", "mint", t.Mint, "signature", sig)
		next, serr := m.swap(bg, t, func(n *domain.Token) error {
			n.GraduationSig = sig
			n.PoolAddress = quote.PoolAddress
			return nil
		})
		if serr != nil {
			m.logger.Error("record graduation signature", "mint", t.Mint, "signature", sig, "error", serr)
			return t, nil
		}
		observability.RecordGraduation("pending")
		return next, nil

	default:
		return m.abortGraduation(bg, t, fmt.Errorf("graduation transfer: %w", err))
	}
}

func (m *Market) completeGraduation(ctx context.Context, t *domain.Token, pool, sig string) (*domain.Token, error) {
	next, err := m.swap(ctx, t, func(n *domain.Token) error {
		if n.Status != domain.TokenStatusGraduating {
			return errNotTrading
		}
		n.Status = domain.TokenStatusGraduated
		n.Graduated = true
		n.PoolAddress = pool
		n.GraduationSig = sig
		n.Reserve = 0
		n.AccruedFees = 0
		n.TokensSold = n.Supply
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete graduation: %w", err)
	}

	m.logger.Info("token graduated", "mint", next.Mint, "pool", pool, "signature", sig)
	observability.RecordGraduation("graduated")
	m.notifyGraduated(ctx, next)
	return next, nil
}

// abortGraduation returns a graduating token to trading.
func (m *Market) abortGraduation(ctx context.Context, t *domain.Token, cause error) (*domain.Token, error) {
	ctx = context.WithoutCancel(ctx)
	next, err := m.swap(ctx, t, func(n *domain.Token) error {
		if n.Status != domain.TokenStatusGraduating {
			return errNotTrading
		}
		n.Status = domain.TokenStatusTrading
		n.GraduationSig = ""
		n.PoolAddress = ""
		return nil
	})
	if err != nil {
		m.logger.Error("revert graduation", "mint", t.Mint, "error", err)
		return nil, errors.Join(cause, err)
	}

	m.logger.Error("graduation aborted", "mint", t.Mint, "error", cause)
	observability.RecordGraduation("aborted")
	return next, cause
}
