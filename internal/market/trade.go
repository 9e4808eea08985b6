package market

import (
	"context"
	"errors"
	"fmt"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/curve"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/idhash"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/verification"
	"solana-marketplace/internal/wallet"
)

// TradeRequest is a curve trade backed by a payment to the reserve wallet.
// For buys Amount is quote base units paid; for sells it is whole tokens
// returned.
type TradeRequest struct {
	Mint             string
	PaymentSignature string
	Trader           string
	Amount           uint64
}

// TradeOutcome is the result of Buy or Sell.
type TradeOutcome struct {
	Trade  *domain.CurveTrade
	Replay bool
}

// TradeQuote is a read-only price for a prospective trade.
// Buys: AmountIn is quote base units, AmountOut raw token units.
// Sells: AmountIn is whole tokens, AmountOut quote base units.
type TradeQuote struct {
	Mint          string           `json:"mint"`
	Side          domain.TradeSide `json:"side"`
	AmountIn      uint64           `json:"amount_in"`
	AmountOut     uint64           `json:"amount_out"`
	Fee           uint64           `json:"fee"`
	ReserveBefore uint64           `json:"reserve_before"`
	ReserveAfter  uint64           `json:"reserve_after"`
}

// Buy spends a verified quote payment on the curve and delivers the tokens.
func (m *Market) Buy(ctx context.Context, req TradeRequest) (*TradeOutcome, error) {
	return m.trade(ctx, domain.SideBuy, req)
}

// Sell returns verified tokens to the curve and pays out the quote asset.
func (m *Market) Sell(ctx context.Context, req TradeRequest) (*TradeOutcome, error) {
	return m.trade(ctx, domain.SideSell, req)
}

// QuoteTrade prices a trade against the current reserve without changing anything.
func (m *Market) QuoteTrade(ctx context.Context, mint string, side domain.TradeSide, amount uint64) (*TradeQuote, error) {
	if amount == 0 {
		return nil, ErrInvalidRequest
	}
	t, err := m.Token(ctx, mint)
	if err != nil {
		return nil, err
	}
	if err := tradable(t); err != nil {
		return nil, err
	}
	p, err := m.price(t, side, amount)
	if err != nil {
		return nil, err
	}
	return &TradeQuote{
		Mint:          mint,
		Side:          side,
		AmountIn:      amount,
		AmountOut:     p.out,
		Fee:           p.fee,
		ReserveBefore: p.q.ReserveBefore,
		ReserveAfter:  p.q.ReserveAfter,
	}, nil
}

func tradable(t *domain.Token) error {
	switch {
	case t.Graduated || t.Status == domain.TokenStatusGraduated:
		return ErrAlreadyGraduated
	case t.Status == domain.TokenStatusGraduating:
		return ErrGraduationInProgress
	case !t.Tradable():
		return ErrNotTradable
	}
	return nil
}

// priced is a curve quote converted to ledger units.
type priced struct {
	q    *curve.Quote
	out  uint64 // raw tokens (buy) or quote base units (sell) delivered
	fee  uint64 // quote base units retained, dust included
	held uint64 // change to TokensSold in raw units
}

func (m *Market) price(t *domain.Token, side domain.TradeSide, amount uint64) (*priced, error) {
	switch side {
	case domain.SideBuy:
		units, dust := m.toCurve(amount)
		if units == 0 {
			return nil, ErrTradeTooSmall
		}
		q, err := m.ledger.QuoteBuy(units, t.Reserve)
		if err != nil {
			return nil, err
		}
		raw, err := m.toRaw(q.AmountOut)
		if err != nil {
			return nil, err
		}
		if raw > t.Available() {
			return nil, ErrSupplyExhausted
		}
		fee, err := m.toBase(q.Fee)
		if err != nil {
			return nil, err
		}
		return &priced{q: q, out: raw, fee: fee + dust, held: raw}, nil

	case domain.SideSell:
		raw, err := m.toRaw(amount)
		if err != nil {
			return nil, err
		}
		if raw > t.TokensSold {
			return nil, ErrSellExceedsSold
		}
		q, err := m.ledger.QuoteSell(amount, t.Reserve)
		if err != nil {
			return nil, err
		}
		out, err := m.toBase(q.AmountOut)
		if err != nil {
			return nil, err
		}
		fee, err := m.toBase(q.Fee)
		if err != nil {
			return nil, err
		}
		return &priced{q: q, out: out, fee: fee, held: raw}, nil

	default:
		return nil, ErrInvalidRequest
	}
}

func (m *Market) expectation(side domain.TradeSide, t *domain.Token, req TradeRequest) (verification.Expected, error) {
	exp := verification.Expected{
		From: req.Trader,
		To:   m.cfg.ReserveWallet,
	}
	switch side {
	case domain.SideBuy:
		exp.Direction = domain.DirectionBuy
		exp.Amount = req.Amount
		exp.Mint = m.cfg.QuoteMint
	case domain.SideSell:
		raw, err := m.toRaw(req.Amount)
		if err != nil {
			return exp, err
		}
		exp.Direction = domain.DirectionSell
		exp.Amount = raw
		exp.Mint = t.Mint
	}
	return exp, nil
}

func (m *Market) trade(ctx context.Context, side domain.TradeSide, req TradeRequest) (*TradeOutcome, error) {
	if req.Mint == "" || req.PaymentSignature == "" || req.Trader == "" || req.Amount == 0 {
		return nil, ErrInvalidRequest
	}
	if err := wallet.ValidateAddress(req.Trader); err != nil {
		return nil, err
	}

	if side == domain.SideBuy && req.Amount < m.cfg.QuoteUnit {
		return nil, ErrTradeTooSmall
	}

	id := idhash.ComputeTradeID(req.Mint, side, req.PaymentSignature)
	if tr, err := m.stores.Trades.GetByID(ctx, id); err == nil {
		return &TradeOutcome{Trade: tr, Replay: true}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup trade: %w", err)
	}

	t, err := m.Token(ctx, req.Mint)
	if err != nil {
		return nil, err
	}
	if !t.Graduated {
		if err := tradable(t); err != nil {
			return nil, err
		}
	}

	exp, err := m.expectation(side, t, req)
	if err != nil {
		return nil, err
	}
	res, err := m.verifier.Verify(ctx, req.PaymentSignature, exp)
	if err != nil {
		return nil, err
	}
	if res.Replay {
		return m.replayTrade(ctx, id)
	}

	tr, replay, err := m.apply(ctx, side, id, t, res.Record, req)
	if err != nil {
		if !apperr.Retryable(apperr.ClassOf(err)) {
			// The payment is on the ledger; it stays verified for refund.
			m.logger.Error("verified trade payment left unapplied",
				"mint", req.Mint, "side", side, "signature", req.PaymentSignature, "error", err)
		}
		observability.RecordCurveTrade(string(side), "rejected")
		return nil, err
	}
	if replay {
		return m.replayTrade(ctx, id)
	}

	if tr.Status == domain.TradeForwarded {
		return m.forward(ctx, tr)
	}
	return m.deliver(ctx, tr)
}

func (m *Market) replayTrade(ctx context.Context, id string) (*TradeOutcome, error) {
	tr, err := m.stores.Trades.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load applied trade: %w", err)
	}
	return &TradeOutcome{Trade: tr, Replay: true}, nil
}

// apply records the trade and the new curve state in one step with the
// applied mark. It returns replay=true when another request applied the
// payment first. Lost version races are retried against a fresh token.
func (m *Market) apply(ctx context.Context, side domain.TradeSide, id string, t *domain.Token, rec *domain.ExternalTransactionRecord, req TradeRequest) (*domain.CurveTrade, bool, error) {
	now := m.now().UTC()
	rec.ResultRef = id
	rec.UpdatedAt = now

	for i := 0; i < m.cfg.CASRetries; i++ {
		tr := &domain.CurveTrade{
			ID:               id,
			Mint:             t.Mint,
			Side:             side,
			Trader:           req.Trader,
			PaymentSignature: req.PaymentSignature,
			AmountIn:         req.Amount,
			ReserveBefore:    t.Reserve,
			ReserveAfter:     t.Reserve,
			Status:           domain.TradePending,
			CreatedAt:        now,
		}
		next := *t
		next.UpdatedAt = now

		if t.Graduated {
			// The pool trades graduated tokens; the curve is untouched.
			tr.Status = domain.TradeForwarded
		} else {
			if err := tradable(t); err != nil {
				return nil, false, err
			}
			p, err := m.price(t, side, req.Amount)
			if err != nil {
				return nil, false, err
			}
			tr.AmountOut = p.out
			tr.Fee = p.fee
			tr.ReserveAfter = p.q.ReserveAfter
			next.Reserve = p.q.ReserveAfter
			next.AccruedFees += p.fee
			if side == domain.SideBuy {
				next.TokensSold += p.held
			} else {
				next.TokensSold -= p.held
			}
		}

		err := m.stores.Applier.ApplyTrade(ctx, rec, &next, t.Version, tr)
		switch {
		case err == nil:
			m.logger.Info("curve trade applied",
				"trade", id, "mint", t.Mint, "side", side, "in", tr.AmountIn, "out", tr.AmountOut,
				"reserve_before", tr.ReserveBefore, "reserve_after", tr.ReserveAfter)
			return tr, false, nil
		case errors.Is(err, storage.ErrDuplicateKey):
			return nil, true, nil
		case !errors.Is(err, storage.ErrConflict):
			return nil, false, fmt.Errorf("apply trade: %w", err)
		}

		// Either the record was applied elsewhere or the token moved.
		if _, err := m.stores.Trades.GetByID(ctx, id); err == nil {
			return nil, true, nil
		}
		fresh, err := m.stores.Tokens.GetByMint(ctx, t.Mint)
		if err != nil {
			return nil, false, fmt.Errorf("reload token: %w", err)
		}
		t = fresh
	}
	return nil, false, ErrContention
}

// deliver sends the trade's output from the reserve wallet to the trader.
func (m *Market) deliver(ctx context.Context, tr *domain.CurveTrade) (*TradeOutcome, error) {
	transfer := executor.Transfer{
		From:   m.cfg.ReserveWallet,
		To:     tr.Trader,
		Amount: tr.AmountOut,
		Mint:   tr.Mint,
	}
	if tr.Side == domain.SideSell {
		transfer.Mint = m.cfg.QuoteMint
	}

	res, err := m.executor.Execute(ctx, []executor.Transfer{transfer}, m.cfg.ReserveWallet)
	bg := context.WithoutCancel(ctx)
	if res != nil && res.Signature != "" {
		tr.DeliverySig = res.Signature
	}

	switch {
	case err == nil:
		return &TradeOutcome{Trade: tr}, m.finishTrade(bg, tr, domain.TradeCompleted, "")

	case errors.Is(err, executor.ErrPendingConfirmation):
		m.logger.Warn("trade delivery pending confirmation", "trade", tr.ID, "signature", tr.DeliverySig)
		if uerr := m.stores.Trades.UpdateDelivery(bg, tr.ID, domain.TradePending, domain.TradePending, tr.DeliverySig, ""); uerr != nil {
			m.logger.Error("record delivery signature", "trade", tr.ID, "error", uerr)
		}
		observability.RecordCurveTrade(string(tr.Side), string(domain.TradePending))
		return &TradeOutcome{Trade: tr}, nil

	default:
		if ferr := m.finishTrade(bg, tr, domain.TradeFailed, err.Error()); ferr != nil {
			return nil, ferr
		}
		return &TradeOutcome{Trade: tr}, fmt.Errorf("deliver trade: %w", err)
	}
}

// forward hands a graduated token trade to the pool.
func (m *Market) forward(ctx context.Context, tr *domain.CurveTrade) (*TradeOutcome, error) {
	amount := tr.AmountIn
	if tr.Side == domain.SideSell {
		raw, err := m.toRaw(tr.AmountIn)
		if err != nil {
			return nil, err
		}
		amount = raw
	}

	res, err := m.pool.Swap(ctx, SwapRequest{
		Mint:             tr.Mint,
		Action:           tr.Side,
		Amount:           amount,
		Trader:           tr.Trader,
		PaymentSignature: tr.PaymentSignature,
	})
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if ferr := m.finishTrade(bg, tr, domain.TradeFailed, err.Error()); ferr != nil {
			return nil, ferr
		}
		return &TradeOutcome{Trade: tr}, fmt.Errorf("forward trade: %w", err)
	}

	tr.AmountOut = res.AmountOut
	tr.DeliverySig = res.Reference
	if err := m.stores.Trades.UpdateDelivery(bg, tr.ID, domain.TradeForwarded, domain.TradeCompleted, tr.DeliverySig, ""); err != nil {
		return nil, fmt.Errorf("record forwarded trade: %w", err)
	}
	tr.Status = domain.TradeCompleted
	m.logger.Info("trade forwarded to pool", "trade", tr.ID, "mint", tr.Mint, "reference", res.Reference)
	observability.RecordCurveTrade(string(tr.Side), string(domain.TradeForwarded))
	return &TradeOutcome{Trade: tr}, nil
}

func (m *Market) finishTrade(ctx context.Context, tr *domain.CurveTrade, to domain.TradeStatus, reason string) error {
	from := tr.Status
	if err := m.stores.Trades.UpdateDelivery(ctx, tr.ID, from, to, tr.DeliverySig, reason); err != nil {
		return fmt.Errorf("update trade %s: %w", to, err)
	}
	tr.Status = to
	tr.FailureReason = reason
	observability.RecordCurveTrade(string(tr.Side), string(to))

	if to == domain.TradeFailed {
		m.logger.Error("curve trade failed",
			"trade", tr.ID, "mint", tr.Mint, "side", tr.Side, "signature", tr.DeliverySig, "reason", reason)
		m.notifyTradeFailed(ctx, tr)
		return nil
	}
	m.logger.Info("curve trade delivered", "trade", tr.ID, "signature", tr.DeliverySig)
	return nil
}
