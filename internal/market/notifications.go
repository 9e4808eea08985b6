package market

import (
	"context"

	"solana-marketplace/internal/domain"
)

type mintedPayload struct {
	Mint         string `json:"mint"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	CurveAccount string `json:"curve_account"`
	Reserve      uint64 `json:"reserve"`
	Signature    string `json:"provision_signature"`
}

type graduatedPayload struct {
	Mint        string `json:"mint"`
	Symbol      string `json:"symbol"`
	PoolAddress string `json:"pool_address"`
	Signature   string `json:"signature"`
}

type tradeFailedPayload struct {
	TradeID   string           `json:"trade_id"`
	Mint      string           `json:"mint"`
	Side      domain.TradeSide `json:"side"`
	Trader    string           `json:"trader"`
	AmountOut uint64           `json:"amount_out"`
	Payment   string           `json:"payment_signature"`
	Delivery  string           `json:"delivery_signature,omitempty"`
	Reason    string           `json:"reason"`
}

func (m *Market) notifyMinted(ctx context.Context, t *domain.Token) {
	if m.notifier == nil {
		return
	}
	m.notifier.Enqueue(ctx, domain.NotifyTokenMinted, t.Mint, t.CreatorID, mintedPayload{
		Mint:         t.Mint,
		Name:         t.Name,
		Symbol:       t.Symbol,
		CurveAccount: t.CurveAccount,
		Reserve:      t.Reserve,
		Signature:    t.ProvisionSig,
	})
}

func (m *Market) notifyGraduated(ctx context.Context, t *domain.Token) {
	if m.notifier == nil {
		return
	}
	m.notifier.Enqueue(ctx, domain.NotifyTokenGraduated, t.Mint, t.CreatorID, graduatedPayload{
		Mint:        t.Mint,
		Symbol:      t.Symbol,
		PoolAddress: t.PoolAddress,
		Signature:   t.GraduationSig,
	})
}

func (m *Market) notifyTradeFailed(ctx context.Context, tr *domain.CurveTrade) {
	if m.notifier == nil || m.cfg.OperatorRecipient == "" {
		return
	}
	m.notifier.Enqueue(ctx, domain.NotifyTradeFailed, tr.ID, m.cfg.OperatorRecipient, tradeFailedPayload{
		TradeID:   tr.ID,
		Mint:      tr.Mint,
		Side:      tr.Side,
		Trader:    tr.Trader,
		AmountOut: tr.AmountOut,
		Payment:   tr.PaymentSignature,
		Delivery:  tr.DeliverySig,
		Reason:    tr.FailureReason,
	})
}
