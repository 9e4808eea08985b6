package settlement

import (
	"context"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/pricing"
)

// PlatformRecipient addresses commission notices.
const PlatformRecipient = "platform"

type receiptPayload struct {
	SettlementID string `json:"settlement_id"`
	ItemID       string `json:"item_id"`
	ItemName     string `json:"item_name"`
	ItemType     string `json:"item_type"`
	Amount       uint64 `json:"amount_lamports"`
	AmountSOL    string `json:"amount_sol"`
	Signature    string `json:"signature"`
}

type payoutPayload struct {
	SettlementID string `json:"settlement_id"`
	ItemID       string `json:"item_id"`
	ItemName     string `json:"item_name"`
	BuyerID      string `json:"buyer_id"`
	Gross        uint64 `json:"gross_lamports"`
	Fee          uint64 `json:"fee_lamports"`
	Net          uint64 `json:"net_lamports"`
	NetSOL       string `json:"net_sol"`
	Signature    string `json:"signature"`
}

type commissionPayload struct {
	SettlementID  string `json:"settlement_id"`
	ItemType      string `json:"item_type"`
	Gross         uint64 `json:"gross_lamports"`
	Commission    uint64 `json:"commission_lamports"`
	CommissionSOL string `json:"commission_sol"`
	Signature     string `json:"signature"`
}

type failurePayload struct {
	SettlementID string `json:"settlement_id"`
	BuyerID      string `json:"buyer_id"`
	SellerID     string `json:"seller_id"`
	Gross        uint64 `json:"gross_lamports"`
	Reason       string `json:"reason"`
	Payment      string `json:"payment_signature"`
	Payout       string `json:"payout_signature,omitempty"`
}

func sol(lamports uint64) string {
	return pricing.FormatAmount(pricing.ToUnits(lamports, 9))
}

func (d *Distributor) notifyCompleted(ctx context.Context, s *domain.SettlementTransaction) {
	if d.notifier == nil {
		return
	}
	d.notifier.Enqueue(ctx, domain.NotifyBuyerReceipt, s.ID, s.BuyerID, receiptPayload{
		SettlementID: s.ID,
		ItemID:       s.ItemID,
		ItemName:     s.ItemName,
		ItemType:     string(s.ItemType),
		Amount:       s.GrossAmount,
		AmountSOL:    sol(s.GrossAmount),
		Signature:    s.PaymentSignature,
	})
	d.notifier.Enqueue(ctx, domain.NotifySellerPayout, s.ID, s.SellerID, payoutPayload{
		SettlementID: s.ID,
		ItemID:       s.ItemID,
		ItemName:     s.ItemName,
		BuyerID:      s.BuyerID,
		Gross:        s.GrossAmount,
		Fee:          s.PlatformFee,
		Net:          s.SellerNet,
		NetSOL:       sol(s.SellerNet),
		Signature:    s.PayoutSignature,
	})
	d.notifier.Enqueue(ctx, domain.NotifyPlatformCommission, s.ID, PlatformRecipient, commissionPayload{
		SettlementID:  s.ID,
		ItemType:      string(s.ItemType),
		Gross:         s.GrossAmount,
		Commission:    s.PlatformFee,
		CommissionSOL: sol(s.PlatformFee),
		Signature:     s.PayoutSignature,
	})
}

func (d *Distributor) notifyFailed(ctx context.Context, s *domain.SettlementTransaction) {
	if d.notifier == nil || d.cfg.OperatorRecipient == "" {
		return
	}
	d.notifier.Enqueue(ctx, domain.NotifySettlementFailed, s.ID, d.cfg.OperatorRecipient, failurePayload{
		SettlementID: s.ID,
		BuyerID:      s.BuyerID,
		SellerID:     s.SellerID,
		Gross:        s.GrossAmount,
		Reason:       s.FailureReason,
		Payment:      s.PaymentSignature,
		Payout:       s.PayoutSignature,
	})
}
