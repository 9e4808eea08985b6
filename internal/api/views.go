package api

import (
	"time"

	"solana-marketplace/internal/domain"
)

type listingView struct {
	ItemID       string          `json:"item_id"`
	ItemType     domain.ItemType `json:"item_type"`
	Name         string          `json:"name"`
	SellerID     string          `json:"seller_id"`
	SellerWallet string          `json:"seller_wallet"`
	Price        uint64          `json:"price"`
	IsFree       bool            `json:"is_free"`
	CreatedAt    time.Time       `json:"created_at"`
}

func viewListing(l *domain.Listing) listingView {
	return listingView{
		ItemID:       l.ItemID,
		ItemType:     l.ItemType,
		Name:         l.Name,
		SellerID:     l.SellerID,
		SellerWallet: l.SellerWallet,
		Price:        l.Price,
		IsFree:       l.IsFree,
		CreatedAt:    l.CreatedAt,
	}
}

type settlementView struct {
	ID               string                  `json:"id"`
	BuyerID          string                  `json:"buyer_id"`
	BuyerWallet      string                  `json:"buyer_wallet"`
	SellerID         string                  `json:"seller_id"`
	SellerWallet     string                  `json:"seller_wallet"`
	ItemID           string                  `json:"item_id"`
	ItemType         domain.ItemType         `json:"item_type"`
	ItemName         string                  `json:"item_name"`
	GrossAmount      uint64                  `json:"gross_amount"`
	PlatformFee      uint64                  `json:"platform_fee"`
	SellerNet        uint64                  `json:"seller_net"`
	PaymentSignature string                  `json:"payment_signature"`
	PayoutSignature  string                  `json:"payout_signature,omitempty"`
	Status           domain.SettlementStatus `json:"status"`
	FailureReason    string                  `json:"failure_reason,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	CompletedAt      *time.Time              `json:"completed_at,omitempty"`
}

func viewSettlement(s *domain.SettlementTransaction) *settlementView {
	if s == nil {
		return nil
	}
	return &settlementView{
		ID:               s.ID,
		BuyerID:          s.BuyerID,
		BuyerWallet:      s.BuyerWallet,
		SellerID:         s.SellerID,
		SellerWallet:     s.SellerWallet,
		ItemID:           s.ItemID,
		ItemType:         s.ItemType,
		ItemName:         s.ItemName,
		GrossAmount:      s.GrossAmount,
		PlatformFee:      s.PlatformFee,
		SellerNet:        s.SellerNet,
		PaymentSignature: s.PaymentSignature,
		PayoutSignature:  s.PayoutSignature,
		Status:           s.Status,
		FailureReason:    s.FailureReason,
		CreatedAt:        s.CreatedAt,
		CompletedAt:      s.CompletedAt,
	}
}

func viewSettlements(list []*domain.SettlementTransaction) []*settlementView {
	out := make([]*settlementView, len(list))
	for i, s := range list {
		out[i] = viewSettlement(s)
	}
	return out
}

type tokenView struct {
	Mint          string             `json:"mint"`
	Name          string             `json:"name"`
	Symbol        string             `json:"symbol"`
	CreatorID     string             `json:"creator_id"`
	CreatorWallet string             `json:"creator_wallet"`
	CurveAccount  string             `json:"curve_account"`
	Decimals      uint8              `json:"decimals"`
	Supply        uint64             `json:"supply"`
	TokensSold    uint64             `json:"tokens_sold"`
	Reserve       uint64             `json:"reserve"`
	AccruedFees   uint64             `json:"accrued_fees"`
	Status        domain.TokenStatus `json:"status"`
	Graduated     bool               `json:"graduated"`
	PoolAddress   string             `json:"pool_address,omitempty"`
	MintSignature string             `json:"mint_signature"`
	GraduationSig string             `json:"graduation_signature,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func viewToken(t *domain.Token) *tokenView {
	if t == nil {
		return nil
	}
	return &tokenView{
		Mint:          t.Mint,
		Name:          t.Name,
		Symbol:        t.Symbol,
		CreatorID:     t.CreatorID,
		CreatorWallet: t.CreatorWallet,
		CurveAccount:  t.CurveAccount,
		Decimals:      t.Decimals,
		Supply:        t.Supply,
		TokensSold:    t.TokensSold,
		Reserve:       t.Reserve,
		AccruedFees:   t.AccruedFees,
		Status:        t.Status,
		Graduated:     t.Graduated,
		PoolAddress:   t.PoolAddress,
		MintSignature: t.MintSignature,
		GraduationSig: t.GraduationSig,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

type tradeView struct {
	ID               string             `json:"id"`
	Mint             string             `json:"mint"`
	Side             domain.TradeSide   `json:"side"`
	Trader           string             `json:"trader"`
	PaymentSignature string             `json:"payment_signature"`
	AmountIn         uint64             `json:"amount_in"`
	AmountOut        uint64             `json:"amount_out"`
	Fee              uint64             `json:"fee"`
	ReserveBefore    uint64             `json:"reserve_before"`
	ReserveAfter     uint64             `json:"reserve_after"`
	DeliverySig      string             `json:"delivery_signature,omitempty"`
	Status           domain.TradeStatus `json:"status"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

func viewTrade(t *domain.CurveTrade) *tradeView {
	if t == nil {
		return nil
	}
	return &tradeView{
		ID:               t.ID,
		Mint:             t.Mint,
		Side:             t.Side,
		Trader:           t.Trader,
		PaymentSignature: t.PaymentSignature,
		AmountIn:         t.AmountIn,
		AmountOut:        t.AmountOut,
		Fee:              t.Fee,
		ReserveBefore:    t.ReserveBefore,
		ReserveAfter:     t.ReserveAfter,
		DeliverySig:      t.DeliverySig,
		Status:           t.Status,
		FailureReason:    t.FailureReason,
		CreatedAt:        t.CreatedAt,
	}
}

type statsView struct {
	TotalSales       int    `json:"total_sales"`
	CompletedSales   int    `json:"completed_sales"`
	FailedSales      int    `json:"failed_sales"`
	PendingSales     int    `json:"pending_sales"`
	TotalVolume      uint64 `json:"total_volume"`
	TotalCommissions uint64 `json:"total_commissions"`
	UniqueBuyers     int    `json:"unique_buyers"`
	UniqueSellers    int    `json:"unique_sellers"`
}

type walletView struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
