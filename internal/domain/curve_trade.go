package domain

import "time"

// TradeSide is the direction of a curve trade.
type TradeSide string

// Trade sides.
const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeStatus is the delivery state of a curve trade.
type TradeStatus string

// Trade states.
const (
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
	TradeForwarded TradeStatus = "forwarded"
)

// CurveTrade records one buy or sell against a token's curve.
// AmountIn is quote units for buys and token units for sells.
type CurveTrade struct {
	ID               string
	Mint             string
	Side             TradeSide
	Trader           string
	PaymentSignature string
	AmountIn         uint64
	AmountOut        uint64
	Fee              uint64
	ReserveBefore    uint64
	ReserveAfter     uint64
	DeliverySig      string
	Status           TradeStatus
	FailureReason    string
	CreatedAt        time.Time
}
