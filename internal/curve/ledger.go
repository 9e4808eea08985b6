// Package curve implements the bonding-curve quote model.
//
// The curve relates the quote reserve backing a token to the token amount
// released by a trade: tokens = K / reserveAfter². All arithmetic is done on
// 256-bit integers so intermediate squares never overflow or lose precision.
package curve

import (
	"github.com/holiman/uint256"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/domain"
)

// Default curve parameters.
const (
	DefaultK          = 30_000_000_000
	DefaultBuyFeeBps  = 100 // 1%
	DefaultSellFeeBps = 100 // 1%
	bpsDenominator    = 10_000
)

// Curve errors.
var (
	ErrInvalidInput        = apperr.New(apperr.Validation, "invalid_curve_input", "curve: amount and reserve must be positive")
	ErrZeroOutput          = apperr.New(apperr.Client, "trade_too_small", "curve: trade produces no output")
	ErrInsufficientReserve = apperr.New(apperr.Client, "insufficient_reserve", "curve: reserve cannot cover sell")
	ErrOverflow            = apperr.New(apperr.Validation, "curve_overflow", "curve: amount out of range")
)

// Ledger quotes trades against a token's reserve. It has no side effects;
// callers persist the resulting reserve.
type Ledger struct {
	K          uint64
	BuyFeeBps  uint64
	SellFeeBps uint64
}

// NewLedger creates a ledger with the default fee schedule.
func NewLedger(k uint64) *Ledger {
	if k == 0 {
		k = DefaultK
	}
	return &Ledger{K: k, BuyFeeBps: DefaultBuyFeeBps, SellFeeBps: DefaultSellFeeBps}
}

// Quote is the outcome of pricing one trade.
//
// For buys AmountIn is quote units and AmountOut is whole tokens.
// For sells AmountIn is whole tokens and AmountOut is quote units paid to the seller.
// Fee is always quote units retained by the protocol.
type Quote struct {
	Side          domain.TradeSide
	AmountIn      uint64
	EffectiveIn   uint64
	Fee           uint64
	AmountOut     uint64
	ReserveBefore uint64
	ReserveAfter  uint64
}

// Quote prices a trade in the given direction.
func (l *Ledger) Quote(side domain.TradeSide, amountIn, reserve uint64) (*Quote, error) {
	switch side {
	case domain.SideBuy:
		return l.QuoteBuy(amountIn, reserve)
	case domain.SideSell:
		return l.QuoteSell(amountIn, reserve)
	default:
		return nil, ErrInvalidInput
	}
}

// QuoteBuy prices spending amountIn quote units.
// The buy fee is deducted before pricing: reserveAfter = reserve + amountIn*(1-fee).
func (l *Ledger) QuoteBuy(amountIn, reserve uint64) (*Quote, error) {
	if amountIn == 0 || reserve == 0 {
		return nil, ErrInvalidInput
	}

	fee := mulBps(amountIn, l.BuyFeeBps)
	effectiveIn := amountIn - fee

	after, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(reserve), uint256.NewInt(effectiveIn))
	if overflow || !after.IsUint64() {
		return nil, ErrOverflow
	}

	out := l.tokensAt(after)
	if out == 0 {
		return nil, ErrZeroOutput
	}

	return &Quote{
		Side:          domain.SideBuy,
		AmountIn:      amountIn,
		EffectiveIn:   effectiveIn,
		Fee:           fee,
		AmountOut:     out,
		ReserveBefore: reserve,
		ReserveAfter:  after.Uint64(),
	}, nil
}

// QuoteSell prices returning tokenAmount whole tokens to the curve.
// The reserve after the sell is the one at which the curve releases exactly
// tokenAmount: reserveAfter = floor(sqrt(K / tokenAmount)). The difference is
// released, less the sell fee.
func (l *Ledger) QuoteSell(tokenAmount, reserve uint64) (*Quote, error) {
	if tokenAmount == 0 || reserve == 0 {
		return nil, ErrInvalidInput
	}

	ratio := new(uint256.Int).Div(uint256.NewInt(l.K), uint256.NewInt(tokenAmount))
	after := new(uint256.Int).Sqrt(ratio)
	if after.IsZero() {
		return nil, ErrInsufficientReserve
	}
	if !after.Lt(uint256.NewInt(reserve)) {
		return nil, ErrZeroOutput
	}

	gross := reserve - after.Uint64()
	fee := mulBps(gross, l.SellFeeBps)
	if gross-fee == 0 {
		return nil, ErrZeroOutput
	}

	return &Quote{
		Side:          domain.SideSell,
		AmountIn:      tokenAmount,
		EffectiveIn:   tokenAmount,
		Fee:           fee,
		AmountOut:     gross - fee,
		ReserveBefore: reserve,
		ReserveAfter:  after.Uint64(),
	}, nil
}

// SpotTokens returns how many whole tokens the curve releases at the given reserve.
func (l *Ledger) SpotTokens(reserve uint64) uint64 {
	if reserve == 0 {
		return 0
	}
	return l.tokensAt(uint256.NewInt(reserve))
}

func (l *Ledger) tokensAt(reserve *uint256.Int) uint64 {
	sq := new(uint256.Int).Mul(reserve, reserve)
	out := new(uint256.Int).Div(uint256.NewInt(l.K), sq)
	// K fits in uint64, so the quotient does too.
	return out.Uint64()
}

func mulBps(amount, bps uint64) uint64 {
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(bps))
	v.Div(v, uint256.NewInt(bpsDenominator))
	return v.Uint64()
}
