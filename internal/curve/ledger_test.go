package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-marketplace/internal/domain"
)

func TestQuoteBuy_ReferenceScenario(t *testing.T) {
	l := NewLedger(DefaultK)

	q, err := l.QuoteBuy(100, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(99), q.EffectiveIn)
	assert.Equal(t, uint64(1), q.Fee)
	assert.Equal(t, uint64(1099), q.ReserveAfter)
	assert.Equal(t, uint64(DefaultK/(1099*1099)), q.AmountOut)
	assert.Equal(t, uint64(24838), q.AmountOut)
}

func TestQuote_InvalidInput(t *testing.T) {
	l := NewLedger(DefaultK)

	tests := []struct {
		name    string
		side    domain.TradeSide
		amount  uint64
		reserve uint64
	}{
		{"buy zero amount", domain.SideBuy, 0, 1000},
		{"buy zero reserve", domain.SideBuy, 100, 0},
		{"sell zero amount", domain.SideSell, 0, 1000},
		{"sell zero reserve", domain.SideSell, 100, 0},
		{"unknown side", domain.TradeSide("swap"), 100, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Quote(tt.side, tt.amount, tt.reserve)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestQuoteBuy_Overflow(t *testing.T) {
	l := NewLedger(DefaultK)
	_, err := l.QuoteBuy(^uint64(0), ^uint64(0))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestQuoteBuy_ZeroOutput(t *testing.T) {
	l := NewLedger(DefaultK)
	// sqrt(K) ≈ 173205, beyond which the curve releases nothing.
	_, err := l.QuoteBuy(1000, 200_000)
	assert.ErrorIs(t, err, ErrZeroOutput)
}

func TestQuoteBuy_PriceMonotonicInAmount(t *testing.T) {
	l := NewLedger(DefaultK)
	const reserve = 1000

	prevIn, prevOut := uint64(0), uint64(0)
	for in := uint64(10); in <= 5000; in += 37 {
		q, err := l.QuoteBuy(in, reserve)
		require.NoError(t, err)
		if prevOut > 0 {
			// price = in/out; prevIn/prevOut <= in/out
			assert.LessOrEqual(t, prevIn*q.AmountOut, in*prevOut, "price fell at amountIn=%d", in)
		}
		prevIn, prevOut = in, q.AmountOut
	}
}

func TestQuoteBuy_PriceMonotonicInReserve(t *testing.T) {
	l := NewLedger(DefaultK)
	const in = 100

	prev := ^uint64(0)
	for reserve := uint64(100); reserve <= 150_000; reserve += 997 {
		q, err := l.QuoteBuy(in, reserve)
		if err != nil {
			assert.ErrorIs(t, err, ErrZeroOutput)
			break
		}
		assert.LessOrEqual(t, q.AmountOut, prev, "more reserve released more tokens at reserve=%d", reserve)
		prev = q.AmountOut
	}
}

func TestQuoteSell(t *testing.T) {
	l := NewLedger(DefaultK)

	// sqrt(30e9 / 120000) = 500
	q, err := l.QuoteSell(120_000, 1099)
	require.NoError(t, err)

	assert.Equal(t, uint64(500), q.ReserveAfter)
	assert.Equal(t, uint64(5), q.Fee) // 1% of 599
	assert.Equal(t, uint64(594), q.AmountOut)
	assert.Equal(t, uint64(1099), q.ReserveBefore)
}

func TestQuoteSell_TooSmall(t *testing.T) {
	l := NewLedger(DefaultK)
	// sqrt(30e9 / 1000) ≈ 5477 > reserve
	_, err := l.QuoteSell(1000, 1099)
	assert.ErrorIs(t, err, ErrZeroOutput)
}

func TestQuoteSell_DrainsReserve(t *testing.T) {
	l := NewLedger(DefaultK)
	_, err := l.QuoteSell(DefaultK+1, 1099)
	assert.ErrorIs(t, err, ErrInsufficientReserve)
}

func TestQuoteSell_MonotonicInTokens(t *testing.T) {
	l := NewLedger(DefaultK)
	const reserve = 50_000

	var prev uint64
	for tokens := uint64(20_000); tokens <= 2_000_000; tokens += 20_000 {
		q, err := l.QuoteSell(tokens, reserve)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, q.AmountOut, prev)
		prev = q.AmountOut
	}
}

func TestSpotTokens(t *testing.T) {
	l := NewLedger(DefaultK)
	assert.Equal(t, uint64(30_000), l.SpotTokens(1000))
	assert.Equal(t, uint64(0), l.SpotTokens(0))
}
