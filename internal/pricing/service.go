// Package pricing provides USD quotes for display and report estimates.
// Prices never feed settlement arithmetic.
package pricing

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/cache"
	"solana-marketplace/internal/observability"
)

// Defaults.
const (
	DefaultTTL   = 30 * time.Second
	NativeAsset  = "solana"
	fallbackUSD  = 100
	cachePrefix  = "price:"
	lamportsExp  = 9
	quoteDisplay = 4
)

// Origin describes where a returned price came from.
type Origin string

// Price origins.
const (
	OriginLive     Origin = "live"
	OriginCache    Origin = "cache"
	OriginStale    Origin = "stale"
	OriginFallback Origin = "fallback"
)

// Price is a USD quote.
type Price struct {
	USD    decimal.Decimal
	Origin Origin
}

// Service caches live prices, reuses the last known value on failure and
// falls back to a fixed price when nothing was ever fetched.
type Service struct {
	source   Source
	cache    cache.Cache
	ttl      time.Duration
	fallback decimal.Decimal
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]decimal.Decimal
}

// NewService creates a price service.
func NewService(source Source, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   source,
		cache:    c,
		ttl:      ttl,
		fallback: decimal.NewFromInt(fallbackUSD),
		logger:   logger,
		last:     make(map[string]decimal.Decimal),
	}
}

// WithFallback overrides the fixed fallback price.
func (s *Service) WithFallback(usd decimal.Decimal) *Service {
	s.fallback = usd
	return s
}

// GetQuotePrice returns the USD price of assetID. It never fails.
func (s *Service) GetQuotePrice(ctx context.Context, assetID string) Price {
	key := cachePrefix + assetID

	if b, err := s.cache.Get(ctx, key); err == nil {
		if p, err := decimal.NewFromString(string(b)); err == nil {
			observability.RecordPriceLookup(string(OriginCache))
			return Price{USD: p, Origin: OriginCache}
		}
	}

	p, err := s.source.FetchUSD(ctx, assetID)
	if err == nil {
		if err := s.cache.Set(ctx, key, []byte(p.String()), s.ttl); err != nil {
			s.logger.Warn("price cache write failed", "asset", assetID, "error", err)
		}
		s.mu.Lock()
		s.last[assetID] = p
		s.mu.Unlock()
		observability.RecordPriceLookup(string(OriginLive))
		return Price{USD: p, Origin: OriginLive}
	}

	s.mu.Lock()
	last, ok := s.last[assetID]
	s.mu.Unlock()
	if ok {
		s.logger.Warn("price fetch failed, using last value", "asset", assetID, "error", err)
		observability.RecordPriceLookup(string(OriginStale))
		return Price{USD: last, Origin: OriginStale}
	}

	s.logger.Warn("price fetch failed, using fallback", "asset", assetID, "error", err)
	observability.RecordPriceLookup(string(OriginFallback))
	return Price{USD: s.fallback, Origin: OriginFallback}
}

// LamportsToUSD converts lamports to USD at price.
func LamportsToUSD(lamports uint64, price decimal.Decimal) decimal.Decimal {
	return ToUnits(lamports, lamportsExp).Mul(price)
}

// ToUnits converts a raw integer amount with the given decimals.
func ToUnits(raw uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -decimals)
}

// FormatAmount renders an amount with precision chosen by magnitude:
// 8 places below 0.0001, 6 below 0.01, otherwise 4.
func FormatAmount(d decimal.Decimal) string {
	abs := d.Abs()
	switch {
	case abs.IsZero():
		return d.StringFixed(quoteDisplay)
	case abs.LessThan(decimal.New(1, -4)):
		return d.StringFixed(8)
	case abs.LessThan(decimal.New(1, -2)):
		return d.StringFixed(6)
	default:
		return d.StringFixed(quoteDisplay)
	}
}
