package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/pricing"
	"solana-marketplace/internal/storage"
)

// Limits.
const (
	RecentLimit   = 10
	TopItemsLimit = 5
	MaxPeriodDays = 366
)

// ErrInvalidQuery is returned for an unknown breakdown or period.
var ErrInvalidQuery = errors.New("invalid report query")

// Pricer supplies the SOL/USD price for estimates.
type Pricer interface {
	GetQuotePrice(ctx context.Context, assetID string) pricing.Price
}

// Generator produces commission reports from stored settlements.
type Generator struct {
	source storage.SettlementSource
	prices Pricer
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a generator. prices may be nil, which omits USD estimates.
func NewGenerator(source storage.SettlementSource, prices Pricer) *Generator {
	return &Generator{
		source: source,
		prices: prices,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Report aggregates completed settlements of the trailing periodDays.
func (g *Generator) Report(ctx context.Context, periodDays int, groupBy GroupBy) (*Report, error) {
	if groupBy == "" {
		groupBy = GroupByItemType
	}
	if periodDays <= 0 || periodDays > MaxPeriodDays || !groupBy.Valid() {
		return nil, ErrInvalidQuery
	}

	now := g.now()
	rng := DateRange{Start: now.AddDate(0, 0, -periodDays), End: now}
	sales, err := g.source.CompletedBetween(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}

	return &Report{
		Period:      fmt.Sprintf("%d days", periodDays),
		GroupBy:     groupBy,
		DateRange:   rng,
		Summary:     g.totals(ctx, sales),
		ByCategory:  group(sales, keyFunc(groupBy), byCommission),
		Daily:       group(sales, keyFunc(GroupByDay), byKey),
		Recent:      recent(sales, RecentLimit),
		GeneratedAt: now,
	}, nil
}

// Summary builds the digest for a daily, weekly or monthly window.
func (g *Generator) Summary(ctx context.Context, period Period) (*PeriodSummary, error) {
	days := period.Days()
	if days == 0 {
		return nil, ErrInvalidQuery
	}

	now := g.now()
	rng := DateRange{Start: now.AddDate(0, 0, -days), End: now}
	sales, err := g.source.CompletedBetween(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}

	top := group(sales, func(s *domain.SettlementTransaction) string { return s.ItemName }, byCommission)
	if len(top) > TopItemsLimit {
		top = top[:TopItemsLimit]
	}
	return &PeriodSummary{
		Period:    period,
		DateRange: rng,
		Totals:    g.totals(ctx, sales),
		TopItems:  top,
	}, nil
}

func (g *Generator) totals(ctx context.Context, sales []*domain.SettlementTransaction) Totals {
	var t Totals
	for _, s := range sales {
		t.TotalCommissions += s.PlatformFee
		t.TotalVolume += s.GrossAmount
	}
	t.TransactionCount = len(sales)
	if t.TransactionCount > 0 {
		t.AverageCommission = t.TotalCommissions / uint64(t.TransactionCount)
	}

	rate := decimal.Zero
	if t.TotalVolume > 0 {
		rate = decimal.NewFromUint64(t.TotalCommissions).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromUint64(t.TotalVolume))
	}
	t.EffectiveRatePct = rate.StringFixed(2)
	t.CommissionsSOL = sol(t.TotalCommissions)
	t.VolumeSOL = sol(t.TotalVolume)

	if g.prices != nil {
		p := g.prices.GetQuotePrice(ctx, pricing.NativeAsset)
		t.CommissionsUSD = pricing.LamportsToUSD(t.TotalCommissions, p.USD).StringFixed(2)
		t.VolumeUSD = pricing.LamportsToUSD(t.TotalVolume, p.USD).StringFixed(2)
		t.PriceOrigin = string(p.Origin)
	}
	return t
}

func sol(lamports uint64) string {
	return pricing.FormatAmount(pricing.ToUnits(lamports, 9))
}

func keyFunc(g GroupBy) func(*domain.SettlementTransaction) string {
	switch g {
	case GroupBySeller:
		return func(s *domain.SettlementTransaction) string { return s.SellerID }
	case GroupByDay:
		return func(s *domain.SettlementTransaction) string { return s.CompletedAt.UTC().Format(time.DateOnly) }
	default:
		return func(s *domain.SettlementTransaction) string { return string(s.ItemType) }
	}
}

type order int

const (
	byKey order = iota
	byCommission
)

func group(sales []*domain.SettlementTransaction, key func(*domain.SettlementTransaction) string, o order) []Bucket {
	idx := make(map[string]int)
	var out []Bucket
	for _, s := range sales {
		k := key(s)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Bucket{Key: k})
		}
		out[i].Count++
		out[i].Volume += s.GrossAmount
		out[i].Commission += s.PlatformFee
	}
	for i := range out {
		out[i].VolumeSOL = sol(out[i].Volume)
		out[i].CommissionSOL = sol(out[i].Commission)
	}

	sort.Slice(out, func(i, j int) bool {
		if o == byCommission && out[i].Commission != out[j].Commission {
			return out[i].Commission > out[j].Commission
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// recent returns the newest n sales, newest first.
func recent(sales []*domain.SettlementTransaction, n int) []RecentSale {
	sorted := append([]*domain.SettlementTransaction(nil), sales...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.After(*sorted[j].CompletedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]RecentSale, len(sorted))
	for i, s := range sorted {
		out[i] = RecentSale{
			ID:          s.ID,
			CompletedAt: *s.CompletedAt,
			ItemType:    string(s.ItemType),
			ItemName:    s.ItemName,
			Amount:      s.GrossAmount,
			Commission:  s.PlatformFee,
			BuyerID:     s.BuyerID,
			SellerID:    s.SellerID,
			Signature:   s.PayoutSignature,
		}
	}
	return out
}
