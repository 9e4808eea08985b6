// Package reporting aggregates completed settlements into commission reports.
// It only reads; the source is the settlement store or its analytics mirror.
package reporting

import "time"

// GroupBy selects the category breakdown of a report.
type GroupBy string

// Breakdowns.
const (
	GroupByItemType GroupBy = "item_type"
	GroupBySeller   GroupBy = "seller"
	GroupByDay      GroupBy = "day"
)

// Valid reports whether g is a known breakdown.
func (g GroupBy) Valid() bool {
	switch g {
	case GroupByItemType, GroupBySeller, GroupByDay:
		return true
	}
	return false
}

// Period names a summary window.
type Period string

// Summary windows.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Days returns the window length, or 0 for an unknown period.
func (p Period) Days() int {
	switch p {
	case PeriodDaily:
		return 1
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	}
	return 0
}

// Report is a commission report over a trailing window.
type Report struct {
	Period      string       `json:"period"`
	GroupBy     GroupBy      `json:"group_by"`
	DateRange   DateRange    `json:"date_range"`
	Summary     Totals       `json:"summary"`
	ByCategory  []Bucket     `json:"by_category"`
	Daily       []Bucket     `json:"daily"`
	Recent      []RecentSale `json:"recent_transactions"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// DateRange is the half-open window [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Totals summarizes completed sales. Amounts are lamports; the SOL and USD
// fields are display values.
type Totals struct {
	TotalCommissions  uint64 `json:"total_commissions"`
	TotalVolume       uint64 `json:"total_volume"`
	TransactionCount  int    `json:"transaction_count"`
	AverageCommission uint64 `json:"average_commission"`
	EffectiveRatePct  string `json:"effective_rate_pct"`
	CommissionsSOL    string `json:"total_commissions_sol"`
	VolumeSOL         string `json:"total_volume_sol"`
	CommissionsUSD    string `json:"total_commissions_usd"`
	VolumeUSD         string `json:"total_volume_usd"`
	PriceOrigin       string `json:"price_origin"`
}

// Bucket aggregates sales sharing one key.
type Bucket struct {
	Key           string `json:"key"`
	Count         int    `json:"count"`
	Volume        uint64 `json:"volume"`
	Commission    uint64 `json:"commission"`
	VolumeSOL     string `json:"volume_sol"`
	CommissionSOL string `json:"commission_sol"`
}

// RecentSale is one of the latest completed settlements.
type RecentSale struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"date"`
	ItemType    string    `json:"item_type"`
	ItemName    string    `json:"item_name"`
	Amount      uint64    `json:"amount"`
	Commission  uint64    `json:"commission"`
	BuyerID     string    `json:"buyer"`
	SellerID    string    `json:"seller"`
	Signature   string    `json:"signature"`
}

// PeriodSummary is the scheduled commission digest.
type PeriodSummary struct {
	Period    Period    `json:"period"`
	DateRange DateRange `json:"date_range"`
	Totals    Totals    `json:"totals"`
	TopItems  []Bucket  `json:"top_items"`
}
