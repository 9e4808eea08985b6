package domain

import "time"

// SettlementStatus is the payout state of a marketplace sale.
type SettlementStatus string

// Settlement states. Completed is immutable.
const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
	SettlementFailed    SettlementStatus = "failed"
)

// ItemType is the kind of marketplace listing.
type ItemType string

// Listing kinds.
const (
	ItemAgent  ItemType = "agent"
	ItemPrompt ItemType = "prompt"
	ItemTool   ItemType = "tool"
)

// Valid reports whether the item type is known.
func (t ItemType) Valid() bool {
	switch t {
	case ItemAgent, ItemPrompt, ItemTool:
		return true
	}
	return false
}

// Listing is a marketplace item offered for sale.
type Listing struct {
	ItemID       string
	ItemType     ItemType
	Name         string
	SellerID     string
	SellerWallet string
	Price        uint64 // lamports
	IsFree       bool
	CreatedAt    time.Time
}

// SettlementTransaction records one sale and its dual payout.
type SettlementTransaction struct {
	ID               string // uuid
	BuyerID          string
	BuyerWallet      string
	SellerID         string
	SellerWallet     string
	ItemID           string
	ItemType         ItemType
	ItemName         string
	GrossAmount      uint64
	PlatformFee      uint64
	SellerNet        uint64
	PaymentSignature string // verified buyer payment
	PayoutSignature  string // set once the payout transaction is submitted
	Status           SettlementStatus
	FailureReason    string
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// Purchase is the buyer-side ownership row created with a settlement.
type Purchase struct {
	BuyerID      string
	ItemID       string
	ItemType     ItemType
	SettlementID string
	CreatedAt    time.Time
}

// MarketplaceStats summarizes marketplace activity.
type MarketplaceStats struct {
	TotalSales       int
	CompletedSales   int
	FailedSales      int
	PendingSales     int
	TotalVolume      uint64
	TotalCommissions uint64
	UniqueBuyers     int
	UniqueSellers    int
}
