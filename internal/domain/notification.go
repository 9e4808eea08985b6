package domain

import (
	"encoding/json"
	"time"
)

// NotificationKind identifies an outbound message template.
type NotificationKind string

// Notification kinds.
const (
	NotifyBuyerReceipt       NotificationKind = "buyer_receipt"
	NotifySellerPayout       NotificationKind = "seller_payout"
	NotifyPlatformCommission NotificationKind = "platform_commission"
	NotifySettlementFailed   NotificationKind = "settlement_failed"
	NotifyCommissionSummary  NotificationKind = "commission_summary"
	NotifyTokenMinted        NotificationKind = "token_minted"
	NotifyTokenGraduated     NotificationKind = "token_graduated"
	NotifyTradeFailed        NotificationKind = "trade_delivery_failed"
)

// Notification is an enqueued outbound message.
type Notification struct {
	ID        string // deterministic dedup key
	Kind      NotificationKind
	Recipient string
	Payload   json.RawMessage
	Attempts  int
	LastError string
	CreatedAt time.Time
}
