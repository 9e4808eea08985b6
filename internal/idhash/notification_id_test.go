package idhash

import (
	"testing"

	"solana-marketplace/internal/domain"
)

func TestComputeNotificationID(t *testing.T) {
	a := ComputeNotificationID(domain.NotifyBuyerReceipt, "settlement-1", "buyer-1")
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a != ComputeNotificationID(domain.NotifyBuyerReceipt, "settlement-1", "buyer-1") {
		t.Error("ComputeNotificationID() not deterministic")
	}
	if a == ComputeNotificationID(domain.NotifySellerPayout, "settlement-1", "buyer-1") {
		t.Error("kind must change the id")
	}
	if a == ComputeNotificationID(domain.NotifyBuyerReceipt, "settlement-2", "buyer-1") {
		t.Error("subject must change the id")
	}
}
