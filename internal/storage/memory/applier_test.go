package memory

import (
	"context"
	"errors"
	"testing"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

func verifiedRecord(t *testing.T, db *DB, sig string) *domain.ExternalTransactionRecord {
	t.Helper()
	rec := pendingRecord(sig)
	rec.Status = domain.TxStatusVerified
	if err := NewTxRecordStore(db).Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert record failed: %v", err)
	}
	return rec
}

func TestApplier_ApplyTrade(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	tokens := NewTokenStore(db)
	records := NewTxRecordStore(db)
	applier := NewApplier(db)

	_ = tokens.Insert(ctx, &domain.Token{Mint: "mint1", Reserve: 1000, Status: domain.TokenStatusTrading})
	rec := verifiedRecord(t, db, "buy1")

	tok, _ := tokens.GetByMint(ctx, "mint1")
	tok.Reserve = 1099
	trade := &domain.CurveTrade{ID: "trade1", Mint: "mint1", PaymentSignature: "buy1", Status: domain.TradePending}
	rec.ResultRef = trade.ID

	if err := applier.ApplyTrade(ctx, rec, tok, 0, trade); err != nil {
		t.Fatalf("ApplyTrade failed: %v", err)
	}

	got, _ := records.GetBySignature(ctx, "buy1")
	if got.Status != domain.TxStatusApplied || got.ResultRef != "trade1" {
		t.Errorf("unexpected record: %+v", got)
	}

	// Replay with the same record is rejected without touching the token.
	tok.Reserve = 1198
	trade2 := &domain.CurveTrade{ID: "trade2", Mint: "mint1", PaymentSignature: "buy1"}
	if err := applier.ApplyTrade(ctx, rec, tok, 1, trade2); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	stored, _ := tokens.GetByMint(ctx, "mint1")
	if stored.Reserve != 1099 || stored.Version != 1 {
		t.Errorf("token changed by replay: %+v", stored)
	}
}

func TestApplier_ApplyTradeVersionConflictWritesNothing(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	tokens := NewTokenStore(db)
	trades := NewTradeStore(db)
	records := NewTxRecordStore(db)

	_ = tokens.Insert(ctx, &domain.Token{Mint: "mint1", Reserve: 1000, Version: 3})
	rec := verifiedRecord(t, db, "buy1")

	tok, _ := tokens.GetByMint(ctx, "mint1")
	trade := &domain.CurveTrade{ID: "trade1", Mint: "mint1", PaymentSignature: "buy1"}
	if err := NewApplier(db).ApplyTrade(ctx, rec, tok, 2, trade); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if _, err := trades.GetByID(ctx, "trade1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("trade must not be inserted, got %v", err)
	}
	got, _ := records.GetBySignature(ctx, "buy1")
	if got.Status != domain.TxStatusVerified {
		t.Errorf("record must stay verified, got %s", got.Status)
	}
}

func TestApplier_ApplySettlement(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	settlements := NewSettlementStore(db)
	applier := NewApplier(db)

	rec := verifiedRecord(t, db, "pay1")
	s := &domain.SettlementTransaction{ID: "s1", BuyerID: "u1", SellerID: "u2", ItemID: "item1",
		PaymentSignature: "pay1", Status: domain.SettlementPending, CreatedAt: t0}
	p := &domain.Purchase{BuyerID: "u1", ItemID: "item1", SettlementID: "s1"}

	if err := applier.ApplySettlement(ctx, rec, s, p); err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}

	owned, _ := settlements.HasPurchased(ctx, "u1", "item1")
	if !owned {
		t.Error("expected purchase recorded")
	}
	got, err := settlements.GetByPaymentSignature(ctx, "pay1")
	if err != nil || got.ID != "s1" {
		t.Fatalf("GetByPaymentSignature = %+v, %v", got, err)
	}

	// A second payment for the same item by the same buyer is a duplicate.
	rec2 := verifiedRecord(t, db, "pay2")
	s2 := &domain.SettlementTransaction{ID: "s2", BuyerID: "u1", ItemID: "item1", PaymentSignature: "pay2"}
	if err := applier.ApplySettlement(ctx, rec2, s2, p); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestApplier_ApplyMint(t *testing.T) {
	db := NewDB()
	ctx := context.Background()

	rec := verifiedRecord(t, db, "mint-pay")
	tok := &domain.Token{Mint: "mint1", Status: domain.TokenStatusCreated}
	if err := NewApplier(db).ApplyMint(ctx, rec, tok); err != nil {
		t.Fatalf("ApplyMint failed: %v", err)
	}

	rec2 := verifiedRecord(t, db, "mint-pay-2")
	if err := NewApplier(db).ApplyMint(ctx, rec2, tok); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}
