package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

func completedSettlement(id string, gross uint64, at time.Time) *domain.SettlementTransaction {
	fee := gross / 10
	return &domain.SettlementTransaction{
		ID:               id,
		BuyerID:          "buyer",
		SellerID:         "seller",
		SellerWallet:     "SellerWallet111",
		ItemID:           "item-" + id,
		ItemType:         domain.ItemPrompt,
		ItemName:         "Prompt " + id,
		GrossAmount:      gross,
		PlatformFee:      fee,
		SellerNet:        gross - fee,
		PaymentSignature: "pay-" + id,
		PayoutSignature:  "payout-" + id,
		Status:           domain.SettlementCompleted,
		CreatedAt:        at.Add(-time.Minute),
		CompletedAt:      &at,
	}
}

func TestSettlementStore_RecordAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(conn)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, completedSettlement("a", 1000, base)))
	require.NoError(t, store.Record(ctx, completedSettlement("b", 2000, base.Add(24*time.Hour))))
	require.NoError(t, store.Record(ctx, completedSettlement("c", 3000, base.Add(72*time.Hour))))

	got, err := store.CompletedBetween(ctx, base, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, uint64(1000), got[0].GrossAmount)
	assert.Equal(t, uint64(100), got[0].PlatformFee)
	assert.Equal(t, domain.ItemPrompt, got[0].ItemType)
	assert.Equal(t, domain.SettlementCompleted, got[0].Status)
	assert.True(t, got[0].CompletedAt.Equal(base))
	assert.Equal(t, "b", got[1].ID)
}

func TestSettlementStore_RecordIsIdempotent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSettlementStore(conn)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s := completedSettlement("dup", 500, at)
	require.NoError(t, store.Record(ctx, s))
	require.NoError(t, store.Record(ctx, s))

	got, err := store.CompletedBetween(ctx, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSettlementStore_RejectsPending(t *testing.T) {
	store := NewSettlementStore(nil)
	s := completedSettlement("p", 100, time.Now())
	s.Status = domain.SettlementPending

	err := store.Record(context.Background(), s)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
