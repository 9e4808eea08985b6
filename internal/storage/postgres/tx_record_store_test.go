package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newRecord(sig string, status domain.TxRecordStatus) *domain.ExternalTransactionRecord {
	return &domain.ExternalTransactionRecord{
		Signature: sig,
		Direction: domain.DirectionPurchase,
		Amount:    1_000_000,
		From:      "BuyerWallet",
		To:        "EscrowWallet",
		Status:    status,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestTxRecordStore_InsertAndTransition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTxRecordStore(pool)
	ctx := context.Background()

	rec := newRecord("sig-1", domain.TxStatusPending)
	require.NoError(t, store.Insert(ctx, rec))
	assert.ErrorIs(t, store.Insert(ctx, rec), storage.ErrDuplicateKey)

	rec.Status = domain.TxStatusVerified
	rec.Slot = 1234
	rec.UpdatedAt = t0.Add(time.Second)
	require.NoError(t, store.Transition(ctx, rec, domain.TxStatusPending))

	// Second writer with a stale expectation loses.
	rec.Status = domain.TxStatusRejected
	assert.ErrorIs(t, store.Transition(ctx, rec, domain.TxStatusPending), storage.ErrConflict)

	got, err := store.GetBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusVerified, got.Status)
	assert.Equal(t, int64(1234), got.Slot)
	assert.Equal(t, uint64(1_000_000), got.Amount)

	_, err = store.GetBySignature(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTxRecordStore_ClaimStaleAndDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTxRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newRecord("stale", domain.TxStatusPending)))
	require.NoError(t, store.Insert(ctx, newRecord("done", domain.TxStatusApplied)))

	assert.ErrorIs(t, store.ClaimStale(ctx, "stale", t0, t0.Add(time.Minute)), storage.ErrConflict)
	require.NoError(t, store.ClaimStale(ctx, "stale", t0.Add(time.Minute), t0.Add(2*time.Minute)))
	assert.ErrorIs(t, store.ClaimStale(ctx, "done", t0.Add(time.Hour), t0.Add(time.Hour)), storage.ErrConflict)

	require.NoError(t, store.DeletePending(ctx, "stale"))
	require.NoError(t, store.DeletePending(ctx, "done"))

	_, err := store.GetBySignature(ctx, "stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetBySignature(ctx, "done")
	assert.NoError(t, err)
}
