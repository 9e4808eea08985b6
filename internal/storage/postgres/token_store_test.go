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

func newToken(mint string) *domain.Token {
	return &domain.Token{
		Mint:          mint,
		Name:          "Agent Coin",
		Symbol:        "AGC",
		CreatorID:     "creator-1",
		CreatorWallet: "CreatorWallet",
		Decimals:      6,
		Supply:        1_000_000_000_000_000,
		Reserve:       1000,
		Status:        domain.TokenStatusTrading,
		MintSignature: "mint-sig-" + mint,
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
}

func TestTokenStore_InsertAndCompareAndSwap(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newToken("MintA")))
	assert.ErrorIs(t, store.Insert(ctx, newToken("MintA")), storage.ErrDuplicateKey)

	tok, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), tok.Decimals)
	assert.Equal(t, int64(0), tok.Version)

	tok.Reserve = 1099
	tok.TokensSold = 24_838_000_000
	tok.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, store.CompareAndSwap(ctx, tok, 0))
	assert.Equal(t, int64(1), tok.Version)

	stale := newToken("MintA")
	stale.Reserve = 9999
	assert.ErrorIs(t, store.CompareAndSwap(ctx, stale, 0), storage.ErrConflict)

	got, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	assert.Equal(t, uint64(1099), got.Reserve)
	assert.Equal(t, int64(1), got.Version)

	_, err = store.GetByMint(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)
	ctx := context.Background()

	a := newToken("MintA")
	b := newToken("MintB")
	b.Status = domain.TokenStatusGraduated
	b.Graduated = true
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	graduated, err := store.List(ctx, domain.TokenStatusGraduated)
	require.NoError(t, err)
	require.Len(t, graduated, 1)
	assert.Equal(t, "MintB", graduated[0].Mint)
	assert.True(t, graduated[0].Graduated)
}
