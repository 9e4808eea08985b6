package memory

import (
	"context"
	"errors"
	"testing"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

func TestWalletStore_Rotate(t *testing.T) {
	store := NewWalletStore(NewDB())
	ctx := context.Background()

	w1 := &domain.AgentWallet{ID: "w1", Owner: "agent", Address: "addr1", Sealed: []byte{1}, Active: true}
	if err := store.Insert(ctx, w1); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, &domain.AgentWallet{ID: "w0", Owner: "agent", Address: "addr0", Active: true}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("second active wallet must be rejected, got %v", err)
	}

	w2 := &domain.AgentWallet{ID: "w2", Owner: "agent", Address: "addr2", Sealed: []byte{2}, Active: true}
	if err := store.Rotate(ctx, w2, t0); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	active, err := store.GetActive(ctx, "agent")
	if err != nil || active.ID != "w2" {
		t.Fatalf("GetActive = %+v, %v", active, err)
	}

	old, err := store.GetByAddress(ctx, "addr1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if old.Active || old.RetiredAt == nil || !old.RetiredAt.Equal(t0) {
		t.Errorf("old wallet not retired: %+v", old)
	}

	if err := store.Rotate(ctx, &domain.AgentWallet{ID: "w3", Owner: "nobody", Address: "addr3"}, t0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
