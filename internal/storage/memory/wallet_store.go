package memory

import (
	"context"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	db *DB
}

// NewWalletStore creates a wallet store over db.
func NewWalletStore(db *DB) *WalletStore {
	return &WalletStore{db: db}
}

var _ storage.WalletStore = (*WalletStore)(nil)

// Insert adds the first wallet of an owner.
func (s *WalletStore) Insert(_ context.Context, w *domain.AgentWallet) error {
	if w == nil || w.ID == "" || w.Owner == "" {
		return storage.ErrInvalidInput
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.db.activeWallet(w.Owner) != nil {
		return storage.ErrDuplicateKey
	}
	return s.db.insertWallet(w)
}

func (db *DB) insertWallet(w *domain.AgentWallet) error {
	if _, exists := db.wallets[w.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, cur := range db.wallets {
		if cur.Address == w.Address {
			return storage.ErrDuplicateKey
		}
	}
	db.wallets[w.ID] = copyWallet(w)
	return nil
}

func (db *DB) activeWallet(owner string) *domain.AgentWallet {
	for _, w := range db.wallets {
		if w.Owner == owner && w.Active {
			return w
		}
	}
	return nil
}

// GetActive returns ErrNotFound if the owner has no active wallet.
func (s *WalletStore) GetActive(_ context.Context, owner string) (*domain.AgentWallet, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	w := s.db.activeWallet(owner)
	if w == nil {
		return nil, storage.ErrNotFound
	}
	return copyWallet(w), nil
}

// GetByAddress returns ErrNotFound if no wallet has the address.
func (s *WalletStore) GetByAddress(_ context.Context, address string) (*domain.AgentWallet, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, w := range s.db.wallets {
		if w.Address == address {
			return copyWallet(w), nil
		}
	}
	return nil, storage.ErrNotFound
}

// Rotate retires the active wallet of next.Owner and inserts next.
func (s *WalletStore) Rotate(_ context.Context, next *domain.AgentWallet, retiredAt time.Time) error {
	if next == nil || next.ID == "" || next.Owner == "" {
		return storage.ErrInvalidInput
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur := s.db.activeWallet(next.Owner)
	if cur == nil {
		return storage.ErrNotFound
	}
	if err := s.db.insertWallet(next); err != nil {
		return err
	}
	cur.Active = false
	t := retiredAt
	cur.RetiredAt = &t
	return nil
}
