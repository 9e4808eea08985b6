package memory

import (
	"context"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	db *DB
}

// NewListingStore creates a listing store over db.
func NewListingStore(db *DB) *ListingStore {
	return &ListingStore{db: db}
}

var _ storage.ListingStore = (*ListingStore)(nil)

// Insert adds a listing. Returns ErrDuplicateKey if the item exists.
func (s *ListingStore) Insert(_ context.Context, l *domain.Listing) error {
	if l == nil || l.ItemID == "" {
		return storage.ErrInvalidInput
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, exists := s.db.listings[l.ItemID]; exists {
		return storage.ErrDuplicateKey
	}
	c := *l
	s.db.listings[l.ItemID] = &c
	return nil
}

// GetByID returns ErrNotFound if absent.
func (s *ListingStore) GetByID(_ context.Context, itemID string) (*domain.Listing, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	l, exists := s.db.listings[itemID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	c := *l
	return &c, nil
}
