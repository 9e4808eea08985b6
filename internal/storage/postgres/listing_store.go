package postgres

import (
	"context"
	"fmt"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// Insert adds a listing. Returns ErrDuplicateKey if the item exists.
func (s *ListingStore) Insert(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (item_id, item_type, name, seller_id, seller_wallet, price, is_free, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		l.ItemID, string(l.ItemType), l.Name, l.SellerID, l.SellerWallet, l.Price, l.IsFree, l.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound if absent.
func (s *ListingStore) GetByID(ctx context.Context, itemID string) (*domain.Listing, error) {
	query := `
		SELECT item_id, item_type, name, seller_id, seller_wallet, price, is_free, created_at
		FROM listings WHERE item_id = $1
	`

	var (
		l        domain.Listing
		itemType string
	)
	err := s.pool.QueryRow(ctx, query, itemID).Scan(
		&l.ItemID, &itemType, &l.Name, &l.SellerID, &l.SellerWallet, &l.Price, &l.IsFree, &l.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	l.ItemType = domain.ItemType(itemType)
	return &l, nil
}
