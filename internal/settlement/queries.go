package settlement

import (
	"context"
	"errors"
	"fmt"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/wallet"
)

// Get returns a settlement by id.
func (d *Distributor) Get(ctx context.Context, id string) (*domain.SettlementTransaction, error) {
	s, err := d.stores.Settlements.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSettlementNotFound
	}
	return s, err
}

// ListByStatus returns settlements in status, oldest first.
func (d *Distributor) ListByStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]*domain.SettlementTransaction, error) {
	return d.stores.Settlements.ListByStatus(ctx, status, limit)
}

// UserTransactions returns a user's purchases, sales or both, newest first.
func (d *Distributor) UserTransactions(ctx context.Context, userID string, role storage.UserRole, limit int) ([]*domain.SettlementTransaction, error) {
	switch role {
	case storage.RoleBuyer, storage.RoleSeller, storage.RoleAny:
	case "":
		role = storage.RoleAny
	default:
		return nil, ErrInvalidRequest
	}
	return d.stores.Settlements.ListByUser(ctx, userID, role, limit)
}

// HasPurchased reports whether buyerID owns itemID.
func (d *Distributor) HasPurchased(ctx context.Context, buyerID, itemID string) (bool, error) {
	return d.stores.Settlements.HasPurchased(ctx, buyerID, itemID)
}

// Stats aggregates marketplace activity.
func (d *Distributor) Stats(ctx context.Context) (*domain.MarketplaceStats, error) {
	return d.stores.Settlements.Stats(ctx)
}

// CreateListing adds an item to the catalog.
func (d *Distributor) CreateListing(ctx context.Context, l *domain.Listing) error {
	if l.ItemID == "" || l.Name == "" || l.SellerID == "" || !l.ItemType.Valid() {
		return ErrInvalidListing
	}
	if l.Price == 0 {
		l.IsFree = true
	}
	if !l.IsFree {
		if l.SellerWallet == "" {
			return ErrInvalidListing
		}
		if err := wallet.ValidateAddress(l.SellerWallet); err != nil {
			return err
		}
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = d.now().UTC()
	}

	if err := d.stores.Listings.Insert(ctx, l); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return ErrListingExists
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetListing returns a catalog item.
func (d *Distributor) GetListing(ctx context.Context, itemID string) (*domain.Listing, error) {
	l, err := d.stores.Listings.GetByID(ctx, itemID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	return l, err
}
