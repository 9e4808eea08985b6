package memory

import (
	"context"
	"sort"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// SettlementStore is an in-memory implementation of storage.SettlementStore
// and storage.SettlementSource.
type SettlementStore struct {
	db *DB
}

// NewSettlementStore creates a settlement store over db.
func NewSettlementStore(db *DB) *SettlementStore {
	return &SettlementStore{db: db}
}

var (
	_ storage.SettlementStore  = (*SettlementStore)(nil)
	_ storage.SettlementSource = (*SettlementStore)(nil)
)

// GetByID returns ErrNotFound if absent.
func (s *SettlementStore) GetByID(_ context.Context, id string) (*domain.SettlementTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	st, exists := s.db.settlements[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySettlement(st), nil
}

// GetByPaymentSignature returns ErrNotFound if absent.
func (s *SettlementStore) GetByPaymentSignature(_ context.Context, signature string) (*domain.SettlementTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, st := range s.db.settlements {
		if st.PaymentSignature == signature {
			return copySettlement(st), nil
		}
	}
	return nil, storage.ErrNotFound
}

// SetPayoutSignature records a submitted payout on a pending settlement.
func (s *SettlementStore) SetPayoutSignature(_ context.Context, id, signature string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	st, exists := s.db.settlements[id]
	if !exists {
		return storage.ErrNotFound
	}
	if st.Status != domain.SettlementPending {
		return storage.ErrConflict
	}
	st.PayoutSignature = signature
	return nil
}

// Transition writes the terminal state of st if its stored status equals from.
func (s *SettlementStore) Transition(_ context.Context, st *domain.SettlementTransaction, from domain.SettlementStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur, exists := s.db.settlements[st.ID]
	if !exists {
		return storage.ErrNotFound
	}
	if cur.Status != from {
		return storage.ErrConflict
	}
	cur.Status = st.Status
	cur.PayoutSignature = st.PayoutSignature
	cur.FailureReason = st.FailureReason
	if st.CompletedAt != nil {
		t := *st.CompletedAt
		cur.CompletedAt = &t
	}
	return nil
}

// ListByStatus returns settlements in status, oldest first.
func (s *SettlementStore) ListByStatus(_ context.Context, status domain.SettlementStatus, limit int) ([]*domain.SettlementTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.SettlementTransaction
	for _, st := range s.db.settlements {
		if st.Status == status {
			result = append(result, copySettlement(st))
		}
	}
	sortSettlements(result, true)
	return truncate(result, limit), nil
}

// ListByUser returns a user's settlements, newest first.
func (s *SettlementStore) ListByUser(_ context.Context, userID string, role storage.UserRole, limit int) ([]*domain.SettlementTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.SettlementTransaction
	for _, st := range s.db.settlements {
		buyer := st.BuyerID == userID
		seller := st.SellerID == userID
		switch {
		case role == storage.RoleBuyer && buyer,
			role == storage.RoleSeller && seller,
			role == storage.RoleAny && (buyer || seller):
			result = append(result, copySettlement(st))
		}
	}
	sortSettlements(result, false)
	return truncate(result, limit), nil
}

// HasPurchased reports whether buyer owns item.
func (s *SettlementStore) HasPurchased(_ context.Context, buyerID, itemID string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	_, exists := s.db.purchases[purchaseKey(buyerID, itemID)]
	return exists, nil
}

// Stats aggregates all settlements.
func (s *SettlementStore) Stats(_ context.Context) (*domain.MarketplaceStats, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	stats := &domain.MarketplaceStats{}
	buyers := make(map[string]struct{})
	sellers := make(map[string]struct{})

	for _, st := range s.db.settlements {
		stats.TotalSales++
		buyers[st.BuyerID] = struct{}{}
		sellers[st.SellerID] = struct{}{}

		switch st.Status {
		case domain.SettlementCompleted:
			stats.CompletedSales++
			stats.TotalVolume += st.GrossAmount
			stats.TotalCommissions += st.PlatformFee
		case domain.SettlementFailed:
			stats.FailedSales++
		case domain.SettlementPending:
			stats.PendingSales++
		}
	}
	stats.UniqueBuyers = len(buyers)
	stats.UniqueSellers = len(sellers)
	return stats, nil
}

// CompletedBetween returns completed settlements with CompletedAt in [start, end).
func (s *SettlementStore) CompletedBetween(_ context.Context, start, end time.Time) ([]*domain.SettlementTransaction, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.SettlementTransaction
	for _, st := range s.db.settlements {
		if st.Status != domain.SettlementCompleted || st.CompletedAt == nil {
			continue
		}
		if st.CompletedAt.Before(start) || !st.CompletedAt.Before(end) {
			continue
		}
		result = append(result, copySettlement(st))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CompletedAt.Before(*result[j].CompletedAt)
	})
	return result, nil
}

func sortSettlements(list []*domain.SettlementTransaction, ascending bool) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		if ascending {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func truncate[T any](list []T, limit int) []T {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
