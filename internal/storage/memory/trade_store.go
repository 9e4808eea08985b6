package memory

import (
	"context"
	"sort"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	db *DB
}

// NewTradeStore creates a trade store over db.
func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// GetByID returns ErrNotFound if absent.
func (s *TradeStore) GetByID(_ context.Context, id string) (*domain.CurveTrade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	t, exists := s.db.trades[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	c := *t
	return &c, nil
}

// GetByPaymentSignature returns ErrNotFound if absent.
func (s *TradeStore) GetByPaymentSignature(_ context.Context, signature string) (*domain.CurveTrade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, t := range s.db.trades {
		if t.PaymentSignature == signature {
			c := *t
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Insert adds a trade. Returns ErrDuplicateKey on a reused id or payment signature.
func (s *TradeStore) Insert(_ context.Context, t *domain.CurveTrade) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.insertTrade(t)
}

func (db *DB) insertTrade(t *domain.CurveTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := db.trades[t.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, cur := range db.trades {
		if cur.PaymentSignature == t.PaymentSignature {
			return storage.ErrDuplicateKey
		}
	}
	c := *t
	db.trades[t.ID] = &c
	return nil
}

// UpdateDelivery moves a trade from one status to another.
func (s *TradeStore) UpdateDelivery(_ context.Context, id string, from, to domain.TradeStatus, deliverySig, reason string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur, exists := s.db.trades[id]
	if !exists {
		return storage.ErrNotFound
	}
	if cur.Status != from {
		return storage.ErrConflict
	}
	cur.Status = to
	if deliverySig != "" {
		cur.DeliverySig = deliverySig
	}
	cur.FailureReason = reason
	return nil
}

// ListByMint returns the newest trades first.
func (s *TradeStore) ListByMint(_ context.Context, mint string, limit int) ([]*domain.CurveTrade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.CurveTrade
	for _, t := range s.db.trades {
		if t.Mint == mint {
			c := *t
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByStatus returns trades in status, oldest first.
func (s *TradeStore) ListByStatus(_ context.Context, status domain.TradeStatus, limit int) ([]*domain.CurveTrade, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.CurveTrade
	for _, t := range s.db.trades {
		if t.Status == status {
			c := *t
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
