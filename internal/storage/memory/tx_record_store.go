package memory

import (
	"context"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TxRecordStore is an in-memory implementation of storage.TxRecordStore.
type TxRecordStore struct {
	db *DB
}

// NewTxRecordStore creates a record store over db.
func NewTxRecordStore(db *DB) *TxRecordStore {
	return &TxRecordStore{db: db}
}

var _ storage.TxRecordStore = (*TxRecordStore)(nil)

// Insert adds r if its signature is absent. Returns ErrDuplicateKey otherwise.
func (s *TxRecordStore) Insert(_ context.Context, r *domain.ExternalTransactionRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, exists := s.db.records[r.Signature]; exists {
		return storage.ErrDuplicateKey
	}
	c := *r
	s.db.records[r.Signature] = &c
	return nil
}

// GetBySignature returns ErrNotFound if absent.
func (s *TxRecordStore) GetBySignature(_ context.Context, signature string) (*domain.ExternalTransactionRecord, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	r, exists := s.db.records[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	c := *r
	return &c, nil
}

// Transition overwrites the record if its stored status equals from.
func (s *TxRecordStore) Transition(_ context.Context, r *domain.ExternalTransactionRecord, from domain.TxRecordStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.transitionRecord(r, from)
}

func (db *DB) transitionRecord(r *domain.ExternalTransactionRecord, from domain.TxRecordStatus) error {
	cur, exists := db.records[r.Signature]
	if !exists || cur.Status != from {
		return storage.ErrConflict
	}
	c := *r
	c.CreatedAt = cur.CreatedAt
	db.records[r.Signature] = &c
	return nil
}

// ClaimStale refreshes a pending record last updated before staleBefore.
func (s *TxRecordStore) ClaimStale(_ context.Context, signature string, staleBefore, now time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur, exists := s.db.records[signature]
	if !exists || cur.Status != domain.TxStatusPending || !cur.UpdatedAt.Before(staleBefore) {
		return storage.ErrConflict
	}
	cur.UpdatedAt = now
	return nil
}

// DeletePending removes a pending record. Records in other states are kept.
func (s *TxRecordStore) DeletePending(_ context.Context, signature string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if cur, exists := s.db.records[signature]; exists && cur.Status == domain.TxStatusPending {
		delete(s.db.records, signature)
	}
	return nil
}
