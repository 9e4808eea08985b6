package memory

import (
	"context"
	"sort"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	db *DB
}

// NewTokenStore creates a token store over db.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.insertToken(t)
}

func (db *DB) insertToken(t *domain.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := db.tokens[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	c := *t
	db.tokens[t.Mint] = &c
	return nil
}

// GetByMint returns ErrNotFound if absent.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.Token, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	t, exists := s.db.tokens[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	c := *t
	return &c, nil
}

// CompareAndSwap writes t if the stored version equals expectedVersion.
func (s *TokenStore) CompareAndSwap(_ context.Context, t *domain.Token, expectedVersion int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.swapToken(t, expectedVersion)
}

func (db *DB) swapToken(t *domain.Token, expectedVersion int64) error {
	cur, exists := db.tokens[t.Mint]
	if !exists {
		return storage.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return storage.ErrConflict
	}
	t.Version = expectedVersion + 1
	c := *t
	c.CreatedAt = cur.CreatedAt
	db.tokens[t.Mint] = &c
	return nil
}

// List returns tokens in status, or all tokens when status is empty, ordered by creation.
func (s *TokenStore) List(_ context.Context, status domain.TokenStatus) ([]*domain.Token, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.db.tokens {
		if status == "" || t.Status == status {
			c := *t
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Mint < result[j].Mint
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
