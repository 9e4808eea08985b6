package memory

import (
	"context"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// Applier is an in-memory implementation of storage.Applier.
// Each method validates every precondition before writing anything.
type Applier struct {
	db *DB
}

// NewApplier creates an applier over db.
func NewApplier(db *DB) *Applier {
	return &Applier{db: db}
}

var _ storage.Applier = (*Applier)(nil)

// checkVerified ensures rec is still verified in the store.
func (db *DB) checkVerified(rec *domain.ExternalTransactionRecord) error {
	cur, exists := db.records[rec.Signature]
	if !exists || cur.Status != domain.TxStatusVerified {
		return storage.ErrConflict
	}
	return nil
}

func (db *DB) markApplied(rec *domain.ExternalTransactionRecord) error {
	applied := *rec
	applied.Status = domain.TxStatusApplied
	if err := db.transitionRecord(&applied, domain.TxStatusVerified); err != nil {
		return err
	}
	rec.Status = domain.TxStatusApplied
	return nil
}

// ApplyMint inserts t and marks rec applied.
func (a *Applier) ApplyMint(_ context.Context, rec *domain.ExternalTransactionRecord, t *domain.Token) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	if err := a.db.checkVerified(rec); err != nil {
		return err
	}
	if _, exists := a.db.tokens[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	if err := a.db.insertToken(t); err != nil {
		return err
	}
	return a.db.markApplied(rec)
}

// ApplyTrade swaps t at expectedVersion, inserts trade and marks rec applied.
func (a *Applier) ApplyTrade(_ context.Context, rec *domain.ExternalTransactionRecord, t *domain.Token, expectedVersion int64, trade *domain.CurveTrade) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	if err := a.db.checkVerified(rec); err != nil {
		return err
	}
	cur, exists := a.db.tokens[t.Mint]
	if !exists {
		return storage.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return storage.ErrConflict
	}
	if _, exists := a.db.trades[trade.ID]; exists {
		return storage.ErrDuplicateKey
	}

	if err := a.db.insertTrade(trade); err != nil {
		return err
	}
	if err := a.db.swapToken(t, expectedVersion); err != nil {
		return err
	}
	return a.db.markApplied(rec)
}

// ApplySettlement inserts s and p and marks rec applied.
func (a *Applier) ApplySettlement(_ context.Context, rec *domain.ExternalTransactionRecord, s *domain.SettlementTransaction, p *domain.Purchase) error {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	if err := a.db.checkVerified(rec); err != nil {
		return err
	}
	if _, exists := a.db.settlements[s.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := a.db.purchases[purchaseKey(p.BuyerID, p.ItemID)]; exists {
		return storage.ErrDuplicateKey
	}

	a.db.settlements[s.ID] = copySettlement(s)
	pc := *p
	a.db.purchases[purchaseKey(p.BuyerID, p.ItemID)] = &pc
	return a.db.markApplied(rec)
}
