package memory

import (
	"sync"

	"solana-marketplace/internal/domain"
)

// DB holds every in-memory table behind one lock so that multi-table writes
// (see Applier) are atomic, as they are in a database transaction.
type DB struct {
	mu          sync.RWMutex
	records     map[string]*domain.ExternalTransactionRecord // keyed by signature
	tokens      map[string]*domain.Token                     // keyed by mint
	trades      map[string]*domain.CurveTrade                // keyed by id
	listings    map[string]*domain.Listing                   // keyed by item id
	settlements map[string]*domain.SettlementTransaction     // keyed by id
	purchases   map[string]*domain.Purchase                  // keyed by buyer|item
	wallets     map[string]*domain.AgentWallet               // keyed by id
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		records:     make(map[string]*domain.ExternalTransactionRecord),
		tokens:      make(map[string]*domain.Token),
		trades:      make(map[string]*domain.CurveTrade),
		listings:    make(map[string]*domain.Listing),
		settlements: make(map[string]*domain.SettlementTransaction),
		purchases:   make(map[string]*domain.Purchase),
		wallets:     make(map[string]*domain.AgentWallet),
	}
}

func purchaseKey(buyerID, itemID string) string {
	return buyerID + "|" + itemID
}

func copySettlement(s *domain.SettlementTransaction) *domain.SettlementTransaction {
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyWallet(w *domain.AgentWallet) *domain.AgentWallet {
	c := *w
	c.Sealed = append([]byte(nil), w.Sealed...)
	if w.RetiredAt != nil {
		t := *w.RetiredAt
		c.RetiredAt = &t
	}
	return &c
}
