package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// SettlementStore implements storage.SettlementStore and storage.SettlementSource using PostgreSQL.
type SettlementStore struct {
	pool *Pool
}

// NewSettlementStore creates a new SettlementStore.
func NewSettlementStore(pool *Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.SettlementStore  = (*SettlementStore)(nil)
	_ storage.SettlementSource = (*SettlementStore)(nil)
)

const settlementColumns = `id, buyer_id, buyer_wallet, seller_id, seller_wallet, item_id, item_type,
	item_name, gross_amount, platform_fee, seller_net, payment_signature, payout_signature,
	status, failure_reason, created_at, completed_at`

func insertSettlement(ctx context.Context, q querier, s *domain.SettlementTransaction) error {
	query := `
		INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := q.Exec(ctx, query,
		s.ID, s.BuyerID, s.BuyerWallet, s.SellerID, s.SellerWallet, s.ItemID, string(s.ItemType),
		s.ItemName, s.GrossAmount, s.PlatformFee, s.SellerNet, s.PaymentSignature, s.PayoutSignature,
		string(s.Status), s.FailureReason, s.CreatedAt, s.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

func insertPurchase(ctx context.Context, q querier, p *domain.Purchase) error {
	query := `
		INSERT INTO purchases (buyer_id, item_id, item_type, settlement_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.Exec(ctx, query, p.BuyerID, p.ItemID, string(p.ItemType), p.SettlementID, p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound if absent.
func (s *SettlementStore) GetByID(ctx context.Context, id string) (*domain.SettlementTransaction, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// GetByPaymentSignature returns ErrNotFound if absent.
func (s *SettlementStore) GetByPaymentSignature(ctx context.Context, signature string) (*domain.SettlementTransaction, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE payment_signature = $1`
	return s.getOne(ctx, query, signature)
}

func (s *SettlementStore) getOne(ctx context.Context, query, arg string) (*domain.SettlementTransaction, error) {
	st, err := scanSettlement(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return st, nil
}

// SetPayoutSignature records a submitted payout on a pending settlement.
func (s *SettlementStore) SetPayoutSignature(ctx context.Context, id, signature string) error {
	query := `UPDATE settlements SET payout_signature = $2 WHERE id = $1 AND status = $3`

	tag, err := s.pool.Exec(ctx, query, id, signature, string(domain.SettlementPending))
	if err != nil {
		return fmt.Errorf("set payout signature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Transition writes the terminal state of st if its stored status equals from.
func (s *SettlementStore) Transition(ctx context.Context, st *domain.SettlementTransaction, from domain.SettlementStatus) error {
	query := `
		UPDATE settlements
		SET status = $2, payout_signature = $3, failure_reason = $4, completed_at = $5
		WHERE id = $1 AND status = $6
	`

	tag, err := s.pool.Exec(ctx, query,
		st.ID, string(st.Status), st.PayoutSignature, st.FailureReason, st.CompletedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("transition settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// ListByStatus returns settlements in status, oldest first.
func (s *SettlementStore) ListByStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]*domain.SettlementTransaction, error) {
	query := `
		SELECT ` + settlementColumns + ` FROM settlements
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT NULLIF($2, 0)
	`
	return s.list(ctx, query, string(status), limit)
}

// ListByUser returns a user's settlements, newest first.
func (s *SettlementStore) ListByUser(ctx context.Context, userID string, role storage.UserRole, limit int) ([]*domain.SettlementTransaction, error) {
	var where string
	switch role {
	case storage.RoleBuyer:
		where = "buyer_id = $1"
	case storage.RoleSeller:
		where = "seller_id = $1"
	default:
		where = "(buyer_id = $1 OR seller_id = $1)"
	}

	query := `
		SELECT ` + settlementColumns + ` FROM settlements
		WHERE ` + where + `
		ORDER BY created_at DESC, id ASC
		LIMIT NULLIF($2, 0)
	`
	return s.list(ctx, query, userID, limit)
}

func (s *SettlementStore) list(ctx context.Context, query string, args ...any) ([]*domain.SettlementTransaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var result []*domain.SettlementTransaction
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return result, nil
}

// HasPurchased reports whether buyer owns item.
func (s *SettlementStore) HasPurchased(ctx context.Context, buyerID, itemID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE buyer_id = $1 AND item_id = $2)`

	var owned bool
	if err := s.pool.QueryRow(ctx, query, buyerID, itemID).Scan(&owned); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return owned, nil
}

// Stats aggregates all settlements.
func (s *SettlementStore) Stats(ctx context.Context) (*domain.MarketplaceStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(gross_amount) FILTER (WHERE status = 'completed'), 0)::BIGINT,
			COALESCE(SUM(platform_fee) FILTER (WHERE status = 'completed'), 0)::BIGINT,
			COUNT(DISTINCT buyer_id),
			COUNT(DISTINCT seller_id)
		FROM settlements
	`

	var stats domain.MarketplaceStats
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalSales, &stats.CompletedSales, &stats.FailedSales, &stats.PendingSales,
		&stats.TotalVolume, &stats.TotalCommissions, &stats.UniqueBuyers, &stats.UniqueSellers,
	)
	if err != nil {
		return nil, fmt.Errorf("settlement stats: %w", err)
	}
	return &stats, nil
}

// CompletedBetween returns completed settlements with completed_at in [start, end).
func (s *SettlementStore) CompletedBetween(ctx context.Context, start, end time.Time) ([]*domain.SettlementTransaction, error) {
	query := `
		SELECT ` + settlementColumns + ` FROM settlements
		WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2
		ORDER BY completed_at ASC, id ASC
	`
	return s.list(ctx, query, start, end)
}

func scanSettlement(row pgx.Row) (*domain.SettlementTransaction, error) {
	var (
		st       domain.SettlementTransaction
		itemType string
		status   string
	)
	err := row.Scan(
		&st.ID, &st.BuyerID, &st.BuyerWallet, &st.SellerID, &st.SellerWallet, &st.ItemID, &itemType,
		&st.ItemName, &st.GrossAmount, &st.PlatformFee, &st.SellerNet, &st.PaymentSignature, &st.PayoutSignature,
		&status, &st.FailureReason, &st.CreatedAt, &st.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	st.ItemType = domain.ItemType(itemType)
	st.Status = domain.SettlementStatus(status)
	return &st, nil
}
