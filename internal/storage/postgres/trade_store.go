package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `id, mint, side, trader, payment_signature, amount_in, amount_out, fee,
	reserve_before, reserve_after, delivery_sig, status, failure_reason, created_at`

// GetByID returns ErrNotFound if absent.
func (s *TradeStore) GetByID(ctx context.Context, id string) (*domain.CurveTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM curve_trades WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// GetByPaymentSignature returns ErrNotFound if absent.
func (s *TradeStore) GetByPaymentSignature(ctx context.Context, signature string) (*domain.CurveTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM curve_trades WHERE payment_signature = $1`
	return s.getOne(ctx, query, signature)
}

func (s *TradeStore) getOne(ctx context.Context, query, arg string) (*domain.CurveTrade, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return t, nil
}

// Insert adds a trade. Returns ErrDuplicateKey on a reused id or payment signature.
func (s *TradeStore) Insert(ctx context.Context, t *domain.CurveTrade) error {
	return insertTrade(ctx, s.pool, t)
}

func insertTrade(ctx context.Context, q querier, t *domain.CurveTrade) error {
	query := `
		INSERT INTO curve_trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := q.Exec(ctx, query,
		t.ID, t.Mint, string(t.Side), t.Trader, t.PaymentSignature, t.AmountIn, t.AmountOut, t.Fee,
		t.ReserveBefore, t.ReserveAfter, t.DeliverySig, string(t.Status), t.FailureReason, t.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// UpdateDelivery moves a trade from one status to another.
func (s *TradeStore) UpdateDelivery(ctx context.Context, id string, from, to domain.TradeStatus, deliverySig, reason string) error {
	query := `
		UPDATE curve_trades
		SET status = $3, delivery_sig = COALESCE(NULLIF($4, ''), delivery_sig), failure_reason = $5
		WHERE id = $1 AND status = $2
	`

	tag, err := s.pool.Exec(ctx, query, id, string(from), string(to), deliverySig, reason)
	if err != nil {
		return fmt.Errorf("update trade delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// ListByMint returns the newest trades first.
func (s *TradeStore) ListByMint(ctx context.Context, mint string, limit int) ([]*domain.CurveTrade, error) {
	query := `
		SELECT ` + tradeColumns + ` FROM curve_trades
		WHERE mint = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)
	`

	rows, err := s.pool.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var result []*domain.CurveTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}

// ListByStatus returns trades in status, oldest first.
func (s *TradeStore) ListByStatus(ctx context.Context, status domain.TradeStatus, limit int) ([]*domain.CurveTrade, error) {
	query := `
		SELECT ` + tradeColumns + ` FROM curve_trades
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT NULLIF($2, 0)
	`

	rows, err := s.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list trades by status: %w", err)
	}
	defer rows.Close()

	var result []*domain.CurveTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}

func scanTrade(row pgx.Row) (*domain.CurveTrade, error) {
	var (
		t      domain.CurveTrade
		side   string
		status string
	)
	err := row.Scan(
		&t.ID, &t.Mint, &side, &t.Trader, &t.PaymentSignature, &t.AmountIn, &t.AmountOut, &t.Fee,
		&t.ReserveBefore, &t.ReserveAfter, &t.DeliverySig, &status, &t.FailureReason, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Side = domain.TradeSide(side)
	t.Status = domain.TradeStatus(status)
	return &t, nil
}
