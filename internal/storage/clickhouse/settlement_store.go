package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// SettlementStore is the ClickHouse read model of completed settlements.
// It implements storage.SettlementMirror for the write side and
// storage.SettlementSource for the commission reporter.
type SettlementStore struct {
	conn *Conn
}

// NewSettlementStore creates a new SettlementStore.
func NewSettlementStore(conn *Conn) *SettlementStore {
	return &SettlementStore{conn: conn}
}

var (
	_ storage.SettlementMirror = (*SettlementStore)(nil)
	_ storage.SettlementSource = (*SettlementStore)(nil)
)

// Record appends a completed settlement. ReplacingMergeTree collapses
// repeated mirrors of the same id.
func (s *SettlementStore) Record(ctx context.Context, st *domain.SettlementTransaction) error {
	if st.Status != domain.SettlementCompleted || st.CompletedAt == nil {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO completed_settlements (
			id, buyer_id, seller_id, seller_wallet, item_id, item_type, item_name,
			gross_amount, platform_fee, seller_net, payment_signature, payout_signature,
			created_at, completed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		st.ID,
		st.BuyerID,
		st.SellerID,
		st.SellerWallet,
		st.ItemID,
		string(st.ItemType),
		st.ItemName,
		st.GrossAmount,
		st.PlatformFee,
		st.SellerNet,
		st.PaymentSignature,
		st.PayoutSignature,
		st.CreatedAt.UTC(),
		st.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append settlement: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CompletedBetween returns completed settlements with completed_at in [start, end).
func (s *SettlementStore) CompletedBetween(ctx context.Context, start, end time.Time) ([]*domain.SettlementTransaction, error) {
	query := `
		SELECT id, buyer_id, seller_id, seller_wallet, item_id, item_type, item_name,
			gross_amount, platform_fee, seller_net, payment_signature, payout_signature,
			created_at, completed_at
		FROM completed_settlements FINAL
		WHERE completed_at >= ? AND completed_at < ?
		ORDER BY completed_at ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query completed settlements: %w", err)
	}
	defer rows.Close()

	var result []*domain.SettlementTransaction
	for rows.Next() {
		var (
			st          domain.SettlementTransaction
			itemType    string
			completedAt time.Time
		)
		if err := rows.Scan(
			&st.ID,
			&st.BuyerID,
			&st.SellerID,
			&st.SellerWallet,
			&st.ItemID,
			&itemType,
			&st.ItemName,
			&st.GrossAmount,
			&st.PlatformFee,
			&st.SellerNet,
			&st.PaymentSignature,
			&st.PayoutSignature,
			&st.CreatedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		st.ItemType = domain.ItemType(itemType)
		st.Status = domain.SettlementCompleted
		st.CompletedAt = &completedAt
		result = append(result, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return result, nil
}
