// Package settlement settles marketplace purchases: it verifies the buyer's
// payment into escrow, records the sale and pays the seller and the platform
// in one ledger transaction.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/verification"
	"solana-marketplace/internal/wallet"
)

// Verifier proves buyer payments.
type Verifier interface {
	Verify(ctx context.Context, signature string, exp verification.Expected) (*verification.Result, error)
}

// Executor submits payouts.
type Executor interface {
	Execute(ctx context.Context, transfers []executor.Transfer, feePayer string) (*executor.Result, error)
}

// Stores groups the persistence the distributor needs.
type Stores struct {
	Listings    storage.ListingStore
	Settlements storage.SettlementStore
	Applier     storage.Applier
	// Mirror is optional.
	Mirror storage.SettlementMirror
}

// Config holds distributor settings.
type Config struct {
	// EscrowWallet receives buyer payments and pays out; it is the fee payer.
	EscrowWallet string
	// PlatformWallet receives the commission.
	PlatformWallet string
	CommissionBps  uint64
	// OperatorRecipient receives failure alerts.
	OperatorRecipient string
	// PayoutExpiry is how long an unconfirmed payout may stay pending before
	// reconciliation fails it.
	PayoutExpiry time.Duration
}

// Request is a purchase to settle.
type Request struct {
	PaymentSignature string
	BuyerID          string
	BuyerWallet      string
	ItemID           string
}

// Outcome is the result of Settle.
type Outcome struct {
	Settlement *domain.SettlementTransaction
	// Replay is true when the payment was settled by an earlier request.
	Replay bool
}

// Distributor settles purchases.
type Distributor struct {
	verifier Verifier
	executor Executor
	rpc      solana.RPCClient
	stores   Stores
	notifier notify.Enqueuer
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Distributor) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Distributor) { d.logger = l }
}

// NewDistributor creates a Distributor.
func NewDistributor(v Verifier, ex Executor, rpc solana.RPCClient, stores Stores, notifier notify.Enqueuer, cfg Config, opts ...Option) *Distributor {
	if cfg.CommissionBps == 0 {
		cfg.CommissionBps = DefaultCommissionBps
	}
	if cfg.PayoutExpiry <= 0 {
		cfg.PayoutExpiry = 5 * time.Minute
	}
	d := &Distributor{
		verifier: v,
		executor: ex,
		rpc:      rpc,
		stores:   stores,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Settle verifies the buyer's payment and pays out the sale.
//
// The returned settlement is pending when the payout was submitted but not
// yet confirmed, and failed (with the executor error) when the payout could
// not be made. Replaying a payment signature for the same buyer and item
// returns the stored settlement.
func (d *Distributor) Settle(ctx context.Context, req Request) (*Outcome, error) {
	if req.PaymentSignature == "" || req.BuyerID == "" || req.BuyerWallet == "" || req.ItemID == "" {
		return nil, ErrInvalidRequest
	}
	if err := wallet.ValidateAddress(req.BuyerWallet); err != nil {
		return nil, err
	}

	if s, err := d.stores.Settlements.GetByPaymentSignature(ctx, req.PaymentSignature); err == nil {
		return replayOf(s, req)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup settlement: %w", err)
	}

	listing, err := d.stores.Listings.GetByID(ctx, req.ItemID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing.IsFree || listing.Price == 0 {
		return nil, ErrFreeItem
	}
	if listing.SellerWallet == req.BuyerWallet {
		return nil, ErrSelfPurchase
	}

	owned, err := d.stores.Settlements.HasPurchased(ctx, req.BuyerID, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("check purchase: %w", err)
	}
	if owned {
		return nil, ErrAlreadyPurchased
	}

	res, err := d.verifier.Verify(ctx, req.PaymentSignature, verification.Expected{
		Direction: domain.DirectionPurchase,
		Amount:    listing.Price,
		From:      req.BuyerWallet,
		To:        d.cfg.EscrowWallet,
	})
	if err != nil {
		return nil, err
	}
	if res.Replay {
		return d.replay(ctx, req)
	}

	s, err := d.record(ctx, res.Record, req, listing)
	if err != nil {
		return nil, err
	}
	if s == nil {
		// Another request applied this payment first.
		return d.replay(ctx, req)
	}

	return d.payout(ctx, s)
}

func (d *Distributor) replay(ctx context.Context, req Request) (*Outcome, error) {
	s, err := d.stores.Settlements.GetByPaymentSignature(ctx, req.PaymentSignature)
	if err != nil {
		return nil, fmt.Errorf("load applied settlement: %w", err)
	}
	return replayOf(s, req)
}

// replayOf returns s for a repeated request. A payment already settled for
// another buyer or item is not reusable.
func replayOf(s *domain.SettlementTransaction, req Request) (*Outcome, error) {
	if s.BuyerID != req.BuyerID || s.ItemID != req.ItemID || s.BuyerWallet != req.BuyerWallet {
		return nil, verification.ErrSignatureReused
	}
	return &Outcome{Settlement: s, Replay: true}, nil
}

// record inserts the pending settlement together with the purchase row and
// the applied mark. It returns nil, nil when the record was applied by a
// concurrent request.
func (d *Distributor) record(ctx context.Context, rec *domain.ExternalTransactionRecord, req Request, listing *domain.Listing) (*domain.SettlementTransaction, error) {
	fee, net := Split(listing.Price, d.cfg.CommissionBps)
	now := d.now().UTC()

	s := &domain.SettlementTransaction{
		ID:               uuid.NewString(),
		BuyerID:          req.BuyerID,
		BuyerWallet:      req.BuyerWallet,
		SellerID:         listing.SellerID,
		SellerWallet:     listing.SellerWallet,
		ItemID:           listing.ItemID,
		ItemType:         listing.ItemType,
		ItemName:         listing.Name,
		GrossAmount:      listing.Price,
		PlatformFee:      fee,
		SellerNet:        net,
		PaymentSignature: req.PaymentSignature,
		Status:           domain.SettlementPending,
		CreatedAt:        now,
	}
	purchase := &domain.Purchase{
		BuyerID:      req.BuyerID,
		ItemID:       listing.ItemID,
		ItemType:     listing.ItemType,
		SettlementID: s.ID,
		CreatedAt:    now,
	}
	rec.ResultRef = s.ID
	rec.UpdatedAt = now

	err := d.stores.Applier.ApplySettlement(ctx, rec, s, purchase)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, storage.ErrConflict):
		return nil, nil
	case errors.Is(err, storage.ErrDuplicateKey):
		// Paid twice for the same item; the verified record stays for refunds.
		d.logger.Error("duplicate purchase payment left verified",
			"signature", req.PaymentSignature, "buyer", req.BuyerID, "item", req.ItemID)
		return nil, ErrAlreadyPurchased
	default:
		return nil, fmt.Errorf("apply settlement: %w", err)
	}
}

// payout moves the seller's net and the platform fee out of escrow.
func (d *Distributor) payout(ctx context.Context, s *domain.SettlementTransaction) (*Outcome, error) {
	transfers := []executor.Transfer{
		{From: d.cfg.EscrowWallet, To: s.SellerWallet, Amount: s.SellerNet},
		{From: d.cfg.EscrowWallet, To: d.cfg.PlatformWallet, Amount: s.PlatformFee},
	}
	res, err := d.executor.Execute(ctx, transfers, d.cfg.EscrowWallet)

	// The sale is committed; finish bookkeeping even if the caller left.
	bg := context.WithoutCancel(ctx)

	if res != nil && res.Signature != "" {
		if serr := d.stores.Settlements.SetPayoutSignature(bg, s.ID, res.Signature); serr != nil {
			d.logger.Error("record payout signature", "settlement", s.ID, "signature", res.Signature, "error", serr)
		}
		s.PayoutSignature = res.Signature
	}

	switch {
	case err == nil:
		if err := d.complete(bg, s); err != nil {
			return nil, err
		}
		return &Outcome{Settlement: s}, nil

	case errors.Is(err, executor.ErrPendingConfirmation):
		d.logger.Warn("payout pending confirmation", "settlement", s.ID, "signature", s.PayoutSignature)
		observability.RecordSettlement(string(domain.SettlementPending), s.GrossAmount, 0)
		return &Outcome{Settlement: s}, nil

	default:
		if ferr := d.fail(bg, s, err); ferr != nil {
			return nil, ferr
		}
		return &Outcome{Settlement: s}, fmt.Errorf("payout: %w", err)
	}
}

func (d *Distributor) complete(ctx context.Context, s *domain.SettlementTransaction) error {
	now := d.now().UTC()
	s.Status = domain.SettlementCompleted
	s.CompletedAt = &now
	if err := d.stores.Settlements.Transition(ctx, s, domain.SettlementPending); err != nil {
		return fmt.Errorf("complete settlement: %w", err)
	}

	d.logger.Info("settlement completed",
		"settlement", s.ID, "signature", s.PayoutSignature, "gross", s.GrossAmount, "fee", s.PlatformFee)
	observability.RecordSettlement(string(s.Status), s.GrossAmount, s.PlatformFee)

	if d.stores.Mirror != nil {
		if err := d.stores.Mirror.Record(ctx, s); err != nil {
			d.logger.Warn("mirror settlement failed", "settlement", s.ID, "error", err)
		}
	}
	d.notifyCompleted(ctx, s)
	return nil
}

func (d *Distributor) fail(ctx context.Context, s *domain.SettlementTransaction, cause error) error {
	s.Status = domain.SettlementFailed
	s.FailureReason = cause.Error()
	if err := d.stores.Settlements.Transition(ctx, s, domain.SettlementPending); err != nil {
		return fmt.Errorf("fail settlement: %w", err)
	}

	d.logger.Error("settlement failed",
		"settlement", s.ID, "signature", s.PayoutSignature, "class", apperr.ClassOf(cause), "reason", s.FailureReason)
	observability.RecordSettlement(string(s.Status), s.GrossAmount, 0)
	d.notifyFailed(ctx, s)
	return nil
}
