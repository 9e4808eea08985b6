// Package verification checks externally signed ledger transactions against
// the transfer a request claims, and keeps the per-signature idempotency record.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-tron/base58"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
)

// Default timings.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultStaleAfter   = 2 * time.Minute
)

// Expected is the transfer a signature must prove.
type Expected struct {
	Direction domain.TxDirection
	Amount    uint64
	// AtLeast accepts any received amount >= Amount.
	AtLeast bool
	From    string
	To      string
	// Mint selects an SPL token transfer; empty means native SOL.
	Mint string
	// References are accounts the transaction must include.
	References []string
}

func (e Expected) validate() error {
	if e.Direction == "" || e.Amount == 0 || e.From == "" || e.To == "" || e.From == e.To {
		return ErrInvalidExpectation
	}
	return nil
}

// Result is a verified transfer.
type Result struct {
	// Record holds the verified facts. Amount is the amount actually received.
	Record *domain.ExternalTransactionRecord
	// Replay is true when the signature was already applied to internal state.
	Replay bool
}

// Verifier checks signatures against the ledger.
type Verifier struct {
	rpc          solana.RPCClient
	records      storage.TxRecordStore
	fetchTimeout time.Duration
	staleAfter   time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithFetchTimeout bounds each getTransaction call.
func WithFetchTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.fetchTimeout = d }
}

// WithStaleAfter sets how long a pending record blocks other verifiers.
func WithStaleAfter(d time.Duration) Option {
	return func(v *Verifier) { v.staleAfter = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a Verifier.
func New(rpc solana.RPCClient, records storage.TxRecordStore, opts ...Option) *Verifier {
	v := &Verifier{
		rpc:          rpc,
		records:      records,
		fetchTimeout: DefaultFetchTimeout,
		staleAfter:   DefaultStaleAfter,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify proves that signature performed the expected transfer and records it
// as verified. A signature already applied is returned with Replay set and is
// never re-derived from the ledger.
//
// Transient failures and mismatches remove the pending record so the client
// may resubmit. A transaction that failed on-chain is rejected permanently.
func (v *Verifier) Verify(ctx context.Context, signature string, exp Expected) (*Result, error) {
	start := v.now()
	res, err := v.verify(ctx, signature, exp)

	outcome := "verified"
	switch {
	case err != nil:
		outcome = apperr.CodeOf(err)
	case res.Replay:
		outcome = "replay"
	}
	observability.RecordVerification(string(exp.Direction), outcome, v.now().Sub(start).Seconds())

	if err != nil {
		v.logger.Info("verification failed",
			"signature", signature, "direction", exp.Direction, "class", apperr.ClassOf(err), "error", err)
	}
	return res, err
}

func (v *Verifier) verify(ctx context.Context, signature string, exp Expected) (*Result, error) {
	if !ValidSignature(signature) {
		return nil, ErrInvalidSignature
	}
	if err := exp.validate(); err != nil {
		return nil, err
	}

	now := v.now()
	claim := &domain.ExternalTransactionRecord{
		Signature: signature,
		Direction: exp.Direction,
		Amount:    exp.Amount,
		From:      exp.From,
		To:        exp.To,
		Mint:      exp.Mint,
		Status:    domain.TxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// A concurrent release can delete the row between insert and read; one
	// more insert resolves it.
	for attempt := 0; attempt < 2; attempt++ {
		err := v.records.Insert(ctx, claim)
		if err == nil {
			return v.fetchAndCheck(ctx, claim, exp)
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert tx record: %w", err)
		}

		existing, err := v.records.GetBySignature(ctx, signature)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get tx record: %w", err)
		}
		return v.resume(ctx, existing, claim, exp)
	}
	return nil, ErrVerificationInProgress
}

// resume handles a signature that already has a record.
func (v *Verifier) resume(ctx context.Context, existing, claim *domain.ExternalTransactionRecord, exp Expected) (*Result, error) {
	if !existing.SameShape(claim) {
		return nil, ErrSignatureReused
	}

	switch existing.Status {
	case domain.TxStatusApplied, domain.TxStatusVerified:
		if err := checkAmount(existing.Amount, exp); err != nil {
			return nil, err
		}
		return &Result{Record: existing, Replay: existing.Status == domain.TxStatusApplied}, nil

	case domain.TxStatusRejected:
		return nil, fmt.Errorf("%w: %s", ErrTransactionFailed, existing.Reason)

	default:
		now := v.now()
		if err := v.records.ClaimStale(ctx, existing.Signature, now.Add(-v.staleAfter), now); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return nil, ErrVerificationInProgress
			}
			return nil, fmt.Errorf("claim stale record: %w", err)
		}
		existing.UpdatedAt = now
		v.logger.Warn("took over stale verification", "signature", existing.Signature)
		return v.fetchAndCheck(ctx, existing, exp)
	}
}

// fetchAndCheck runs while rec is pending and owned by this call.
func (v *Verifier) fetchAndCheck(ctx context.Context, rec *domain.ExternalTransactionRecord, exp Expected) (*Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	tx, err := v.rpc.GetTransaction(fetchCtx, rec.Signature)
	cancel()

	if err != nil {
		v.release(ctx, rec.Signature)
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		v.release(ctx, rec.Signature)
		return nil, ErrNotFound
	}

	if tx.Failed() {
		rec.Status = domain.TxStatusRejected
		rec.Reason = fmt.Sprint(tx.Meta.Err)
		rec.Slot = tx.Slot
		rec.BlockTime = tx.BlockTime
		rec.UpdatedAt = v.now()
		if err := v.records.Transition(context.WithoutCancel(ctx), rec, domain.TxStatusPending); err != nil && !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("mark rejected: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrTransactionFailed, rec.Reason)
	}

	amount, err := Check(tx, exp)
	if err != nil {
		v.release(ctx, rec.Signature)
		return nil, err
	}

	rec.Status = domain.TxStatusVerified
	rec.Amount = amount
	rec.Slot = tx.Slot
	rec.BlockTime = tx.BlockTime
	rec.UpdatedAt = v.now()
	if err := v.records.Transition(ctx, rec, domain.TxStatusPending); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrVerificationInProgress
		}
		return nil, fmt.Errorf("mark verified: %w", err)
	}

	return &Result{Record: rec}, nil
}

// release deletes the pending record even if the caller has gone away.
func (v *Verifier) release(ctx context.Context, signature string) {
	if err := v.records.DeletePending(context.WithoutCancel(ctx), signature); err != nil {
		v.logger.Error("release pending record", "signature", signature, "error", err)
	}
}

// Check compares a fetched transaction with exp and returns the amount received.
// It has no side effects.
func Check(tx *solana.Transaction, exp Expected) (uint64, error) {
	for _, ref := range exp.References {
		if !hasAccount(tx, ref) {
			return 0, mismatch(ErrMissingReference, "reference", ref, "absent")
		}
	}
	if exp.Mint == "" {
		return checkNative(tx, exp)
	}
	return checkToken(tx, exp)
}

func checkNative(tx *solana.Transaction, exp Expected) (uint64, error) {
	received, _, ok := nativeDelta(tx, exp.To)
	if !ok || received <= 0 {
		if mints := tokenMintsOf(tx, exp.To); len(mints) > 0 {
			return 0, mismatch(ErrWrongAsset, "asset", "SOL", mints[0])
		}
		if !ok {
			return 0, mismatch(ErrCounterpartyMismatch, "to", exp.To, "absent")
		}
		return 0, mismatch(ErrAmountMismatch, "amount", exp.Amount, received)
	}
	if err := checkAmount(uint64(received), exp); err != nil {
		return 0, err
	}

	sent, idx, ok := nativeDelta(tx, exp.From)
	if !ok {
		return 0, mismatch(ErrCounterpartyMismatch, "from", exp.From, "absent")
	}
	debit := -sent
	if idx == 0 {
		// The first account pays the network fee.
		debit -= int64(tx.Meta.Fee)
	}
	if debit < received {
		return 0, mismatch(ErrCounterpartyMismatch, "from_debit", received, debit)
	}
	return uint64(received), nil
}

func checkToken(tx *solana.Transaction, exp Expected) (uint64, error) {
	received, ok := tokenDelta(tx, exp.To, exp.Mint)
	if !ok || received <= 0 {
		if mints := tokenMintsOf(tx, exp.To); len(mints) > 0 {
			return 0, mismatch(ErrWrongAsset, "mint", exp.Mint, mints[0])
		}
		if d, _, native := nativeDelta(tx, exp.To); native && d > 0 {
			return 0, mismatch(ErrWrongAsset, "mint", exp.Mint, "SOL")
		}
		if !ok {
			return 0, mismatch(ErrCounterpartyMismatch, "to", exp.To, "absent")
		}
		return 0, mismatch(ErrAmountMismatch, "amount", exp.Amount, received)
	}
	if err := checkAmount(uint64(received), exp); err != nil {
		return 0, err
	}

	sent, ok := tokenDelta(tx, exp.From, exp.Mint)
	if !ok || -sent < received {
		return 0, mismatch(ErrCounterpartyMismatch, "from_debit", received, -sent)
	}
	return uint64(received), nil
}

func checkAmount(actual uint64, exp Expected) error {
	if exp.AtLeast {
		if actual < exp.Amount {
			return mismatch(ErrAmountMismatch, "amount", fmt.Sprintf(">= %d", exp.Amount), actual)
		}
		return nil
	}
	if actual != exp.Amount {
		return mismatch(ErrAmountMismatch, "amount", exp.Amount, actual)
	}
	return nil
}

// ValidSignature reports whether s decodes to a 64-byte ed25519 signature.
func ValidSignature(s string) bool {
	if len(s) < 64 || len(s) > 88 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 64
}
