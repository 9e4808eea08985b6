// Package executor builds, signs, submits and confirms bundled transfers
// against the ledger, retrying transient failures up to a fixed bound.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/solana"
)

// Default settings.
const (
	DefaultMaxRetries     = 3
	DefaultBackoffBase    = time.Second
	DefaultSubmitTimeout  = 10 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// Status is the state of an executed transaction.
type Status string

// Execution states.
const (
	StatusConfirmed Status = "confirmed"
	StatusSubmitted Status = "submitted"
)

// Transfer moves Amount from From to To. An empty Mint is a native SOL
// transfer; otherwise tokens move between the owners' associated token accounts.
type Transfer struct {
	From   string
	To     string
	Amount uint64
	Mint   string
}

// Result is the outcome of an execution.
type Result struct {
	Signature string
	Status    Status
	Attempts  int
}

// KeyResolver returns the signing key of a custodial address.
type KeyResolver interface {
	ResolveKey(ctx context.Context, address string) (solanago.PrivateKey, error)
}

// Config holds retry and timeout settings.
type Config struct {
	// MaxRetries is the total number of submission attempts.
	MaxRetries     int
	BackoffBase    time.Duration
	SubmitTimeout  time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		BackoffBase:    DefaultBackoffBase,
		SubmitTimeout:  DefaultSubmitTimeout,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

// Executor submits transfers. It is safe for concurrent use; retries of one
// call are sequential.
type Executor struct {
	rpc    solana.RPCClient
	ws     solana.WSClient
	keys   KeyResolver
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig overrides retry and timeout settings. Zero fields keep defaults.
func WithConfig(cfg Config) Option {
	return func(e *Executor) {
		if cfg.MaxRetries > 0 {
			e.cfg.MaxRetries = cfg.MaxRetries
		}
		if cfg.BackoffBase > 0 {
			e.cfg.BackoffBase = cfg.BackoffBase
		}
		if cfg.SubmitTimeout > 0 {
			e.cfg.SubmitTimeout = cfg.SubmitTimeout
		}
		if cfg.ConfirmTimeout > 0 {
			e.cfg.ConfirmTimeout = cfg.ConfirmTimeout
		}
		if cfg.PollInterval > 0 {
			e.cfg.PollInterval = cfg.PollInterval
		}
	}
}

// WithWebSocket confirms through signature subscriptions instead of polling alone.
func WithWebSocket(ws solana.WSClient) Option {
	return func(e *Executor) { e.ws = ws }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor.
func New(rpc solana.RPCClient, keys KeyResolver, opts ...Option) *Executor {
	e := &Executor{
		rpc:    rpc,
		keys:   keys,
		cfg:    DefaultConfig(),
		sleep:  sleepCtx,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute bundles transfers into one transaction paid by feePayer.
// Zero-amount transfers are skipped.
func (e *Executor) Execute(ctx context.Context, transfers []Transfer, feePayer string) (*Result, error) {
	payer, err := solanago.PublicKeyFromBase58(feePayer)
	if err != nil {
		return nil, fmt.Errorf("%w: fee payer %q", ErrInvalidAddress, feePayer)
	}

	ixs, signers, err := e.buildTransfers(ctx, transfers, payer)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, ixs, payer, signers, nil)
}

// ExecuteInstructions submits arbitrary instructions paid by feePayer.
// Signers beyond the fee payer that are not custodial are passed in extra.
func (e *Executor) ExecuteInstructions(ctx context.Context, ixs []solanago.Instruction, feePayer string, extra ...solanago.PrivateKey) (*Result, error) {
	if len(ixs) == 0 {
		return nil, ErrNoTransfers
	}
	payer, err := solanago.PublicKeyFromBase58(feePayer)
	if err != nil {
		return nil, fmt.Errorf("%w: fee payer %q", ErrInvalidAddress, feePayer)
	}
	return e.run(ctx, ixs, payer, nil, extra)
}

// run drives the attempt loop. Submission and confirmation continue on a
// context detached from the caller; a caller that goes away gets the
// submitted signature with ErrPendingConfirmation.
func (e *Executor) run(ctx context.Context, ixs []solanago.Instruction, payer solanago.PublicKey, signers []solanago.PublicKey, extra []solanago.PrivateKey) (*Result, error) {
	start := e.now()
	res, err := e.attempt(ctx, ixs, payer, signers, extra)

	status := "failed"
	if res != nil {
		status = string(res.Status)
	}
	observability.RecordExecution(status, e.now().Sub(start).Seconds())
	return res, err
}

func (e *Executor) attempt(ctx context.Context, ixs []solanago.Instruction, payer solanago.PublicKey, signers []solanago.PublicKey, extra []solanago.PrivateKey) (*Result, error) {
	keys, err := e.resolveKeys(ctx, payer, signers, extra)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	backoff := e.cfg.BackoffBase

	var (
		lastSig   string
		lastValid uint64
		lastErr   error
		// resend holds bytes whose submission timed out. They are sent
		// again unchanged until their blockhash expires.
		resend []byte
	)

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		// Never sign anew while an earlier signature may still land.
		if lastSig != "" {
			if res, err, done := e.checkPrevious(ctx, bg, lastSig, lastValid, attempt-1); done {
				return res, err
			}
		}
		if ctx.Err() != nil {
			return e.abandoned(lastSig, attempt-1, ctx.Err())
		}

		var (
			raw   []byte
			sig   string
			valid uint64
		)
		if resend != nil && e.unexpired(bg, lastValid) {
			raw, sig, valid = resend, lastSig, lastValid
			e.logger.Info("resending timed out submission", "signature", sig, "attempt", attempt)
		} else {
			if resend != nil {
				// Expired since the status check; it may have landed in the last valid block.
				if res, err, done := e.checkPrevious(ctx, bg, lastSig, lastValid, attempt-1); done {
					return res, err
				}
				resend = nil
			}

			bh, err := e.rpc.GetLatestBlockhash(bg)
			if err != nil {
				lastErr = err
				kind := solana.Classify(err)
				observability.RecordExecutorAttempt(kind.String())
				if !kind.Transient() {
					return nil, fmt.Errorf("%w: blockhash: %w", ErrSubmitRejected, err)
				}
				if kind != solana.FailureRecencyExpired {
					if err := e.backoff(ctx, &backoff); err != nil {
						return e.abandoned(lastSig, attempt, err)
					}
				}
				continue
			}

			raw, sig, err = sign(ixs, bh.Hash, payer, keys)
			if err != nil {
				return nil, err
			}
			valid = bh.LastValidBlockHeight
		}

		sendCtx, cancel := context.WithTimeout(bg, e.cfg.SubmitTimeout)
		_, err := e.rpc.SendTransaction(sendCtx, raw)
		cancel()

		if err != nil {
			lastErr = err
			kind := solana.Classify(err)
			observability.RecordExecutorAttempt(kind.String())
			e.logger.Warn("transfer submit failed",
				"signature", sig, "attempt", attempt, "class", kind.String(), "error", err)

			switch kind {
			case solana.FailureRecencyExpired:
				resend = nil
				continue
			case solana.FailureRateLimited:
				if err := e.backoff(ctx, &backoff); err != nil {
					return e.abandoned(lastSig, attempt, err)
				}
				continue
			case solana.FailureNetworkTimeout:
				// The node may have received it before the connection failed.
				lastSig, lastValid, resend = sig, valid, raw
				if err := e.backoff(ctx, &backoff); err != nil {
					return e.abandoned(lastSig, attempt, err)
				}
				continue
			default:
				return nil, fmt.Errorf("%w: %w", ErrSubmitRejected, err)
			}
		}

		lastSig, lastValid, resend = sig, valid, nil
		e.logger.Info("transfer submitted", "signature", sig, "attempt", attempt)

		err = e.confirm(ctx, bg, sig, valid)
		switch {
		case err == nil:
			observability.RecordExecutorAttempt("confirmed")
			e.logger.Info("transfer confirmed", "signature", sig, "attempt", attempt)
			return &Result{Signature: sig, Status: StatusConfirmed, Attempts: attempt}, nil
		case errors.Is(err, errExpired):
			lastErr = err
			observability.RecordExecutorAttempt(solana.FailureRecencyExpired.String())
			e.logger.Warn("transfer expired before confirmation", "signature", sig, "attempt", attempt)
		case errors.Is(err, ErrPendingConfirmation):
			observability.RecordExecutorAttempt("pending")
			return &Result{Signature: sig, Status: StatusSubmitted, Attempts: attempt}, err
		default:
			observability.RecordExecutorAttempt("fatal")
			e.logger.Error("transfer failed on ledger", "signature", sig, "attempt", attempt, "error", err)
			return nil, err
		}
	}

	switch {
	case resend != nil:
		// The node may still hold the timed out submission until its blockhash expires.
		err := e.confirm(ctx, bg, lastSig, lastValid)
		switch {
		case err == nil:
			return &Result{Signature: lastSig, Status: StatusConfirmed, Attempts: e.cfg.MaxRetries}, nil
		case errors.Is(err, ErrPendingConfirmation):
			return &Result{Signature: lastSig, Status: StatusSubmitted, Attempts: e.cfg.MaxRetries}, err
		case !errors.Is(err, errExpired):
			return nil, err
		}
	case lastSig != "":
		// The last signature may have landed after its final status poll.
		if res, err, done := e.checkPrevious(ctx, bg, lastSig, lastValid, e.cfg.MaxRetries); done {
			return res, err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, e.cfg.MaxRetries, lastErr)
	}
	return nil, ErrRetriesExhausted
}

// checkPrevious resolves an earlier submission that may have landed.
// done is false when the signature is unknown to the ledger.
func (e *Executor) checkPrevious(ctx, bg context.Context, sig string, lastValid uint64, attempts int) (*Result, error, bool) {
	statuses, err := e.rpc.GetSignatureStatuses(bg, []string{sig})
	if err != nil || len(statuses) == 0 || statuses[0] == nil {
		return nil, nil, false
	}
	st := statuses[0]
	if st.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInstructionFailed, st.Err), true
	}
	if st.Confirmed() {
		return &Result{Signature: sig, Status: StatusConfirmed, Attempts: attempts}, nil, true
	}

	// Processed but not yet confirmed: keep waiting on it.
	err = e.confirm(ctx, bg, sig, lastValid)
	switch {
	case err == nil:
		return &Result{Signature: sig, Status: StatusConfirmed, Attempts: attempts}, nil, true
	case errors.Is(err, errExpired):
		return nil, nil, false
	case errors.Is(err, ErrPendingConfirmation):
		return &Result{Signature: sig, Status: StatusSubmitted, Attempts: attempts}, err, true
	default:
		return nil, err, true
	}
}

// unexpired reports whether a blockhash valid through lastValid can still be
// included. An unknown height counts as unexpired.
func (e *Executor) unexpired(ctx context.Context, lastValid uint64) bool {
	height, err := e.rpc.GetBlockHeight(ctx)
	return err != nil || height <= lastValid
}

// abandoned reports caller cancellation. Once anything was submitted the
// caller learns the signature instead of an error-only result.
func (e *Executor) abandoned(lastSig string, attempts int, cause error) (*Result, error) {
	if lastSig == "" {
		return nil, cause
	}
	return &Result{Signature: lastSig, Status: StatusSubmitted, Attempts: attempts}, ErrPendingConfirmation
}

func (e *Executor) backoff(ctx context.Context, d *time.Duration) error {
	wait := *d
	*d *= 2
	return e.sleep(ctx, wait)
}

func (e *Executor) resolveKeys(ctx context.Context, payer solanago.PublicKey, signers []solanago.PublicKey, extra []solanago.PrivateKey) (map[solanago.PublicKey]solanago.PrivateKey, error) {
	keys := make(map[solanago.PublicKey]solanago.PrivateKey, len(signers)+len(extra)+1)
	for _, k := range extra {
		keys[k.PublicKey()] = k
	}

	for _, pk := range append([]solanago.PublicKey{payer}, signers...) {
		if _, ok := keys[pk]; ok {
			continue
		}
		key, err := e.keys.ResolveKey(ctx, pk.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSignerUnavailable, pk, err)
		}
		keys[pk] = key
	}
	return keys, nil
}

func sign(ixs []solanago.Instruction, blockhash string, payer solanago.PublicKey, keys map[solanago.PublicKey]solanago.PrivateKey) ([]byte, string, error) {
	hash, err := solanago.HashFromBase58(blockhash)
	if err != nil {
		return nil, "", fmt.Errorf("parse blockhash: %w", err)
	}

	tx, err := solanago.NewTransaction(ixs, hash, solanago.TransactionPayer(payer))
	if err != nil {
		return nil, "", fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if k, ok := keys[pk]; ok {
			return &k
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrSignerUnavailable, err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, "", fmt.Errorf("encode transaction: %w", err)
	}
	return raw, tx.Signatures[0].String(), nil
}
