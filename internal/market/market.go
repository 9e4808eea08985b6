// Package market runs creator tokens on the bonding curve: minting against a
// verified buy-in, curve buys and sells, and graduation into a liquidity pool.
//
// All reserves sit in one reserve wallet; per-token accounting lives in the
// store and every change to it is a compare-and-set on the token version.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"solana-marketplace/internal/curve"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/verification"
)

// Defaults.
const (
	DefaultQuoteUnit           = 1_000_000
	DefaultMinBuyIn            = 1000
	DefaultDecimals            = 6
	DefaultSupply              = 1_000_000_000
	DefaultGraduationThreshold = 100_000
	DefaultGraduationFee       = 6_000_000_000
	DefaultCASRetries          = 5
	DefaultDeliveryExpiry      = 5 * time.Minute
)

// Verifier proves trader payments.
type Verifier interface {
	Verify(ctx context.Context, signature string, exp verification.Expected) (*verification.Result, error)
}

// Executor moves reserve funds and provisions mints.
type Executor interface {
	Execute(ctx context.Context, transfers []executor.Transfer, feePayer string) (*executor.Result, error)
	ExecuteInstructions(ctx context.Context, ixs []solanago.Instruction, feePayer string, extra ...solanago.PrivateKey) (*executor.Result, error)
	MintInstructions(ctx context.Context, payer, mint, authority, holder solanago.PublicKey, decimals uint8, supply uint64, mintSize uint64) ([]solanago.Instruction, error)
}

// MintKeys derives the mint keypair for a buy-in signature.
type MintKeys interface {
	DeriveMintKey(seed string) (solanago.PrivateKey, error)
}

// Stores groups the persistence the market needs.
type Stores struct {
	Tokens  storage.TokenStore
	Trades  storage.TradeStore
	Applier storage.Applier
}

// Config holds market settings. Zero values take the defaults.
type Config struct {
	// ReserveWallet receives payments, holds reserves and supply, and pays fees.
	ReserveWallet string
	// TreasuryWallet receives the graduation fee and accrued protocol fees.
	TreasuryWallet string
	// QuoteMint is the SPL mint of the quote asset; empty means native SOL.
	QuoteMint string
	// QuoteUnit is how many quote base units make one curve unit.
	QuoteUnit uint64
	// MinBuyIn is the minimum mint buy-in in curve units.
	MinBuyIn uint64
	Decimals uint8
	// Supply is the whole-token supply minted to the curve account.
	Supply uint64
	// GraduationThreshold is the reserve, in curve units, needed to graduate.
	GraduationThreshold uint64
	// GraduationFee is paid to the treasury in quote base units.
	GraduationFee uint64
	// CASRetries bounds re-reads after a lost token compare-and-set.
	CASRetries int
	// DeliveryExpiry is how long an unconfirmed delivery or graduation
	// transfer may stay pending.
	DeliveryExpiry    time.Duration
	OperatorRecipient string
}

func (c *Config) withDefaults() {
	if c.QuoteUnit == 0 {
		c.QuoteUnit = DefaultQuoteUnit
	}
	if c.MinBuyIn == 0 {
		c.MinBuyIn = DefaultMinBuyIn
	}
	if c.Decimals == 0 {
		c.Decimals = DefaultDecimals
	}
	if c.Supply == 0 {
		c.Supply = DefaultSupply
	}
	if c.GraduationThreshold == 0 {
		c.GraduationThreshold = DefaultGraduationThreshold
	}
	if c.GraduationFee == 0 {
		c.GraduationFee = DefaultGraduationFee
	}
	if c.CASRetries <= 0 {
		c.CASRetries = DefaultCASRetries
	}
	if c.DeliveryExpiry <= 0 {
		c.DeliveryExpiry = DefaultDeliveryExpiry
	}
}

// Market is the bonding-curve token market.
type Market struct {
	ledger   *curve.Ledger
	verifier Verifier
	executor Executor
	keys     MintKeys
	pool     PoolClient
	rpc      solana.RPCClient
	stores   Stores
	notifier notify.Enqueuer
	cfg      Config
	reserve  solanago.PublicKey
	scale    uint64 // raw units per whole token
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Market.
type Option func(*Market)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Market) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Market) { m.logger = l }
}

// WithNotifier sets where market notifications are enqueued.
func WithNotifier(n notify.Enqueuer) Option {
	return func(m *Market) { m.notifier = n }
}

// Deps are the collaborators of a Market.
type Deps struct {
	Ledger   *curve.Ledger
	Verifier Verifier
	Executor Executor
	Keys     MintKeys
	Pool     PoolClient
	RPC      solana.RPCClient
	Stores   Stores
}

// New creates a Market.
func New(deps Deps, cfg Config, opts ...Option) (*Market, error) {
	cfg.withDefaults()
	reserve, err := solanago.PublicKeyFromBase58(cfg.ReserveWallet)
	if err != nil {
		return nil, fmt.Errorf("reserve wallet: %w", err)
	}
	if cfg.TreasuryWallet == "" {
		return nil, errors.New("treasury wallet is required")
	}
	scale := uint64(1)
	for i := uint8(0); i < cfg.Decimals; i++ {
		scale *= 10
	}
	if deps.Ledger == nil {
		deps.Ledger = curve.NewLedger(curve.DefaultK)
	}

	m := &Market{
		ledger:   deps.Ledger,
		verifier: deps.Verifier,
		executor: deps.Executor,
		keys:     deps.Keys,
		pool:     deps.Pool,
		rpc:      deps.RPC,
		stores:   deps.Stores,
		cfg:      cfg,
		reserve:  reserve,
		scale:    scale,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Token returns a token by mint.
func (m *Market) Token(ctx context.Context, mint string) (*domain.Token, error) {
	t, err := m.stores.Tokens.GetByMint(ctx, mint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// Tokens lists tokens in status, or all when status is empty.
func (m *Market) Tokens(ctx context.Context, status domain.TokenStatus) ([]*domain.Token, error) {
	return m.stores.Tokens.List(ctx, status)
}

// Trades returns the newest trades of a token.
func (m *Market) Trades(ctx context.Context, mint string, limit int) ([]*domain.CurveTrade, error) {
	return m.stores.Trades.ListByMint(ctx, mint, limit)
}

// toCurve splits a quote payment into whole curve units and the dust left over.
func (m *Market) toCurve(base uint64) (units, dust uint64) {
	return base / m.cfg.QuoteUnit, base % m.cfg.QuoteUnit
}

// toBase converts curve units to quote base units.
func (m *Market) toBase(units uint64) (uint64, error) {
	return mulChecked(units, m.cfg.QuoteUnit)
}

// toRaw converts whole tokens to raw token units.
func (m *Market) toRaw(whole uint64) (uint64, error) {
	return mulChecked(whole, m.scale)
}

func mulChecked(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, curve.ErrOverflow
	}
	return lo, nil
}

// swap writes t at its current version, re-reading on conflict via reload.
// It gives up with ErrContention after CASRetries attempts.
func (m *Market) swap(ctx context.Context, t *domain.Token, mutate func(*domain.Token) error) (*domain.Token, error) {
	for i := 0; i < m.cfg.CASRetries; i++ {
		next := *t
		if err := mutate(&next); err != nil {
			return nil, err
		}
		next.UpdatedAt = m.now().UTC()
		err := m.stores.Tokens.CompareAndSwap(ctx, &next, t.Version)
		if err == nil {
			return &next, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("swap token: %w", err)
		}
		if t, err = m.stores.Tokens.GetByMint(ctx, t.Mint); err != nil {
			return nil, fmt.Errorf("reload token: %w", err)
		}
	}
	return nil, ErrContention
}
