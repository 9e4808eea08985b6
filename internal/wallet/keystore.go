// Package wallet keeps custodial agent wallets with secrets sealed at rest and
// resolves their signing keys for the executor.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/storage"
)

// Keystore creates, rotates and opens agent wallets.
type Keystore struct {
	store  storage.WalletStore
	master []byte
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Keystore.
type Option func(*Keystore)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(k *Keystore) { k.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *Keystore) { k.logger = l }
}

// NewKeystore creates a keystore sealing secrets under masterKey.
func NewKeystore(store storage.WalletStore, masterKey []byte, opts ...Option) (*Keystore, error) {
	if len(masterKey) != MasterKeyLen {
		return nil, ErrInvalidMasterKey
	}
	k := &Keystore{
		store:  store,
		master: append([]byte(nil), masterKey...),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Create generates the first wallet of owner.
func (k *Keystore) Create(ctx context.Context, owner string) (*domain.AgentWallet, error) {
	w, err := k.generate(owner)
	if err != nil {
		return nil, err
	}
	if err := k.store.Insert(ctx, w); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrWalletExists
		}
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	k.logger.Info("agent wallet created", "owner", owner, "address", w.Address)
	return w, nil
}

// Ensure returns the active wallet of owner, creating one if none exists.
func (k *Keystore) Ensure(ctx context.Context, owner string) (*domain.AgentWallet, error) {
	w, err := k.Active(ctx, owner)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	w, err = k.Create(ctx, owner)
	if errors.Is(err, ErrWalletExists) {
		// Lost a creation race.
		return k.Active(ctx, owner)
	}
	return w, err
}

// Rotate retires the active wallet of owner and activates a new one.
// Funds are not moved.
func (k *Keystore) Rotate(ctx context.Context, owner string) (*domain.AgentWallet, error) {
	w, err := k.generate(owner)
	if err != nil {
		return nil, err
	}
	if err := k.store.Rotate(ctx, w, k.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("rotate wallet: %w", err)
	}

	k.logger.Info("agent wallet rotated", "owner", owner, "address", w.Address)
	return w, nil
}

// Active returns the active wallet of owner.
func (k *Keystore) Active(ctx context.Context, owner string) (*domain.AgentWallet, error) {
	w, err := k.store.GetActive(ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

// ResolveKey opens the secret of the wallet at address. Retired wallets still
// resolve so funds left behind can be swept.
func (k *Keystore) ResolveKey(ctx context.Context, address string) (solanago.PrivateKey, error) {
	w, err := k.store.GetByAddress(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	secret, err := open(k.master, w.ID, w.Address, w.Sealed)
	if err != nil {
		return nil, err
	}
	return solanago.PrivateKey(secret), nil
}

// DeriveMintKey returns the mint keypair bound to seed. The same seed always
// yields the same keypair, so a replayed creation targets the same mint.
func (k *Keystore) DeriveMintKey(seed string) (solanago.PrivateKey, error) {
	r := hkdf.New(sha256.New, k.master, []byte(seed), []byte(mintInfo))
	s := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, s); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return solanago.PrivateKey(ed25519.NewKeyFromSeed(s)), nil
}

func (k *Keystore) generate(owner string) (*domain.AgentWallet, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	w := &domain.AgentWallet{
		ID:        uuid.NewString(),
		Owner:     owner,
		Address:   key.PublicKey().String(),
		Active:    true,
		CreatedAt: k.now().UTC(),
	}
	w.Sealed, err = seal(k.master, w.ID, w.Address, key)
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}
	return w, nil
}
