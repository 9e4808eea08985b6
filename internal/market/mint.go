package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	solanago "github.com/gagliardetto/solana-go"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/verification"
	"solana-marketplace/internal/wallet"
)

// Token metadata limits, matching the on-chain metadata program.
const (
	maxNameLen   = 32
	maxSymbolLen = 10
)

// MintRequest creates a token from a buy-in payment to the reserve wallet.
type MintRequest struct {
	PaymentSignature string
	CreatorID        string
	CreatorWallet    string
	Name             string
	Symbol           string
}

// MintOutcome is the result of Mint.
type MintOutcome struct {
	Token  *domain.Token
	Replay bool
}

func (r *MintRequest) validate() error {
	if r.PaymentSignature == "" || r.CreatorID == "" || r.CreatorWallet == "" {
		return ErrInvalidRequest
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.Name == "" || utf8.RuneCountInString(r.Name) > maxNameLen {
		return ErrInvalidTokenMeta
	}
	if r.Symbol == "" || len(r.Symbol) > maxSymbolLen {
		return ErrInvalidTokenMeta
	}
	for _, c := range r.Symbol {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ErrInvalidTokenMeta
		}
	}
	return wallet.ValidateAddress(r.CreatorWallet)
}

// Mint verifies the buy-in, records the token and provisions its mint on the
// ledger. The mint address is derived from the buy-in signature, so a replay
// always targets the same mint; a replay of a token that is still being
// provisioned resumes provisioning.
//
// A token whose provisioning was submitted but not yet confirmed is returned
// in the created state without an error.
func (m *Market) Mint(ctx context.Context, req MintRequest) (*MintOutcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	mintKey, err := m.keys.DeriveMintKey(req.PaymentSignature)
	if err != nil {
		return nil, fmt.Errorf("derive mint key: %w", err)
	}
	mint := mintKey.PublicKey().String()

	if t, err := m.stores.Tokens.GetByMint(ctx, mint); err == nil {
		return m.resumeMint(ctx, t, mintKey)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup token: %w", err)
	}

	minBase, err := m.toBase(m.cfg.MinBuyIn)
	if err != nil {
		return nil, err
	}
	res, err := m.verifier.Verify(ctx, req.PaymentSignature, verification.Expected{
		Direction: domain.DirectionMint,
		Amount:    minBase,
		AtLeast:   true,
		From:      req.CreatorWallet,
		To:        m.cfg.ReserveWallet,
		Mint:      m.cfg.QuoteMint,
	})
	if err != nil {
		return nil, err
	}
	if res.Replay {
		return m.replayMint(ctx, mint, mintKey)
	}

	t, err := m.newToken(req, mint, res.Record.Amount)
	if err != nil {
		return nil, err
	}
	rec := res.Record
	rec.ResultRef = mint
	rec.UpdatedAt = t.CreatedAt

	err = m.stores.Applier.ApplyMint(ctx, rec, t)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrDuplicateKey):
		return m.replayMint(ctx, mint, mintKey)
	default:
		return nil, fmt.Errorf("apply mint: %w", err)
	}

	m.logger.Info("token created",
		"mint", mint, "creator", t.CreatorID, "reserve", t.Reserve, "signature", req.PaymentSignature)

	t, err = m.provision(ctx, t, mintKey)
	if err != nil {
		return &MintOutcome{Token: t}, err
	}
	return &MintOutcome{Token: t}, nil
}

func (m *Market) newToken(req MintRequest, mint string, paid uint64) (*domain.Token, error) {
	reserve, dust := m.toCurve(paid)
	supply, err := m.toRaw(m.cfg.Supply)
	if err != nil {
		return nil, err
	}
	mintPK := solanago.MustPublicKeyFromBase58(mint)
	ata, _, err := solanago.FindAssociatedTokenAddress(m.reserve, mintPK)
	if err != nil {
		return nil, fmt.Errorf("derive curve account: %w", err)
	}

	now := m.now().UTC()
	return &domain.Token{
		Mint:          mint,
		Name:          req.Name,
		Symbol:        req.Symbol,
		CreatorID:     req.CreatorID,
		CreatorWallet: req.CreatorWallet,
		CurveAccount:  ata.String(),
		Decimals:      m.cfg.Decimals,
		Supply:        supply,
		Reserve:       reserve,
		AccruedFees:   dust,
		Status:        domain.TokenStatusCreated,
		MintSignature: req.PaymentSignature,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (m *Market) replayMint(ctx context.Context, mint string, mintKey solanago.PrivateKey) (*MintOutcome, error) {
	t, err := m.stores.Tokens.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load applied token: %w", err)
	}
	return m.resumeMint(ctx, t, mintKey)
}

func (m *Market) resumeMint(ctx context.Context, t *domain.Token, mintKey solanago.PrivateKey) (*MintOutcome, error) {
	if t.Status != domain.TokenStatusCreated {
		return &MintOutcome{Token: t, Replay: true}, nil
	}
	t, err := m.provision(ctx, t, mintKey)
	return &MintOutcome{Token: t, Replay: true}, err
}

// provision creates the mint account, mints the supply into the curve account
// and moves the token to trading. The provisioning transaction creates the
// mint account, so it can land at most once; a mint account that already
// exists means an earlier attempt landed.
func (m *Market) provision(ctx context.Context, t *domain.Token, mintKey solanago.PrivateKey) (*domain.Token, error) {
	mintPK := mintKey.PublicKey()

	info, err := m.rpc.GetAccountInfo(ctx, mintPK.String())
	if err != nil {
		return t, fmt.Errorf("%w: %w", ErrProvisioningIncomplete, err)
	}

	sig := t.ProvisionSig
	if info == nil {
		ixs, err := m.executor.MintInstructions(ctx, m.reserve, mintPK, m.reserve, m.reserve, t.Decimals, t.Supply, solana.MintAccountSize)
		if err != nil {
			return t, fmt.Errorf("%w: %w", ErrProvisioningIncomplete, err)
		}
		res, err := m.executor.ExecuteInstructions(ctx, ixs, m.cfg.ReserveWallet, mintKey)
		bg := context.WithoutCancel(ctx)
		if res != nil && res.Signature != "" {
			sig = res.Signature
		}
		switch {
		case err == nil:
		case errors.Is(err, executor.ErrPendingConfirmation):
			m.logger.Warn("mint provisioning pending confirmation", "mint", t.Mint, "signature", sig)
			if next, serr := m.swap(bg, t, func(n *domain.Token) error {
				n.ProvisionSig = sig
				return nil
			}); serr == nil {
				t = next
			}
			return t, nil
		default:
			m.logger.Error("mint provisioning failed", "mint", t.Mint, "signature", sig, "error", err)
			return t, fmt.Errorf("provision mint: %w", err)
		}
		ctx = bg
	}

	next, err := m.swap(ctx, t, func(n *domain.Token) error {
		if n.Status != domain.TokenStatusCreated {
			return errAlreadyPromoted
		}
		n.Status = domain.TokenStatusTrading
		n.ProvisionSig = sig
		return nil
	})
	if errors.Is(err, errAlreadyPromoted) {
		return m.stores.Tokens.GetByMint(ctx, t.Mint)
	}
	if err != nil {
		return t, err
	}

	m.logger.Info("token trading", "mint", next.Mint, "signature", sig)
	observability.RecordCurveTrade("mint", string(next.Status))
	m.notifyMinted(ctx, next)
	return next, nil
}

var errAlreadyPromoted = errors.New("token already promoted")
