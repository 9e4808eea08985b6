package executor

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// buildTransfers converts transfers into instructions and returns the
// custodial signers they need besides the fee payer. A missing destination
// token account is created in the same transaction, paid by the fee payer.
func (e *Executor) buildTransfers(ctx context.Context, transfers []Transfer, payer solanago.PublicKey) ([]solanago.Instruction, []solanago.PublicKey, error) {
	var (
		ixs     []solanago.Instruction
		signers []solanago.PublicKey
		seen    = make(map[solanago.PublicKey]bool)
		created = make(map[solanago.PublicKey]bool)
	)

	for _, t := range transfers {
		if t.Amount == 0 {
			continue
		}

		from, err := solanago.PublicKeyFromBase58(t.From)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: from %q", ErrInvalidAddress, t.From)
		}
		to, err := solanago.PublicKeyFromBase58(t.To)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: to %q", ErrInvalidAddress, t.To)
		}
		if !seen[from] && !from.Equals(payer) {
			seen[from] = true
			signers = append(signers, from)
		}

		if t.Mint == "" {
			ixs = append(ixs, system.NewTransferInstruction(t.Amount, from, to).Build())
			continue
		}

		mint, err := solanago.PublicKeyFromBase58(t.Mint)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: mint %q", ErrInvalidAddress, t.Mint)
		}
		src, _, err := solanago.FindAssociatedTokenAddress(from, mint)
		if err != nil {
			return nil, nil, fmt.Errorf("derive source token account: %w", err)
		}
		dst, _, err := solanago.FindAssociatedTokenAddress(to, mint)
		if err != nil {
			return nil, nil, fmt.Errorf("derive destination token account: %w", err)
		}

		if !created[dst] {
			exists, err := e.accountExists(ctx, dst)
			if err != nil {
				return nil, nil, err
			}
			if !exists {
				ixs = append(ixs, associatedtokenaccount.NewCreateInstruction(payer, to, mint).Build())
			}
			created[dst] = true
		}
		ixs = append(ixs, token.NewTransferInstruction(t.Amount, src, dst, from, nil).Build())
	}

	if len(ixs) == 0 {
		return nil, nil, ErrNoTransfers
	}
	return ixs, signers, nil
}

func (e *Executor) accountExists(ctx context.Context, pk solanago.PublicKey) (bool, error) {
	info, err := e.rpc.GetAccountInfo(ctx, pk.String())
	if err != nil {
		return false, fmt.Errorf("lookup account %s: %w", pk, err)
	}
	return info != nil, nil
}

// MintInstructions returns the instructions that create a mint account,
// initialise it with authority as mint authority, create the holder's token
// account and mint supply to it. The mint keypair must co-sign.
func (e *Executor) MintInstructions(ctx context.Context, payer, mint, authority, holder solanago.PublicKey, decimals uint8, supply uint64, mintSize uint64) ([]solanago.Instruction, error) {
	rent, err := e.rpc.GetMinimumBalanceForRentExemption(ctx, mintSize)
	if err != nil {
		return nil, fmt.Errorf("rent exemption: %w", err)
	}
	ata, _, err := solanago.FindAssociatedTokenAddress(holder, mint)
	if err != nil {
		return nil, fmt.Errorf("derive holder token account: %w", err)
	}

	return []solanago.Instruction{
		system.NewCreateAccountInstruction(rent, mintSize, solanago.TokenProgramID, payer, mint).Build(),
		token.NewInitializeMintInstruction(decimals, authority, authority, mint, solanago.SysVarRentPubkey).Build(),
		associatedtokenaccount.NewCreateInstruction(payer, holder, mint).Build(),
		token.NewMintToInstruction(supply, mint, ata, authority, nil).Build(),
	}, nil
}
