package stub

import (
	"solana-marketplace/internal/solana"
)

// Transfer describes a payment transaction to seed into the ledger.
type Transfer struct {
	Signature  string
	From       string
	To         string
	Amount     uint64
	Mint       string   // empty for native SOL
	References []string // extra accounts referenced by the transaction
	Failed     bool
	Slot       int64
	BlockTime  int64
}

const (
	seedBalance = 1_000_000_000_000
	networkFee  = 5000
)

// AddTransfer seeds a confirmed payment with consistent balance snapshots.
func (l *Ledger) AddTransfer(t Transfer) *solana.Transaction {
	tx := BuildTransfer(t)
	l.AddTransaction(tx)
	return tx
}

// BuildTransfer builds the getTransaction view of a single transfer.
// The sender is the fee payer.
func BuildTransfer(t Transfer) *solana.Transaction {
	if t.Slot == 0 {
		t.Slot = 100
	}
	if t.BlockTime == 0 {
		t.BlockTime = 1700000000
	}

	tx := &solana.Transaction{
		Slot:      t.Slot,
		Signature: t.Signature,
		BlockTime: t.BlockTime,
		Meta:      &solana.TransactionMeta{Fee: networkFee},
		Message:   &solana.TransactionMessage{},
	}
	if t.Failed {
		tx.Meta.Err = InstructionError
	}

	if t.Mint == "" {
		tx.Message.AccountKeys = []string{t.From, t.To, "11111111111111111111111111111111"}
		tx.Meta.PreBalances = []uint64{seedBalance, 0, 1}
		tx.Meta.PostBalances = []uint64{seedBalance - networkFee, 0, 1}
		if !t.Failed {
			tx.Meta.PostBalances[0] -= t.Amount
			tx.Meta.PostBalances[1] += t.Amount
		}
	} else {
		tx.Message.AccountKeys = []string{t.From, t.From + "-ata", t.To + "-ata", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}
		tx.Meta.PreBalances = []uint64{seedBalance, 2_039_280, 2_039_280, 1}
		tx.Meta.PostBalances = []uint64{seedBalance - networkFee, 2_039_280, 2_039_280, 1}
		moved := t.Amount
		if t.Failed {
			moved = 0
		}
		tx.Meta.PreTokenBalances = []solana.TokenBalance{
			{AccountIndex: 1, Mint: t.Mint, Owner: t.From, Amount: seedBalance, Decimals: 6},
			{AccountIndex: 2, Mint: t.Mint, Owner: t.To, Amount: 0, Decimals: 6},
		}
		tx.Meta.PostTokenBalances = []solana.TokenBalance{
			{AccountIndex: 1, Mint: t.Mint, Owner: t.From, Amount: seedBalance - moved, Decimals: 6},
			{AccountIndex: 2, Mint: t.Mint, Owner: t.To, Amount: moved, Decimals: 6},
		}
	}
	for _, ref := range t.References {
		tx.Message.AccountKeys = append(tx.Message.AccountKeys, ref)
		tx.Meta.PreBalances = append(tx.Meta.PreBalances, 0)
		tx.Meta.PostBalances = append(tx.Meta.PostBalances, 0)
	}
	return tx
}
