// Package stub provides a scripted in-memory ledger implementing solana.RPCClient.
package stub

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"solana-marketplace/internal/solana"
)

// Outcome describes what happens to an accepted submission.
type Outcome int

// Submission outcomes.
const (
	// OutcomeLand confirms the transaction successfully.
	OutcomeLand Outcome = iota
	// OutcomeLandFailed confirms the transaction with an instruction error.
	OutcomeLandFailed
	// OutcomeDrop accepts the submission but the transaction never lands.
	OutcomeDrop
)

// SendResult scripts the response to one SendTransaction call.
// A non-nil Err rejects the submission.
type SendResult struct {
	Err     error
	Outcome Outcome
}

// InstructionError is the meta.err reported for OutcomeLandFailed.
var InstructionError = map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}}

// Ledger is a deterministic in-memory ledger for tests.
// Unscripted submissions land successfully.
type Ledger struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Accounts     map[string]*solana.AccountInfo
	Statuses     map[string]*solana.SignatureStatus

	Height      uint64 // current block height
	HeightStep  uint64 // advance per GetBlockHeight call
	ValidWindow uint64 // blocks a blockhash stays valid
	Rent        uint64 // rent-exempt minimum returned for any size

	Script []SendResult

	// GetTransactionErr, when set, is returned by GetTransaction.
	GetTransactionErr error

	Sent          []string // signatures of accepted submissions
	SendCalls     int
	BlockhashCall int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Transactions: make(map[string]*solana.Transaction),
		Accounts:     make(map[string]*solana.AccountInfo),
		Statuses:     make(map[string]*solana.SignatureStatus),
		Height:       1000,
		HeightStep:   1,
		ValidWindow:  150,
		Rent:         1_461_600,
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*Ledger)(nil)

// GetTransaction returns the stored transaction or nil, nil.
func (l *Ledger) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.GetTransactionErr != nil {
		return nil, l.GetTransactionErr
	}
	tx, ok := l.Transactions[signature]
	if !ok {
		return nil, nil
	}
	return tx, nil
}

// GetLatestBlockhash returns a new deterministic blockhash per call.
func (l *Ledger) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.BlockhashCall++
	h := sha256.Sum256([]byte(fmt.Sprintf("blockhash-%d", l.BlockhashCall)))
	return &solana.Blockhash{
		Hash:                 base58.Encode(h[:]),
		LastValidBlockHeight: l.Height + l.ValidWindow,
	}, nil
}

// SendTransaction applies the next scripted result.
func (l *Ledger) SendTransaction(_ context.Context, raw []byte) (string, error) {
	sig, err := SignatureOf(raw)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.SendCalls++

	res := SendResult{Outcome: OutcomeLand}
	if len(l.Script) > 0 {
		res = l.Script[0]
		l.Script = l.Script[1:]
	}
	if res.Err != nil {
		return "", res.Err
	}

	l.Sent = append(l.Sent, sig)
	switch res.Outcome {
	case OutcomeLand:
		l.Statuses[sig] = &solana.SignatureStatus{Slot: int64(l.Height), ConfirmationStatus: solana.CommitmentConfirmed}
	case OutcomeLandFailed:
		l.Statuses[sig] = &solana.SignatureStatus{Slot: int64(l.Height), ConfirmationStatus: solana.CommitmentConfirmed, Err: InstructionError}
	}
	return sig, nil
}

// GetSignatureStatuses reports statuses recorded by SendTransaction.
func (l *Ledger) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := l.Statuses[sig]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}

// GetBlockHeight returns the current height, then advances it by HeightStep.
func (l *Ledger) GetBlockHeight(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.Height
	l.Height += l.HeightStep
	return h, nil
}

// GetAccountInfo returns the stored account or nil, nil.
func (l *Ledger) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.Accounts[pubkey]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, nil
}

// GetMinimumBalanceForRentExemption returns Rent.
func (l *Ledger) GetMinimumBalanceForRentExemption(_ context.Context, _ uint64) (uint64, error) {
	return l.Rent, nil
}

// AddTransaction adds a transaction to the ledger.
func (l *Ledger) AddTransaction(tx *solana.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Transactions[tx.Signature] = tx
}

// AddAccount marks an account as existing.
func (l *Ledger) AddAccount(pubkey string, info *solana.AccountInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if info == nil {
		info = &solana.AccountInfo{Lamports: l.Rent}
	}
	l.Accounts[pubkey] = info
}

// SentCount returns how many submissions were accepted.
func (l *Ledger) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Sent)
}

// SignatureOf extracts the first signature from a wire-format transaction.
func SignatureOf(raw []byte) (string, error) {
	// compact-u16 signature count followed by 64-byte signatures
	if len(raw) < 65 || raw[0] == 0 || raw[0] >= 0x80 {
		return "", errors.New("stub: malformed transaction")
	}
	return base58.Encode(raw[1:65]), nil
}
