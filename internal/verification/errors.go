package verification

import (
	"fmt"
	"strings"

	"solana-marketplace/internal/apperr"
)

// Verification errors. All but ErrVerificationInProgress and
// ErrLedgerUnavailable require the caller to fix the request.
var (
	ErrInvalidSignature       = apperr.New(apperr.Validation, "invalid_signature", "signature is not a valid base58 transaction signature")
	ErrInvalidExpectation     = apperr.New(apperr.Validation, "invalid_expectation", "expected transfer is incomplete")
	ErrNotFound               = apperr.New(apperr.Client, "transaction_not_found", "transaction not found on the ledger")
	ErrTransactionFailed      = apperr.New(apperr.Client, "transaction_failed", "transaction failed on the ledger")
	ErrAmountMismatch         = apperr.New(apperr.Client, "amount_mismatch", "transferred amount does not match")
	ErrWrongAsset             = apperr.New(apperr.Client, "wrong_asset", "transaction moved a different asset")
	ErrCounterpartyMismatch   = apperr.New(apperr.Client, "counterparty_mismatch", "sender or recipient does not match")
	ErrMissingReference       = apperr.New(apperr.Client, "missing_reference", "transaction does not reference a required account")
	ErrSignatureReused        = apperr.New(apperr.Client, "signature_reused", "signature already used for a different request")
	ErrVerificationInProgress = apperr.New(apperr.Conflict, "verification_in_progress", "signature is being verified by another request")
	ErrLedgerUnavailable      = apperr.New(apperr.TransientLedger, "ledger_unavailable", "ledger could not be queried")
)

// Divergence is one expected-versus-actual difference found in a transaction.
type Divergence struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// MismatchError carries the divergences behind a verification failure.
type MismatchError struct {
	Err         error
	Divergences []Divergence
}

func (e *MismatchError) Error() string {
	parts := make([]string, 0, len(e.Divergences))
	for _, d := range e.Divergences {
		parts = append(parts, fmt.Sprintf("%s: expected %s, got %s", d.Field, d.Expected, d.Actual))
	}
	return e.Err.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

func mismatch(err error, field string, expected, actual any) *MismatchError {
	return &MismatchError{
		Err:         err,
		Divergences: []Divergence{{Field: field, Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}},
	}
}
