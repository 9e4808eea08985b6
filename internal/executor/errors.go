package executor

import "solana-marketplace/internal/apperr"

// Executor errors.
var (
	ErrNoTransfers       = apperr.New(apperr.Validation, "no_transfers", "no non-zero transfers to execute")
	ErrInvalidAddress    = apperr.New(apperr.Validation, "invalid_address", "transfer address is not a valid public key")
	ErrSignerUnavailable = apperr.New(apperr.Internal, "signer_unavailable", "no signing key for a required signer")

	// ErrInstructionFailed means the transaction landed with an instruction
	// error. Funds did not move as intended.
	ErrInstructionFailed = apperr.New(apperr.FatalLedger, "instruction_failed", "transaction failed on the ledger")

	// ErrSubmitRejected is an unclassified submission failure.
	ErrSubmitRejected = apperr.New(apperr.FatalLedger, "submit_rejected", "ledger rejected the transaction")

	// ErrRetriesExhausted is returned after the configured number of
	// attempts, none of which landed.
	ErrRetriesExhausted = apperr.New(apperr.FatalLedger, "retries_exhausted", "transfer not confirmed within the retry bound")

	// ErrPendingConfirmation accompanies a Result with StatusSubmitted: the
	// transaction was sent but confirmation was not observed.
	ErrPendingConfirmation = apperr.New(apperr.TransientLedger, "pending_confirmation", "transaction submitted, pending confirmation")
)
