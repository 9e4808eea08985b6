package wallet

import "solana-marketplace/internal/apperr"

// Keystore errors.
var (
	ErrInvalidMasterKey = apperr.New(apperr.Internal, "invalid_master_key", "wallet master key must be 32 bytes (hex or base64)")
	ErrSealedCorrupt    = apperr.New(apperr.Internal, "sealed_secret_corrupt", "wallet secret cannot be opened")
	ErrWalletExists     = apperr.New(apperr.Conflict, "wallet_exists", "owner already has an active wallet")
	ErrWalletNotFound   = apperr.New(apperr.NotFound, "wallet_not_found", "no wallet for owner or address")
	ErrInvalidAddress   = apperr.New(apperr.Validation, "invalid_address", "address is not a base58 public key")
	ErrOffCurve         = apperr.New(apperr.Validation, "address_off_curve", "address is not a signing public key")
)
