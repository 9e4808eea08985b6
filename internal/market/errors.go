package market

import "solana-marketplace/internal/apperr"

// Market errors.
var (
	ErrInvalidRequest         = apperr.New(apperr.Validation, "invalid_token_request", "payment signature, trader and amount are required")
	ErrInvalidTokenMeta       = apperr.New(apperr.Validation, "invalid_token_metadata", "token name or symbol is invalid")
	ErrTradeTooSmall          = apperr.New(apperr.Client, "trade_too_small", "amount is below one curve unit")
	ErrTokenNotFound          = apperr.New(apperr.NotFound, "token_not_found", "token does not exist")
	ErrTradeNotFound          = apperr.New(apperr.NotFound, "trade_not_found", "trade does not exist")
	ErrNotTradable            = apperr.New(apperr.Client, "token_not_tradable", "token is not accepting curve trades")
	ErrAlreadyGraduated       = apperr.New(apperr.Client, "token_graduated", "token has graduated; curve trading is closed")
	ErrGraduationInProgress   = apperr.New(apperr.Conflict, "graduation_in_progress", "token graduation is in progress")
	ErrBelowThreshold         = apperr.New(apperr.Client, "below_graduation_threshold", "reserve is below the graduation threshold")
	ErrReserveBelowFee        = apperr.New(apperr.Client, "reserve_below_fee", "reserve does not cover the graduation fee")
	ErrNotCreator             = apperr.New(apperr.Client, "not_token_creator", "only the creator may graduate the token")
	ErrSupplyExhausted        = apperr.New(apperr.Client, "supply_exhausted", "curve account cannot cover the trade")
	ErrSellExceedsSold        = apperr.New(apperr.Client, "sell_exceeds_circulation", "sell is larger than the circulating supply")
	ErrContention             = apperr.New(apperr.Conflict, "token_contention", "token changed concurrently; retry the request")
	ErrTradeNotPending        = apperr.New(apperr.Conflict, "trade_not_pending", "trade is not pending")
	ErrPoolUnavailable        = apperr.New(apperr.TransientLedger, "pool_unavailable", "liquidity pool service is unavailable")
	ErrPoolRejected           = apperr.New(apperr.Client, "pool_rejected", "liquidity pool rejected the request")
	ErrProvisioningIncomplete = apperr.New(apperr.TransientLedger, "provisioning_incomplete", "token mint is not provisioned yet")
)
