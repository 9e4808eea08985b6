package settlement

import "solana-marketplace/internal/apperr"

// Settlement errors.
var (
	ErrInvalidRequest     = apperr.New(apperr.Validation, "invalid_purchase_request", "payment signature, buyer and item are required")
	ErrListingNotFound    = apperr.New(apperr.NotFound, "listing_not_found", "listing does not exist")
	ErrFreeItem           = apperr.New(apperr.Client, "item_is_free", "free items are not settled")
	ErrSelfPurchase       = apperr.New(apperr.Client, "self_purchase", "buyer wallet is the seller wallet")
	ErrAlreadyPurchased   = apperr.New(apperr.Conflict, "already_purchased", "buyer already owns this item")
	ErrSettlementNotFound = apperr.New(apperr.NotFound, "settlement_not_found", "settlement does not exist")
	ErrNotPending         = apperr.New(apperr.Conflict, "settlement_not_pending", "settlement is not pending")
	ErrInvalidListing     = apperr.New(apperr.Validation, "invalid_listing", "listing requires id, known type, name, seller and wallet")
	ErrListingExists      = apperr.New(apperr.Conflict, "listing_exists", "listing already exists")
)
