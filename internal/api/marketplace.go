package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/storage"
)

type listingRequest struct {
	ItemID       string          `json:"item_id"`
	ItemType     domain.ItemType `json:"item_type"`
	Name         string          `json:"name"`
	SellerID     string          `json:"seller_id"`
	SellerWallet string          `json:"seller_wallet"`
	Price        uint64          `json:"price"`
	IsFree       bool            `json:"is_free"`
}

func (r *listingRequest) validate() error {
	if r.ItemID == "" || r.Name == "" || r.SellerID == "" || r.SellerWallet == "" {
		return errBadRequest
	}
	return nil
}

type purchaseRequest struct {
	PaymentSignature string `json:"payment_signature"`
	BuyerID          string `json:"buyer_id"`
	BuyerWallet      string `json:"buyer_wallet"`
	ItemID           string `json:"item_id"`
}

func (r *purchaseRequest) validate() error {
	if r.PaymentSignature == "" || r.BuyerID == "" || r.BuyerWallet == "" || r.ItemID == "" {
		return errBadRequest
	}
	return nil
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	l := &domain.Listing{
		ItemID:       req.ItemID,
		ItemType:     req.ItemType,
		Name:         req.Name,
		SellerID:     req.SellerID,
		SellerWallet: req.SellerWallet,
		Price:        req.Price,
		IsFree:       req.IsFree,
	}
	if err := s.settlements.CreateListing(r.Context(), l); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, viewListing(l))
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.settlements.GetListing(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewListing(l))
}

// createPurchase settles a purchase paid by the buyer. A submitted but
// unconfirmed payout answers 202; replays answer 200.
func (s *Server) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if err := s.allow(r, scopePurchase, req.BuyerWallet); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	out, err := s.settlements.Settle(r.Context(), settlement.Request{
		PaymentSignature: req.PaymentSignature,
		BuyerID:          req.BuyerID,
		BuyerWallet:      req.BuyerWallet,
		ItemID:           req.ItemID,
	})
	if err != nil {
		var rec any
		if out != nil {
			rec = viewSettlement(out.Settlement)
		}
		s.writeError(w, r, err, rec)
		return
	}
	writeJSON(w, outcomeStatus(out.Replay, out.Settlement.Status == domain.SettlementPending), viewSettlement(out.Settlement))
}

func (s *Server) getPurchase(w http.ResponseWriter, r *http.Request) {
	st, err := s.settlements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewSettlement(st))
}

func (s *Server) userTransactions(w http.ResponseWriter, r *http.Request) {
	role := storage.UserRole(strings.ToLower(r.URL.Query().Get("role")))
	switch role {
	case "":
		role = storage.RoleAny
	case storage.RoleBuyer, storage.RoleSeller, storage.RoleAny:
	default:
		s.writeError(w, r, errBadQuery, nil)
		return
	}
	limit, err := queryInt(r, "limit", 50, 1, 500)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	list, err := s.settlements.UserTransactions(r.Context(), chi.URLParam(r, "userID"), role, limit)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": viewSettlements(list)})
}

func (s *Server) hasPurchased(w http.ResponseWriter, r *http.Request) {
	owned, err := s.settlements.HasPurchased(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"purchased": owned})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.settlements.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, statsView(*st))
}

func outcomeStatus(replay, pending bool) int {
	switch {
	case replay:
		return http.StatusOK
	case pending:
		return http.StatusAccepted
	default:
		return http.StatusCreated
	}
}
