package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/market"
)

type mintRequest struct {
	PaymentSignature string `json:"payment_signature"`
	CreatorID        string `json:"creator_id"`
	CreatorWallet    string `json:"creator_wallet"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
}

func (r *mintRequest) validate() error {
	if r.PaymentSignature == "" || r.CreatorID == "" || r.CreatorWallet == "" || r.Name == "" || r.Symbol == "" {
		return errBadRequest
	}
	return nil
}

// tradeRequest is a buy (amount in quote base units) or a sell (amount in
// whole tokens; the payment moves amount scaled by the token's decimals).
type tradeRequest struct {
	PaymentSignature string `json:"payment_signature"`
	Trader           string `json:"trader"`
	Amount           uint64 `json:"amount"`
}

func (r *tradeRequest) validate() error {
	if r.PaymentSignature == "" || r.Trader == "" || r.Amount == 0 {
		return errBadRequest
	}
	return nil
}

type graduateRequest struct {
	RequesterID string `json:"requester_id"`
}

func (r *graduateRequest) validate() error {
	if r.RequesterID == "" {
		return errBadRequest
	}
	return nil
}

func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	if err := s.allow(r, scopeMint, req.CreatorWallet); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	out, err := s.market.Mint(r.Context(), market.MintRequest{
		PaymentSignature: req.PaymentSignature,
		CreatorID:        req.CreatorID,
		CreatorWallet:    req.CreatorWallet,
		Name:             req.Name,
		Symbol:           req.Symbol,
	})
	if err != nil {
		var rec any
		if out != nil {
			rec = viewToken(out.Token)
		}
		s.writeError(w, r, err, rec)
		return
	}
	writeJSON(w, outcomeStatus(out.Replay, out.Token.Status == domain.TokenStatusCreated), viewToken(out.Token))
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	status := domain.TokenStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.TokenStatusCreated, domain.TokenStatusTrading, domain.TokenStatusGraduating, domain.TokenStatusGraduated:
	default:
		s.writeError(w, r, errBadQuery, nil)
		return
	}
	list, err := s.market.Tokens(r.Context(), status)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	out := make([]*tokenView, len(list))
	for i, t := range list {
		out[i] = viewToken(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	t, err := s.market.Token(r.Context(), chi.URLParam(r, "mint"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewToken(t))
}

func (s *Server) listTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50, 1, 500)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	list, err := s.market.Trades(r.Context(), chi.URLParam(r, "mint"), limit)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	out := make([]*tradeView, len(list))
	for i, t := range list {
		out[i] = viewTrade(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	side := domain.TradeSide(r.URL.Query().Get("side"))
	if side != domain.SideBuy && side != domain.SideSell {
		s.writeError(w, r, apperr.New(apperr.Validation, errBadQuery.Code, "side must be buy or sell"), nil)
		return
	}
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount == 0 {
		s.writeError(w, r, apperr.New(apperr.Validation, errBadQuery.Code, "amount must be a positive integer"), nil)
		return
	}

	q, err := s.market.QuoteTrade(r.Context(), chi.URLParam(r, "mint"), side, amount)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) trade(side domain.TradeSide) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradeRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, r, err, nil)
			return
		}
		if err := s.allow(r, scopeTrade, req.Trader); err != nil {
			s.writeError(w, r, err, nil)
			return
		}

		mreq := market.TradeRequest{
			Mint:             chi.URLParam(r, "mint"),
			PaymentSignature: req.PaymentSignature,
			Trader:           req.Trader,
			Amount:           req.Amount,
		}
		var (
			out *market.TradeOutcome
			err error
		)
		if side == domain.SideBuy {
			out, err = s.market.Buy(r.Context(), mreq)
		} else {
			out, err = s.market.Sell(r.Context(), mreq)
		}
		if err != nil {
			var rec any
			if out != nil {
				rec = viewTrade(out.Trade)
			}
			s.writeError(w, r, err, rec)
			return
		}
		writeJSON(w, outcomeStatus(out.Replay, out.Trade.Status == domain.TradePending), viewTrade(out.Trade))
	}
}

func (s *Server) graduate(w http.ResponseWriter, r *http.Request) {
	var req graduateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	t, err := s.market.Graduate(r.Context(), market.GraduateRequest{
		Mint:        chi.URLParam(r, "mint"),
		RequesterID: req.RequesterID,
	})
	if err != nil {
		var rec any
		if t != nil {
			rec = viewToken(t)
		}
		s.writeError(w, r, err, rec)
		return
	}
	status := http.StatusOK
	if t.Status == domain.TokenStatusGraduating {
		status = http.StatusAccepted
	}
	writeJSON(w, status, viewToken(t))
}
