package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/reporting"
)

// commissionReport renders the commission report as json, html or csv.
func (s *Server) commissionReport(w http.ResponseWriter, r *http.Request) {
	period, err := queryInt(r, "period", 7, 1, reporting.MaxPeriodDays)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	rep, err := s.reports.Report(r.Context(), period, reporting.GroupBy(r.URL.Query().Get("group_by")))
	if errors.Is(err, reporting.ErrInvalidQuery) {
		s.writeError(w, r, apperr.Wrap(apperr.Validation, errBadQuery.Code, err), nil)
		return
	}
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := reporting.WriteHTML(w, rep); err != nil {
			s.logger.Error("render commission report", "format", "html", "error", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="commission-report.csv"`)
		if err := reporting.WriteCSV(w, rep); err != nil {
			s.logger.Error("render commission report", "format", "csv", "error", err)
		}
	default:
		s.writeError(w, r, apperr.New(apperr.Validation, errBadQuery.Code, "format must be json, html or csv"), nil)
	}
}

func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request) {
	status := domain.SettlementStatus(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = domain.SettlementPending
	case domain.SettlementPending, domain.SettlementCompleted, domain.SettlementFailed:
	default:
		s.writeError(w, r, errBadQuery, nil)
		return
	}
	limit, err := queryInt(r, "limit", 100, 1, 1000)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	list, err := s.settlements.ListByStatus(r.Context(), status, limit)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": viewSettlements(list)})
}

func (s *Server) reconcileSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := s.settlements.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, viewSettlement(st))
		return
	}
	writeJSON(w, http.StatusOK, viewSettlement(st))
}

func (s *Server) reconcileToken(w http.ResponseWriter, r *http.Request) {
	t, err := s.market.ReconcileToken(r.Context(), chi.URLParam(r, "mint"))
	if err != nil {
		s.writeError(w, r, err, viewToken(t))
		return
	}
	writeJSON(w, http.StatusOK, viewToken(t))
}

func (s *Server) reconcileTrade(w http.ResponseWriter, r *http.Request) {
	t, err := s.market.ReconcileTrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, viewTrade(t))
		return
	}
	writeJSON(w, http.StatusOK, viewTrade(t))
}

func (s *Server) rotateWallet(w http.ResponseWriter, r *http.Request) {
	next, err := s.wallets.Rotate(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, walletView{
		ID:        next.ID,
		Owner:     next.Owner,
		Address:   next.Address,
		Active:    next.Active,
		CreatedAt: next.CreatedAt,
	})
}
