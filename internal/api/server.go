// Package api exposes the marketplace, the bonding curve market and the
// operator endpoints over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/market"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/reporting"
	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/storage"
)

// Settlements is the marketplace settlement service.
type Settlements interface {
	Settle(ctx context.Context, req settlement.Request) (*settlement.Outcome, error)
	Get(ctx context.Context, id string) (*domain.SettlementTransaction, error)
	ListByStatus(ctx context.Context, status domain.SettlementStatus, limit int) ([]*domain.SettlementTransaction, error)
	UserTransactions(ctx context.Context, userID string, role storage.UserRole, limit int) ([]*domain.SettlementTransaction, error)
	HasPurchased(ctx context.Context, buyerID, itemID string) (bool, error)
	Stats(ctx context.Context) (*domain.MarketplaceStats, error)
	Reconcile(ctx context.Context, id string) (*domain.SettlementTransaction, error)
	CreateListing(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, itemID string) (*domain.Listing, error)
}

// Market is the bonding curve market.
type Market interface {
	Mint(ctx context.Context, req market.MintRequest) (*market.MintOutcome, error)
	Token(ctx context.Context, mint string) (*domain.Token, error)
	Tokens(ctx context.Context, status domain.TokenStatus) ([]*domain.Token, error)
	Trades(ctx context.Context, mint string, limit int) ([]*domain.CurveTrade, error)
	QuoteTrade(ctx context.Context, mint string, side domain.TradeSide, amount uint64) (*market.TradeQuote, error)
	Buy(ctx context.Context, req market.TradeRequest) (*market.TradeOutcome, error)
	Sell(ctx context.Context, req market.TradeRequest) (*market.TradeOutcome, error)
	Graduate(ctx context.Context, req market.GraduateRequest) (*domain.Token, error)
	ReconcileToken(ctx context.Context, mint string) (*domain.Token, error)
	ReconcileTrade(ctx context.Context, id string) (*domain.CurveTrade, error)
}

// Reports produces commission reports.
type Reports interface {
	Report(ctx context.Context, periodDays int, groupBy reporting.GroupBy) (*reporting.Report, error)
}

// Wallets rotates platform and agent wallets.
type Wallets interface {
	Rotate(ctx context.Context, owner string) (*domain.AgentWallet, error)
}

// Limiter throttles verification requests per client.
type Limiter interface {
	Allow(ctx context.Context, scope, client string) error
}

// Rate limit scopes.
const (
	scopePurchase = "purchase"
	scopeMint     = "mint"
	scopeTrade    = "trade"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Settlements Settlements
	Market      Market
	Reports     Reports
	Wallets     Wallets
	Limiter     Limiter
	Logger      *slog.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server holds the HTTP handlers.
type Server struct {
	settlements Settlements
	market      Market
	reports     Reports
	wallets     Wallets
	limiter     Limiter
	logger      *slog.Logger
	metrics     http.Handler

	router http.Handler
}

// New constructs the router.
func New(cfg Config) *Server {
	s := &Server{
		settlements: cfg.Settlements,
		market:      cfg.Market,
		reports:     cfg.Reports,
		wallets:     cfg.Wallets,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1/marketplace", func(m chi.Router) {
		m.Post("/listings", s.createListing)
		m.Get("/listings/{itemID}", s.getListing)
		m.Post("/purchases", s.createPurchase)
		m.Get("/purchases/{id}", s.getPurchase)
		m.Get("/users/{userID}/transactions", s.userTransactions)
		m.Get("/users/{userID}/purchases/{itemID}", s.hasPurchased)
		m.Get("/stats", s.stats)
	})

	r.Route("/v1/tokens", func(t chi.Router) {
		t.Post("/", s.mintToken)
		t.Get("/", s.listTokens)
		t.Route("/{mint}", func(tok chi.Router) {
			tok.Get("/", s.getToken)
			tok.Get("/trades", s.listTrades)
			tok.Get("/quote", s.quote)
			tok.Post("/buy", s.trade(domain.SideBuy))
			tok.Post("/sell", s.trade(domain.SideSell))
			tok.Post("/graduate", s.graduate)
		})
	})

	r.Route("/v1/admin", func(a chi.Router) {
		a.Get("/commission-report", s.commissionReport)
		a.Get("/settlements", s.listSettlements)
		a.Post("/settlements/{id}/reconcile", s.reconcileSettlement)
		a.Post("/tokens/{mint}/reconcile", s.reconcileToken)
		a.Post("/trades/{id}/reconcile", s.reconcileTrade)
		a.Post("/wallets/{owner}/rotate", s.rotateWallet)
	})

	return r
}

// logRequests logs each request and records its latency by route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.RecordHTTPRequest(route, status, elapsed.Seconds())

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

// allow applies the verification rate limit for client in scope.
func (s *Server) allow(r *http.Request, scope, client string) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Allow(r.Context(), scope, client)
}
