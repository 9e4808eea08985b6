package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"solana-marketplace/internal/api"
	"solana-marketplace/internal/cache"
	"solana-marketplace/internal/config"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/market"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/pricing"
	"solana-marketplace/internal/ratelimit"
	"solana-marketplace/internal/reporting"
	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
	chstore "solana-marketplace/internal/storage/clickhouse"
	"solana-marketplace/internal/storage/memory"
	"solana-marketplace/internal/storage/migrations"
	pgstore "solana-marketplace/internal/storage/postgres"
	"solana-marketplace/internal/verification"
	"solana-marketplace/internal/wallet"
)

// allStores holds all storage implementations.
type allStores struct {
	records     storage.TxRecordStore
	tokens      storage.TokenStore
	trades      storage.TradeStore
	listings    storage.ListingStore
	settlements storage.SettlementStore
	wallets     storage.WalletStore
	applier     storage.Applier
	mirror      storage.SettlementMirror // nil without ClickHouse
	reportSrc   storage.SettlementSource
}

// app is the wired service.
type app struct {
	api         *api.Server
	dispatcher  *notify.Dispatcher
	outbox      *notify.Outbox
	settlements *settlement.Distributor
	market      *market.Market
	reports     *reporting.Generator
	logger      *slog.Logger
	batch       int
	recipient   string

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, batch: cfg.Schedule.ReconcileBatch, recipient: cfg.Notify.SummaryRecipient}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	stores, err := a.createStores(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	shared, err := a.createCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	rpcOpts := []solana.ClientOption{solana.WithTimeout(cfg.Solana.RPCTimeout.Duration)}
	if cfg.Solana.RPCRate > 0 {
		rpcOpts = append(rpcOpts, solana.WithRateLimit(cfg.Solana.RPCRate, cfg.Solana.RPCBurst))
	}
	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint, rpcOpts...)

	masterKey, err := wallet.ParseMasterKey(cfg.Wallets.MasterKey)
	if err != nil {
		return nil, err
	}
	keys, err := wallet.NewKeystore(stores.wallets, masterKey, wallet.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	escrow, err := keys.Ensure(ctx, cfg.Wallets.EscrowOwner)
	if err != nil {
		return nil, fmt.Errorf("escrow wallet: %w", err)
	}
	reserve, err := keys.Ensure(ctx, cfg.Wallets.ReserveOwner)
	if err != nil {
		return nil, fmt.Errorf("curve reserve wallet: %w", err)
	}
	logger.Info("platform wallets ready", "escrow", escrow.Address, "curve_reserve", reserve.Address)

	verifier := verification.New(rpc, stores.records,
		verification.WithFetchTimeout(cfg.Verification.FetchTimeout.Duration),
		verification.WithStaleAfter(cfg.Verification.StaleAfter.Duration),
		verification.WithLogger(logger),
	)

	exOpts := []executor.Option{executor.WithConfig(cfg.ExecutorSettings()), executor.WithLogger(logger)}
	if cfg.Solana.WSEndpoint != "" {
		wsCfg := solana.DefaultWSConfig()
		ws, err := solana.NewWSClient(ctx, cfg.Solana.WSEndpoint, &wsCfg)
		if err != nil {
			// Polling still confirms transfers.
			logger.Warn("websocket unavailable, confirming by polling", "error", err)
		} else {
			a.closers = append(a.closers, func() { ws.Close() })
			exOpts = append(exOpts, executor.WithWebSocket(ws))
		}
	}
	exec := executor.New(rpc, keys, exOpts...)

	if err := a.createNotifier(cfg.Notify); err != nil {
		return nil, err
	}

	a.settlements = settlement.NewDistributor(verifier, exec, rpc,
		settlement.Stores{
			Listings:    stores.listings,
			Settlements: stores.settlements,
			Applier:     stores.applier,
			Mirror:      stores.mirror,
		},
		a.outbox,
		settlement.Config{
			EscrowWallet:      escrow.Address,
			PlatformWallet:    cfg.Wallets.PlatformAddress,
			CommissionBps:     cfg.Marketplace.CommissionBps,
			OperatorRecipient: cfg.Marketplace.OperatorRecipient,
			PayoutExpiry:      cfg.Marketplace.PayoutExpiry.Duration,
		},
		settlement.WithLogger(logger),
	)

	a.market, err = market.New(
		market.Deps{
			Ledger:   cfg.LedgerSettings(),
			Verifier: verifier,
			Executor: exec,
			Keys:     keys,
			Pool:     market.NewHTTPPool(cfg.Pool.BaseURL, cfg.Pool.Timeout.Duration),
			RPC:      rpc,
			Stores:   market.Stores{Tokens: stores.tokens, Trades: stores.trades, Applier: stores.applier},
		},
		market.Config{
			ReserveWallet:       reserve.Address,
			TreasuryWallet:      cfg.Wallets.TreasuryAddress,
			QuoteMint:           cfg.Curve.QuoteMint,
			QuoteUnit:           cfg.Curve.QuoteUnit,
			MinBuyIn:            cfg.Curve.MinBuyIn,
			Decimals:            cfg.Curve.Decimals,
			Supply:              cfg.Curve.Supply,
			GraduationThreshold: cfg.Curve.GraduationThreshold,
			GraduationFee:       cfg.Curve.GraduationFee,
			CASRetries:          cfg.Curve.CASRetries,
			DeliveryExpiry:      cfg.Curve.DeliveryExpiry.Duration,
			OperatorRecipient:   cfg.Marketplace.OperatorRecipient,
		},
		market.WithLogger(logger),
		market.WithNotifier(a.outbox),
	)
	if err != nil {
		return nil, fmt.Errorf("create market: %w", err)
	}

	fallback, err := cfg.FallbackPrice()
	if err != nil {
		return nil, err
	}
	prices := pricing.NewService(pricing.NewCoinGecko(cfg.Pricing.BaseURL, cfg.Pricing.Timeout.Duration), shared, cfg.Pricing.TTL.Duration, logger).
		WithFallback(fallback)
	a.reports = reporting.NewGenerator(stores.reportSrc, prices)

	a.api = api.New(api.Config{
		Settlements: a.settlements,
		Market:      a.market,
		Reports:     a.reports,
		Wallets:     keys,
		Limiter:     ratelimit.New(shared, cfg.RateLimitSettings(), logger),
		Logger:      logger,
		Metrics:     observability.Handler(),
	})

	ok = true
	return a, nil
}

// createStores opens the configured backend and applies migrations.
func (a *app) createStores(ctx context.Context, cfg config.StorageConfig) (*allStores, error) {
	var s allStores

	if cfg.Backend == "memory" {
		a.logger.Warn("using in-memory storage; state is lost on restart")
		db := memory.NewDB()
		settlements := memory.NewSettlementStore(db)
		s = allStores{
			records:     memory.NewTxRecordStore(db),
			tokens:      memory.NewTokenStore(db),
			trades:      memory.NewTradeStore(db),
			listings:    memory.NewListingStore(db),
			settlements: settlements,
			wallets:     memory.NewWalletStore(db),
			applier:     memory.NewApplier(db),
			reportSrc:   settlements,
		}
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN,
			pgstore.WithMaxConns(cfg.MaxConns), pgstore.WithConnectTimeout(cfg.ConnectTimeout.Duration))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, err
		}
		settlements := pgstore.NewSettlementStore(pool)
		s = allStores{
			records:     pgstore.NewTxRecordStore(pool),
			tokens:      pgstore.NewTokenStore(pool),
			trades:      pgstore.NewTradeStore(pool),
			listings:    pgstore.NewListingStore(pool),
			settlements: settlements,
			wallets:     pgstore.NewWalletStore(pool),
			applier:     pgstore.NewApplier(pool),
			reportSrc:   settlements,
		}
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { conn.Close() })
		ch := chstore.NewSettlementStore(conn)
		s.mirror = ch
		s.reportSrc = ch
	}
	return &s, nil
}

func (a *app) createCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.Backend != "redis" {
		return cache.NewMemory(nil), nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { r.Close() })
	return r, nil
}

// createNotifier opens the spool and builds the outbox and its dispatcher.
func (a *app) createNotifier(cfg config.NotifyConfig) error {
	if err := os.MkdirAll(filepath.Dir(cfg.SpoolPath), 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	spool, err := notify.OpenSpool(cfg.SpoolPath)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { spool.Close() })

	sink := notify.MultiSink{notify.NewLogSink(a.logger)}
	if cfg.WebhookURL != "" {
		sink = append(sink, notify.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout.Duration))
	}
	a.outbox = notify.NewOutbox(spool, a.logger)
	a.dispatcher = notify.NewDispatcher(spool, sink, a.outbox.Wake(), notify.DispatcherConfig{
		MaxAttempts:  cfg.MaxAttempts,
		PollInterval: cfg.PollInterval.Duration,
	}, a.logger)
	return nil
}
