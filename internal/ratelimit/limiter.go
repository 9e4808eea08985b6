// Package ratelimit enforces per-client fixed-window limits on verification
// requests, with a cooling-off block once a client exceeds its window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/cache"
	"solana-marketplace/internal/observability"
)

// Defaults.
const (
	DefaultLimit  = 5
	DefaultWindow = 60 * time.Second
	DefaultBlock  = 600 * time.Second
)

// ErrRateLimited is returned for clients over their limit or inside a block.
var ErrRateLimited = apperr.New(apperr.RateLimited, "rate_limited", "too many requests")

// Config holds limiter settings.
type Config struct {
	Limit  int64
	Window time.Duration
	Block  time.Duration
}

// DefaultConfig returns 5 requests per 60 s with a 600 s block.
func DefaultConfig() Config {
	return Config{Limit: DefaultLimit, Window: DefaultWindow, Block: DefaultBlock}
}

// Limiter counts requests per (scope, client) in a cache.
type Limiter struct {
	cache  cache.Cache
	cfg    Config
	logger *slog.Logger
}

// New creates a limiter. A nil logger uses slog.Default().
func New(c cache.Cache, cfg Config, logger *slog.Logger) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Block <= 0 {
		cfg.Block = DefaultBlock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{cache: c, cfg: cfg, logger: logger}
}

// Allow records one request by client in scope and returns ErrRateLimited
// when the client is blocked or has exceeded the window.
// Cache failures let the request through.
func (l *Limiter) Allow(ctx context.Context, scope, client string) error {
	blockKey := fmt.Sprintf("rl:block:%s:%s", scope, client)
	windowKey := fmt.Sprintf("rl:count:%s:%s", scope, client)

	if _, err := l.cache.Get(ctx, blockKey); err == nil {
		observability.RecordRateLimited(scope)
		return ErrRateLimited
	} else if !errors.Is(err, cache.ErrMiss) {
		l.logger.Warn("rate limit lookup failed", "scope", scope, "error", err)
		return nil
	}

	n, err := l.cache.Incr(ctx, windowKey, l.cfg.Window)
	if err != nil {
		l.logger.Warn("rate limit increment failed", "scope", scope, "error", err)
		return nil
	}
	if n <= l.cfg.Limit {
		return nil
	}

	if err := l.cache.Set(ctx, blockKey, []byte("1"), l.cfg.Block); err != nil {
		l.logger.Warn("rate limit block failed", "scope", scope, "error", err)
	}
	l.logger.Warn("client rate limited", "scope", scope, "client", client, "count", n)
	observability.RecordRateLimited(scope)
	return ErrRateLimited
}
