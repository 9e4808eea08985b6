package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-marketplace/internal/cache"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLimiter_BlocksAfterLimit(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cache.NewMemory(clk.now), DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.Allow(ctx, "purchase", "wallet-a"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "purchase", "wallet-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 6th request, got %v", err)
	}

	// Other clients and scopes are independent.
	if err := l.Allow(ctx, "purchase", "wallet-b"); err != nil {
		t.Fatalf("other client: %v", err)
	}
	if err := l.Allow(ctx, "trade", "wallet-a"); err != nil {
		t.Fatalf("other scope: %v", err)
	}

	// The block outlasts the window.
	clk.t = clk.t.Add(2 * time.Minute)
	if err := l.Allow(ctx, "purchase", "wallet-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected block to persist, got %v", err)
	}

	clk.t = clk.t.Add(10 * time.Minute)
	if err := l.Allow(ctx, "purchase", "wallet-a"); err != nil {
		t.Fatalf("expected block lifted, got %v", err)
	}
}

func TestLimiter_WindowResets(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cache.NewMemory(clk.now), Config{Limit: 2, Window: time.Minute, Block: time.Hour}, nil)
	ctx := context.Background()

	l.Allow(ctx, "s", "c")
	l.Allow(ctx, "s", "c")
	clk.t = clk.t.Add(time.Minute)

	if err := l.Allow(ctx, "s", "c"); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

type brokenCache struct{ cache.Cache }

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestLimiter_FailsOpen(t *testing.T) {
	l := New(brokenCache{cache.NewMemory(nil)}, Config{Limit: 1}, nil)
	for i := 0; i < 3; i++ {
		if err := l.Allow(context.Background(), "s", "c"); err != nil {
			t.Fatalf("expected fail-open, got %v", err)
		}
	}
}
