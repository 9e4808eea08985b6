package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-marketplace/internal/cache"
)

type scriptedSource struct {
	prices []decimal.Decimal
	errs   []error
	calls  int
}

func (s *scriptedSource) FetchUSD(context.Context, string) (decimal.Decimal, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return decimal.Zero, s.errs[i]
	}
	if i < len(s.prices) {
		return s.prices[i], nil
	}
	return decimal.Zero, errors.New("exhausted")
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestService_CachesForTTL(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &scriptedSource{prices: []decimal.Decimal{decimal.NewFromInt(150), decimal.NewFromInt(160)}}
	s := NewService(src, cache.NewMemory(clk.now), 30*time.Second, nil)
	ctx := context.Background()

	p := s.GetQuotePrice(ctx, NativeAsset)
	if p.Origin != OriginLive || !p.USD.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected live 150, got %+v", p)
	}

	clk.t = clk.t.Add(29 * time.Second)
	p = s.GetQuotePrice(ctx, NativeAsset)
	if p.Origin != OriginCache || src.calls != 1 {
		t.Fatalf("expected cached value without fetch, got %+v after %d calls", p, src.calls)
	}

	clk.t = clk.t.Add(time.Second)
	p = s.GetQuotePrice(ctx, NativeAsset)
	if p.Origin != OriginLive || !p.USD.Equal(decimal.NewFromInt(160)) {
		t.Fatalf("expected refreshed 160, got %+v", p)
	}
}

func TestService_StaleThenFallback(t *testing.T) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &scriptedSource{
		prices: []decimal.Decimal{decimal.NewFromInt(150)},
		errs:   []error{nil, errors.New("503")},
	}
	s := NewService(src, cache.NewMemory(clk.now), 30*time.Second, nil)
	ctx := context.Background()

	s.GetQuotePrice(ctx, NativeAsset)
	clk.t = clk.t.Add(time.Minute)

	p := s.GetQuotePrice(ctx, NativeAsset)
	if p.Origin != OriginStale || !p.USD.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected stale 150, got %+v", p)
	}

	fresh := NewService(&scriptedSource{errs: []error{errors.New("down")}}, cache.NewMemory(clk.now), 0, nil)
	p = fresh.GetQuotePrice(ctx, NativeAsset)
	if p.Origin != OriginFallback || !p.USD.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected fallback 100, got %+v", p)
	}
}

func TestCoinGecko_FetchUSD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ids") != "solana" || r.URL.Query().Get("vs_currencies") != "usd" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"solana":{"usd":142.37}}`))
	}))
	defer server.Close()

	p, err := NewCoinGecko(server.URL, time.Second).FetchUSD(context.Background(), "solana")
	if err != nil {
		t.Fatalf("FetchUSD: %v", err)
	}
	if !p.Equal(decimal.RequireFromString("142.37")) {
		t.Fatalf("expected 142.37, got %s", p)
	}
}

func TestCoinGecko_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusTooManyRequests, `{}`},
		{"missing asset", http.StatusOK, `{"bitcoin":{"usd":1}}`},
		{"zero price", http.StatusOK, `{"solana":{"usd":0}}`},
		{"malformed", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := NewCoinGecko(server.URL, time.Second).FetchUSD(context.Background(), "solana"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.00001234", "0.00001234"},
		{"0.001234567", "0.001235"},
		{"1.5", "1.5000"},
		{"0", "0.0000"},
	}
	for _, tt := range tests {
		if got := FormatAmount(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatAmount(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLamportsToUSD(t *testing.T) {
	got := LamportsToUSD(2_500_000_000, decimal.NewFromInt(100))
	if !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %s", got)
	}
}
