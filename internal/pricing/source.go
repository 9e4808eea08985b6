package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCoinGeckoURL is the public CoinGecko API base.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// Source fetches a live USD price for an asset id.
type Source interface {
	FetchUSD(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// CoinGecko fetches prices from the /simple/price endpoint.
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGecko creates a source. An empty baseURL uses DefaultCoinGeckoURL.
func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CoinGecko{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// FetchUSD returns the USD price of assetID.
func (c *CoinGecko) FetchUSD(ctx context.Context, assetID string) (decimal.Decimal, error) {
	q := url.Values{"ids": {assetID}, "vs_currencies": {"usd"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fetch price: status %d", resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode price: %w", err)
	}
	price, ok := body[assetID]["usd"]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid price data for %s", assetID)
	}
	return price, nil
}
