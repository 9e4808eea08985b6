package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"solana-marketplace/internal/domain"
)

// PoolClient talks to the liquidity pool that takes over graduated tokens.
type PoolClient interface {
	// DepositQuote sizes the initial liquidity deposit for mint.
	DepositQuote(ctx context.Context, req DepositRequest) (*DepositQuote, error)
	// Swap executes a trade for a graduated token on behalf of a trader
	// whose payment has already been verified.
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}

// DepositRequest is the liquidity offered at graduation.
type DepositRequest struct {
	Mint        string `json:"token_mint"`
	QuoteMint   string `json:"quote_mint,omitempty"`
	QuoteAmount uint64 `json:"quote_amount"`
	TokenAmount uint64 `json:"token_amount"`
}

// DepositQuote is how much of the offered liquidity the pool accepts and where
// it must be sent.
type DepositQuote struct {
	PoolAddress string `json:"pool_address"`
	QuoteIn     uint64 `json:"quote_in"`
	TokenIn     uint64 `json:"token_in"`
	LPTokens    uint64 `json:"lp_tokens"`
}

// SwapRequest forwards a graduated token trade.
type SwapRequest struct {
	Mint             string           `json:"token_mint"`
	Action           domain.TradeSide `json:"action"`
	Amount           uint64           `json:"amount"`
	Trader           string           `json:"trader"`
	PaymentSignature string           `json:"payment_signature"`
}

// SwapResult is the pool's receipt for a forwarded trade.
type SwapResult struct {
	Reference string `json:"reference"`
	AmountOut uint64 `json:"amount_out"`
}

// HTTPPool is a PoolClient backed by the pool service's JSON API.
type HTTPPool struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPool creates a pool client.
func NewHTTPPool(baseURL string, timeout time.Duration) *HTTPPool {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPool{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ PoolClient = (*HTTPPool)(nil)

// DepositQuote calls POST /deposit-quote.
func (p *HTTPPool) DepositQuote(ctx context.Context, req DepositRequest) (*DepositQuote, error) {
	var out DepositQuote
	if err := p.post(ctx, "/deposit-quote", req, &out); err != nil {
		return nil, err
	}
	if out.PoolAddress == "" {
		return nil, fmt.Errorf("%w: quote has no pool address", ErrPoolRejected)
	}
	if out.QuoteIn > req.QuoteAmount || out.TokenIn > req.TokenAmount {
		return nil, fmt.Errorf("%w: quote exceeds offered liquidity", ErrPoolRejected)
	}
	return &out, nil
}

// Swap calls POST /swap.
func (p *HTTPPool) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	var out SwapResult
	if err := p.post(ctx, "/swap", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPPool) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPoolUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s status %d", ErrPoolUnavailable, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s status %d", ErrPoolRejected, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPoolUnavailable, path, err)
	}
	return nil
}
