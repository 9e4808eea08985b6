package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer answers every request with result produced by fn.
func rpcServer(t *testing.T, method string, fn func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  fn(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, "getTransaction", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":          nil,
				"fee":          5000,
				"preBalances":  []uint64{10_000_000, 0, 1},
				"postBalances": []uint64{8_995_000, 1_000_000, 1},
				"preTokenBalances": []map[string]interface{}{
					{"accountIndex": 3, "mint": "MintA", "owner": "buyer", "uiTokenAmount": map[string]interface{}{"amount": "500", "decimals": 6}},
				},
				"postTokenBalances": []map[string]interface{}{
					{"accountIndex": 3, "mint": "MintA", "owner": "buyer", "uiTokenAmount": map[string]interface{}{"amount": "200", "decimals": 6}},
				},
				"logMessages":     []string{"Program log: Hello"},
				"loadedAddresses": map[string]interface{}{"writable": []string{"lutW"}, "readonly": []string{"lutR"}},
			},
			"transaction": map[string]interface{}{
				"signatures": []string{"testsig123"},
				"message": map[string]interface{}{
					"accountKeys":     []string{"buyer", "escrow", "11111111111111111111111111111111"},
					"recentBlockhash": "hash1",
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}
	if tx.Slot != 123456 || tx.BlockTime != 1700000000 {
		t.Errorf("unexpected slot/blockTime: %d/%d", tx.Slot, tx.BlockTime)
	}
	if tx.Failed() {
		t.Error("expected successful transaction")
	}
	if tx.Meta.Fee != 5000 {
		t.Errorf("expected fee 5000, got %d", tx.Meta.Fee)
	}
	if tx.Meta.PostBalances[1] != 1_000_000 {
		t.Errorf("unexpected post balance %d", tx.Meta.PostBalances[1])
	}
	if len(tx.Meta.PreTokenBalances) != 1 || tx.Meta.PreTokenBalances[0].Amount != 500 {
		t.Errorf("unexpected pre token balances: %+v", tx.Meta.PreTokenBalances)
	}
	if tx.Meta.PostTokenBalances[0].Decimals != 6 {
		t.Errorf("expected decimals 6, got %d", tx.Meta.PostTokenBalances[0].Decimals)
	}
	if got := len(tx.Message.AccountKeys); got != 5 {
		t.Fatalf("expected 5 account keys including loaded addresses, got %d", got)
	}
	if tx.Message.AccountKeys[3] != "lutW" || tx.Message.AccountKeys[4] != "lutR" {
		t.Errorf("loaded addresses out of order: %v", tx.Message.AccountKeys)
	}
	if tx.Message.RecentBlockhash != "hash1" {
		t.Errorf("unexpected blockhash %s", tx.Message.RecentBlockhash)
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := rpcServer(t, "getTransaction", func(rpcRequest) interface{} { return nil })
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetTransaction(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_GetTransaction_FailedOnChain(t *testing.T) {
	server := rpcServer(t, "getTransaction", func(rpcRequest) interface{} {
		return map[string]interface{}{
			"slot": 1,
			"meta": map[string]interface{}{
				"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
			},
		}
	})
	defer server.Close()

	tx, err := NewHTTPClient(server.URL).GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !tx.Failed() {
		t.Error("expected failed transaction")
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, "getLatestBlockhash", func(rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": map[string]interface{}{
				"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
				"lastValidBlockHeight": 3090,
			},
		}
	})
	defer server.Close()

	bh, err := NewHTTPClient(server.URL).GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Hash != "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N" || bh.LastValidBlockHeight != 3090 {
		t.Errorf("unexpected blockhash %+v", bh)
	}
}

func TestHTTPClient_SendTransaction_NoRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	_, err := client.SendTransaction(context.Background(), []byte{1, 2, 3})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("sendTransaction must not be retried by the transport, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := rpcServer(t, "sendTransaction", func(req rpcRequest) interface{} {
		encoded, _ := req.Params[0].(string)
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(raw) != 3 {
			t.Errorf("unexpected payload %q", encoded)
		}
		return "5sig"
	})
	defer server.Close()

	sig, err := NewHTTPClient(server.URL).SendTransaction(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5sig" {
		t.Errorf("expected 5sig, got %s", sig)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, "getSignatureStatuses", func(rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 99},
			"value": []interface{}{
				map[string]interface{}{"slot": 90, "confirmations": nil, "err": nil, "confirmationStatus": "finalized"},
				nil,
			},
		}
	})
	defer server.Close()

	statuses, err := NewHTTPClient(server.URL).GetSignatureStatuses(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Confirmed() {
		t.Errorf("expected first signature confirmed: %+v", statuses[0])
	}
	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown signature")
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	height, err := client.GetBlockHeight(context.Background())
	if err != nil {
		t.Fatalf("GetBlockHeight: %v", err)
	}
	if height != 999 {
		t.Errorf("expected height 999, got %d", height)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).GetBlockHeight(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", func(rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   uint64(1000000),
				"owner":      "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
				"executable": false,
				"rentEpoch":  uint64(100),
			},
		}
	})
	defer server.Close()

	info, err := NewHTTPClient(server.URL).GetAccountInfo(context.Background(), "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account info, got nil")
	}
	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}
	if info.Data != "SGVsbG8gV29ybGQ=" {
		t.Errorf("unexpected data: %s", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", func(rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	info, err := NewHTTPClient(server.URL).GetAccountInfo(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetMinimumBalanceForRentExemption(t *testing.T) {
	server := rpcServer(t, "getMinimumBalanceForRentExemption", func(req rpcRequest) interface{} {
		if size, _ := req.Params[0].(float64); size != MintAccountSize {
			t.Errorf("expected size %d, got %v", MintAccountSize, req.Params[0])
		}
		return 1461600
	})
	defer server.Close()

	lamports, err := NewHTTPClient(server.URL).GetMinimumBalanceForRentExemption(context.Background(), MintAccountSize)
	if err != nil {
		t.Fatalf("GetMinimumBalanceForRentExemption: %v", err)
	}
	if lamports != 1461600 {
		t.Errorf("expected 1461600, got %d", lamports)
	}
}

func TestHTTPClient_ServerErrorClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).SendTransaction(context.Background(), []byte{1})
	if Classify(err) != FailureNetworkTimeout {
		t.Errorf("expected network timeout class, got %v (%v)", Classify(err), err)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetBlockHeight(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestHTTPClient_RateLimitOption(t *testing.T) {
	var attempts atomic.Int32
	server := rpcServer(t, "getBlockHeight", func(rpcRequest) interface{} {
		attempts.Add(1)
		return 1
	})
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(1000, 1))
	for i := 0; i < 3; i++ {
		if _, err := client.GetBlockHeight(context.Background()); err != nil {
			t.Fatalf("GetBlockHeight: %v", err)
		}
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", attempts.Load())
	}
}
