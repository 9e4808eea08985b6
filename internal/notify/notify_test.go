package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"solana-marketplace/internal/domain"
)

func openTestSpool(t *testing.T) *Spool {
	t.Helper()
	s, err := OpenSpool(filepath.Join(t.TempDir(), "outbox", "spool.db"))
	if err != nil {
		t.Fatalf("OpenSpool: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type flakySink struct {
	failures int
	calls    int
	got      []*domain.Notification
}

func (f *flakySink) Deliver(_ context.Context, n *domain.Notification) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("sink down")
	}
	f.got = append(f.got, n)
	return nil
}

func TestOutbox_EnqueueDedup(t *testing.T) {
	spool := openTestSpool(t)
	o := NewOutbox(spool, nil)
	ctx := context.Background()

	o.Enqueue(ctx, domain.NotifyBuyerReceipt, "s-1", "buyer", map[string]string{"item": "a"})
	o.Enqueue(ctx, domain.NotifyBuyerReceipt, "s-1", "buyer", map[string]string{"item": "a"})
	o.Enqueue(ctx, domain.NotifySellerPayout, "s-1", "seller", map[string]string{"item": "a"})

	pending, err := spool.Pending(0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending after dedup, got %d", len(pending))
	}
	if pending[0].Notification.Kind != domain.NotifyBuyerReceipt {
		t.Fatalf("expected enqueue order, got %s first", pending[0].Notification.Kind)
	}

	select {
	case <-o.Wake():
	default:
		t.Fatal("expected wake signal")
	}
}

func TestOutbox_UnencodablePayloadDoesNotPanic(t *testing.T) {
	spool := openTestSpool(t)
	o := NewOutbox(spool, nil)

	o.Enqueue(context.Background(), domain.NotifyBuyerReceipt, "s-1", "buyer", make(chan int))

	pending, _ := spool.Pending(0)
	if len(pending) != 0 {
		t.Fatalf("expected nothing spooled, got %d", len(pending))
	}
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	spool := openTestSpool(t)
	o := NewOutbox(spool, nil)
	sink := &flakySink{failures: 1}
	d := NewDispatcher(spool, sink, nil, DispatcherConfig{MaxAttempts: 3}, nil)
	ctx := context.Background()

	o.Enqueue(ctx, domain.NotifyPlatformCommission, "s-1", "platform", map[string]int{"fee": 10})

	n, err := d.DispatchOnce(ctx)
	if err != nil || n != 0 {
		t.Fatalf("first pass: delivered=%d err=%v", n, err)
	}
	pending, _ := spool.Pending(0)
	if len(pending) != 1 || pending[0].Notification.Attempts != 1 || pending[0].Notification.LastError == "" {
		t.Fatalf("expected one retained attempt, got %+v", pending)
	}

	n, err = d.DispatchOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("second pass: delivered=%d err=%v", n, err)
	}
	pending, _ = spool.Pending(0)
	if len(pending) != 0 {
		t.Fatalf("expected empty queue, got %d", len(pending))
	}

	// Delivered ids are never spooled again.
	o.Enqueue(ctx, domain.NotifyPlatformCommission, "s-1", "platform", map[string]int{"fee": 10})
	pending, _ = spool.Pending(0)
	if len(pending) != 0 {
		t.Fatalf("delivered notification re-spooled")
	}
}

func TestDispatcher_DeadAfterMaxAttempts(t *testing.T) {
	spool := openTestSpool(t)
	o := NewOutbox(spool, nil)
	d := NewDispatcher(spool, &flakySink{failures: 100}, nil, DispatcherConfig{MaxAttempts: 2}, nil)
	ctx := context.Background()

	o.Enqueue(ctx, domain.NotifySettlementFailed, "s-9", "ops", map[string]string{})
	d.DispatchOnce(ctx)
	d.DispatchOnce(ctx)

	pending, _ := spool.Pending(0)
	dead, _ := spool.Dead(0)
	if len(pending) != 0 || len(dead) != 1 {
		t.Fatalf("expected dead-lettered, pending=%d dead=%d", len(pending), len(dead))
	}
	if dead[0].Notification.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", dead[0].Notification.Attempts)
	}
}

func TestWebhookSink(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Idempotency-Key") != "n-1" {
			t.Errorf("missing idempotency key")
		}
		var body webhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Kind != string(domain.NotifySellerPayout) {
			t.Errorf("unexpected kind %s", body.Kind)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, 0)
	n := &domain.Notification{ID: "n-1", Kind: domain.NotifySellerPayout, Payload: json.RawMessage(`{"net":90}`)}
	if err := sink.Deliver(context.Background(), n); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one hit, got %d", hits.Load())
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	if err := NewWebhookSink(failing.URL, 0).Deliver(context.Background(), n); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestMultiSink_ReturnsFirstError(t *testing.T) {
	ok := &flakySink{}
	bad := &flakySink{failures: 1}
	err := MultiSink{bad, ok}.Deliver(context.Background(), &domain.Notification{ID: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(ok.got) != 1 {
		t.Fatal("later sinks must still receive the message")
	}
}
