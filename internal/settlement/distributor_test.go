package settlement

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/executor"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/solana/stub"
	"solana-marketplace/internal/storage"
	"solana-marketplace/internal/storage/memory"
	"solana-marketplace/internal/verification"
	"solana-marketplace/internal/wallet"
)

const price = 100_000_000_000 // 100 SOL

type mirrorRecorder struct {
	mu   sync.Mutex
	rows []*domain.SettlementTransaction
}

func (m *mirrorRecorder) Record(_ context.Context, s *domain.SettlementTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows = append(m.rows, &cp)
	return nil
}

type fixture struct {
	ctx      context.Context
	ledger   *stub.Ledger
	db       *memory.DB
	notes    *notify.Recorder
	mirror   *mirrorRecorder
	now      time.Time
	escrow   string
	platform string
	seller   string
	buyer    string
	stores   Stores
	verifier *verification.Verifier
	executor *executor.Executor
	dist     *Distributor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		ledger: stub.NewLedger(),
		db:     memory.NewDB(),
		notes:  &notify.Recorder{},
		mirror: &mirrorRecorder{},
		now:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	ks, err := wallet.NewKeystore(memory.NewWalletStore(f.db), bytes.Repeat([]byte{1}, wallet.MasterKeyLen), wallet.WithClock(clock))
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	for owner, dst := range map[string]*string{
		"platform:escrow":   &f.escrow,
		"platform:treasury": &f.platform,
		"seller-1":          &f.seller,
		"buyer-1":           &f.buyer,
	} {
		w, err := ks.Create(f.ctx, owner)
		if err != nil {
			t.Fatalf("Create %s: %v", owner, err)
		}
		*dst = w.Address
	}

	f.stores = Stores{
		Listings:    memory.NewListingStore(f.db),
		Settlements: memory.NewSettlementStore(f.db),
		Applier:     memory.NewApplier(f.db),
		Mirror:      f.mirror,
	}
	f.verifier = verification.New(f.ledger, memory.NewTxRecordStore(f.db), verification.WithClock(clock))
	f.executor = executor.New(f.ledger, ks,
		executor.WithConfig(executor.Config{PollInterval: time.Millisecond}),
		executor.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	f.dist = f.newDistributor(f.executor)

	if err := f.dist.CreateListing(f.ctx, &domain.Listing{
		ItemID:       "agent-1",
		ItemType:     domain.ItemAgent,
		Name:         "Research agent",
		SellerID:     "seller-1",
		SellerWallet: f.seller,
		Price:        price,
	}); err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	return f
}

func (f *fixture) newDistributor(ex Executor) *Distributor {
	return NewDistributor(f.verifier, ex, f.ledger, f.stores, f.notes, Config{
		EscrowWallet:      f.escrow,
		PlatformWallet:    f.platform,
		OperatorRecipient: "ops",
		PayoutExpiry:      5 * time.Minute,
	}, WithClock(func() time.Time { return f.now }))
}

// pay seeds a buyer payment into escrow and returns its signature.
func (f *fixture) pay(seed string, amount uint64) string {
	sig := stub.Signature(seed)
	f.ledger.AddTransfer(stub.Transfer{Signature: sig, From: f.buyer, To: f.escrow, Amount: amount})
	return sig
}

func (f *fixture) request(sig string) Request {
	return Request{PaymentSignature: sig, BuyerID: "buyer-1", BuyerWallet: f.buyer, ItemID: "agent-1"}
}

func TestSettle_CompletesWithSingleBundledPayout(t *testing.T) {
	f := newFixture(t)
	sig := f.pay("pay-1", price)

	out, err := f.dist.Settle(f.ctx, f.request(sig))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	s := out.Settlement
	if s.Status != domain.SettlementCompleted || out.Replay {
		t.Fatalf("expected fresh completed settlement, got %s replay=%v", s.Status, out.Replay)
	}
	if s.PlatformFee != 10_000_000_000 || s.SellerNet != 90_000_000_000 {
		t.Fatalf("expected 10/90 split, got fee=%d net=%d", s.PlatformFee, s.SellerNet)
	}
	if f.ledger.SendCalls != 1 || s.PayoutSignature != f.ledger.Sent[0] {
		t.Fatalf("expected exactly one payout transaction, sends=%d sig=%s", f.ledger.SendCalls, s.PayoutSignature)
	}
	if s.CompletedAt == nil {
		t.Fatal("completed settlement must have CompletedAt")
	}

	kinds := f.notes.Kinds()
	want := []domain.NotificationKind{domain.NotifyBuyerReceipt, domain.NotifySellerPayout, domain.NotifyPlatformCommission}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
	if len(f.mirror.rows) != 1 || f.mirror.rows[0].ID != s.ID {
		t.Fatalf("expected settlement mirrored, got %d rows", len(f.mirror.rows))
	}

	owned, _ := f.dist.HasPurchased(f.ctx, "buyer-1", "agent-1")
	if !owned {
		t.Fatal("buyer should own the item")
	}

	rec, err := memory.NewTxRecordStore(f.db).GetBySignature(f.ctx, sig)
	if err != nil {
		t.Fatalf("GetBySignature: %v", err)
	}
	if rec.Status != domain.TxStatusApplied || rec.ResultRef != s.ID {
		t.Fatalf("expected record applied to %s, got %s -> %s", s.ID, rec.Status, rec.ResultRef)
	}
}

func TestSettle_ReplayReturnsStoredSettlement(t *testing.T) {
	f := newFixture(t)
	sig := f.pay("pay-1", price)

	first, err := f.dist.Settle(f.ctx, f.request(sig))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	second, err := f.dist.Settle(f.ctx, f.request(sig))
	if err != nil {
		t.Fatalf("replay Settle: %v", err)
	}
	if !second.Replay || second.Settlement.ID != first.Settlement.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Settlement.ID, second)
	}
	if f.ledger.SendCalls != 1 {
		t.Fatalf("replay must not pay out again, sends=%d", f.ledger.SendCalls)
	}
	if len(f.notes.Kinds()) != 3 {
		t.Fatalf("replay must not notify again, got %v", f.notes.Kinds())
	}
}

func TestSettle_ReplayForAnotherPurchaseIsRejected(t *testing.T) {
	f := newFixture(t)
	sig := f.pay("pay-1", price)
	if _, err := f.dist.Settle(f.ctx, f.request(sig)); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	otherBuyer := f.request(sig)
	otherBuyer.BuyerID = "buyer-2"
	otherItem := f.request(sig)
	otherItem.ItemID = "agent-2"
	for name, req := range map[string]Request{"buyer": otherBuyer, "item": otherItem} {
		out, err := f.dist.Settle(f.ctx, req)
		if !errors.Is(err, verification.ErrSignatureReused) {
			t.Fatalf("%s: expected ErrSignatureReused, got %v", name, err)
		}
		if out != nil {
			t.Fatalf("%s: stored settlement must not be returned, got %+v", name, out.Settlement)
		}
	}
	if f.ledger.SendCalls != 1 {
		t.Fatalf("expected a single payout, sends=%d", f.ledger.SendCalls)
	}
}

func TestSettle_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	sig := f.pay("short", price-1)

	_, err := f.dist.Settle(f.ctx, f.request(sig))
	if !errors.Is(err, verification.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	stats, _ := f.dist.Stats(f.ctx)
	if stats.TotalSales != 0 {
		t.Fatalf("no settlement may exist, got %d", stats.TotalSales)
	}
	if f.ledger.SendCalls != 0 {
		t.Fatalf("no payout expected, sends=%d", f.ledger.SendCalls)
	}
}

func TestSettle_PayoutFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.ledger.Script = []stub.SendResult{{Outcome: stub.OutcomeLandFailed}}
	sig := f.pay("pay-1", price)

	out, err := f.dist.Settle(f.ctx, f.request(sig))
	if !errors.Is(err, executor.ErrInstructionFailed) {
		t.Fatalf("expected ErrInstructionFailed, got %v", err)
	}
	if out == nil || out.Settlement.Status != domain.SettlementFailed || out.Settlement.FailureReason == "" {
		t.Fatalf("expected failed settlement with reason, got %+v", out)
	}

	stored, _ := f.dist.Get(f.ctx, out.Settlement.ID)
	if stored.Status != domain.SettlementFailed {
		t.Fatalf("expected stored status failed, got %s", stored.Status)
	}
	kinds := f.notes.Kinds()
	if len(kinds) != 1 || kinds[0] != domain.NotifySettlementFailed {
		t.Fatalf("expected operator alert only, got %v", kinds)
	}
	if len(f.mirror.rows) != 0 {
		t.Fatal("failed settlements are not mirrored")
	}
}

// pendingExecutor reports a submitted but unconfirmed payout.
type pendingExecutor struct{ sig string }

func (p pendingExecutor) Execute(context.Context, []executor.Transfer, string) (*executor.Result, error) {
	return &executor.Result{Signature: p.sig, Status: executor.StatusSubmitted, Attempts: 1}, executor.ErrPendingConfirmation
}

func TestSettle_PendingThenReconciled(t *testing.T) {
	f := newFixture(t)
	payout := stub.Signature("payout-1")
	dist := f.newDistributor(pendingExecutor{sig: payout})
	sig := f.pay("pay-1", price)

	out, err := dist.Settle(f.ctx, f.request(sig))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if out.Settlement.Status != domain.SettlementPending || out.Settlement.PayoutSignature != payout {
		t.Fatalf("expected pending with payout signature, got %+v", out.Settlement)
	}

	// Not yet landed and not expired: stays pending.
	s, err := dist.Reconcile(f.ctx, out.Settlement.ID)
	if err != nil || s.Status != domain.SettlementPending {
		t.Fatalf("expected still pending, got %v %v", s.Status, err)
	}

	f.ledger.Statuses[payout] = &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed}
	s, err = dist.Reconcile(f.ctx, out.Settlement.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if s.Status != domain.SettlementCompleted {
		t.Fatalf("expected completed, got %s", s.Status)
	}
	if _, err := dist.Reconcile(f.ctx, s.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if len(f.mirror.rows) != 1 {
		t.Fatalf("expected reconciled settlement mirrored")
	}
}

func TestReconcilePending_ExpiresUnconfirmedPayouts(t *testing.T) {
	f := newFixture(t)
	dist := f.newDistributor(pendingExecutor{sig: stub.Signature("lost-payout")})
	sig := f.pay("pay-1", price)

	out, err := dist.Settle(f.ctx, f.request(sig))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	f.now = f.now.Add(10 * time.Minute)
	n, err := dist.ReconcilePending(f.ctx, 10)
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one resolved, got %d", n)
	}
	s, _ := dist.Get(f.ctx, out.Settlement.ID)
	if s.Status != domain.SettlementFailed {
		t.Fatalf("expected failed after expiry, got %s", s.Status)
	}
}

func TestSettle_AlreadyPurchased(t *testing.T) {
	f := newFixture(t)
	if _, err := f.dist.Settle(f.ctx, f.request(f.pay("pay-1", price))); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	_, err := f.dist.Settle(f.ctx, f.request(f.pay("pay-2", price)))
	if !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("expected ErrAlreadyPurchased, got %v", err)
	}
}

func TestSettle_RequestValidation(t *testing.T) {
	f := newFixture(t)
	sig := f.pay("pay-1", price)

	if err := f.dist.CreateListing(f.ctx, &domain.Listing{
		ItemID: "free-prompt", ItemType: domain.ItemPrompt, Name: "Free", SellerID: "seller-1",
	}); err != nil {
		t.Fatalf("CreateListing free: %v", err)
	}

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing signature", Request{BuyerID: "b", BuyerWallet: f.buyer, ItemID: "agent-1"}, ErrInvalidRequest},
		{"bad wallet", Request{PaymentSignature: sig, BuyerID: "b", BuyerWallet: "nope", ItemID: "agent-1"}, wallet.ErrInvalidAddress},
		{"unknown item", Request{PaymentSignature: sig, BuyerID: "b", BuyerWallet: f.buyer, ItemID: "missing"}, ErrListingNotFound},
		{"free item", Request{PaymentSignature: sig, BuyerID: "b", BuyerWallet: f.buyer, ItemID: "free-prompt"}, ErrFreeItem},
		{"self purchase", Request{PaymentSignature: sig, BuyerID: "seller-1", BuyerWallet: f.seller, ItemID: "agent-1"}, ErrSelfPurchase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.dist.Settle(f.ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUserTransactionsAndStats(t *testing.T) {
	f := newFixture(t)
	if _, err := f.dist.Settle(f.ctx, f.request(f.pay("pay-1", price))); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	bought, err := f.dist.UserTransactions(f.ctx, "buyer-1", storage.RoleBuyer, 10)
	if err != nil || len(bought) != 1 {
		t.Fatalf("expected one purchase, got %d %v", len(bought), err)
	}
	sold, _ := f.dist.UserTransactions(f.ctx, "buyer-1", storage.RoleSeller, 10)
	if len(sold) != 0 {
		t.Fatalf("buyer has no sales, got %d", len(sold))
	}
	if _, err := f.dist.UserTransactions(f.ctx, "buyer-1", "owner", 10); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unknown role, got %v", err)
	}

	stats, err := f.dist.Stats(f.ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CompletedSales != 1 || stats.TotalVolume != price || stats.TotalCommissions != 10_000_000_000 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCreateListing_Validation(t *testing.T) {
	f := newFixture(t)

	if err := f.dist.CreateListing(f.ctx, &domain.Listing{ItemID: "x", ItemType: "widget", Name: "n", SellerID: "s"}); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("expected ErrInvalidListing for unknown type, got %v", err)
	}
	if err := f.dist.CreateListing(f.ctx, &domain.Listing{ItemID: "x", ItemType: domain.ItemTool, Name: "n", SellerID: "s", Price: 5}); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("expected ErrInvalidListing for paid listing without wallet, got %v", err)
	}
	dup := &domain.Listing{ItemID: "agent-1", ItemType: domain.ItemAgent, Name: "dup", SellerID: "s", SellerWallet: f.seller, Price: 1}
	if err := f.dist.CreateListing(f.ctx, dup); !errors.Is(err, ErrListingExists) {
		t.Fatalf("expected ErrListingExists, got %v", err)
	}
}
