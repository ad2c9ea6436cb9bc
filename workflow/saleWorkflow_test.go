package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/inbox"
	"github.com/dukaflow/retailer_backend/messaging"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/pos"
	"github.com/dukaflow/retailer_backend/repository"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/shopspring/decimal"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []messaging.OutboundMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg messaging.OutboundMessage) (messaging.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return messaging.SendResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return messaging.SendResult{Sid: "SM" + string(rune('A'+len(f.sent))), Status: "queued"}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// keyedLocker serializes per retailer+key in process, standing in for the redis lock.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocker) lock(_ context.Context, retailerId, lockType, key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	id := retailerId + "|" + lockType + "|" + key
	m := k.locks[id]
	if m == nil {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func noLock(context.Context, string, string, string) func() { return func() {} }

type harness struct {
	store     *repository.MemoryStore
	sender    *fakeSender
	sync      *inbox.Synchronizer
	processor *SaleProcessor
	sess      appctx.Session
}

func newHarness(t *testing.T, plan tier.Tier, opts ...ProcessorOption) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	if err := store.CreateRetailer(context.Background(), &models.Retailer{ID: "ret-1", Name: "Acme", WhatsappNumber: "+254711000000", Tier: string(plan)}); err != nil {
		t.Fatalf("CreateRetailer: %v", err)
	}
	sender := &fakeSender{}
	syncer := inbox.NewSynchronizer(store, store, store, inbox.WithLocker(noLock))
	gateway := messaging.NewGateway(sender, syncer, "KE")
	opts = append([]ProcessorOption{WithSaleLocker(noLock), WithBestEffortReceipts(false)}, opts...)
	return &harness{
		store:     store,
		sender:    sender,
		sync:      syncer,
		processor: NewSaleProcessor(store, store, store, gateway, opts...),
		sess:      appctx.Session{ID: "sess-1", RetailerId: "ret-1", Tier: plan},
	}
}

func dressRequest(clientRef string) pos.SaleRequest {
	return pos.SaleRequest{
		ClientRef: clientRef,
		Items:     []pos.Item{{ID: "1", Name: "Dress", UnitPrice: decimal.NewFromInt(1000), Quantity: 1}},
		Customer:  pos.CustomerData{Name: "Jane", Phone: "0700000000"},
	}
}

func TestCheckoutEndToEnd_ReceiptThreadedIntoInbox(t *testing.T) {
	h := newHarness(t, tier.Standard)
	ctx := context.Background()

	cart := pos.NewCart()
	cart.AddItem("Dress", decimal.NewFromInt(1000))
	co := pos.NewCheckout(cart)
	if r := co.Proceed(); r != nil {
		t.Fatalf("sale -> customer: %v", r)
	}
	if r := co.SetCustomer(pos.CustomerData{Name: "Jane", Phone: "0700000000"}); r != nil {
		t.Fatalf("SetCustomer: %v", r)
	}
	if r := co.Proceed(); r != nil {
		t.Fatalf("customer -> payment: %v", r)
	}

	done, err := co.Complete(ctx, h.processor.ForSession(h.sess))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if co.Step() != pos.StepSuccess {
		t.Fatalf("expected success step, got %s", co.Step())
	}

	sale, err := h.store.GetSale(ctx, h.sess.RetailerId, done.SaleId)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if !sale.Total.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("sale total = %s, want 1000", sale.Total)
	}
	if sale.Status != models.SaleStatusCompleted || sale.ReceiptStatus != models.ReceiptStatusSent {
		t.Fatalf("unexpected sale state: %s / %s", sale.Status, sale.ReceiptStatus)
	}

	if h.sender.count() != 1 {
		t.Fatalf("expected one dispatched message, got %d", h.sender.count())
	}
	dispatched := h.sender.sent[0]
	if !strings.Contains(dispatched.Body, "1000") {
		t.Fatalf("receipt does not show the total: %q", dispatched.Body)
	}
	if dispatched.To != "whatsapp:+254700000000" {
		t.Fatalf("dispatched to %q", dispatched.To)
	}

	conv, err := h.store.FindConversationByCustomer(ctx, h.sess.RetailerId, sale.CustomerId)
	if err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	if conv.LastMessage != dispatched.Body {
		t.Fatalf("lastMessage = %q, want dispatched text", conv.LastMessage)
	}
	if conv.UnreadCount != 0 {
		t.Fatalf("agent receipt changed unread count to %d", conv.UnreadCount)
	}

	// the customer's reply lands in the same thread
	res, err := h.sync.HandleInbound(ctx, inbox.InboundMessage{From: "whatsapp:+254700000000", Body: "Thanks!", MessageSid: "SM-reply"})
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Conversation.ID != conv.ID {
		t.Fatalf("reply opened a second conversation")
	}
}

func TestCompleteSale_BasicTierSkipsReceipt(t *testing.T) {
	h := newHarness(t, tier.Basic)
	res := h.processor.Handle(context.Background(), CompleteSale{Session: h.sess, Sale: dressRequest("ref-basic")})
	if res.Kind != ResultCompleted {
		t.Fatalf("expected completed, got %s (%s)", res.Kind, res.Error)
	}
	if res.Sale.ReceiptStatus != models.ReceiptStatusSkipped {
		t.Fatalf("expected skipped receipt, got %s", res.Sale.ReceiptStatus)
	}
	if h.sender.count() != 0 {
		t.Fatalf("basic tier must not dispatch")
	}
}

func TestCompleteSale_DispatchFailureBlocksCompletion(t *testing.T) {
	h := newHarness(t, tier.Standard)
	ctx := context.Background()
	h.sender.err = &messaging.ProviderError{HTTPStatus: 400, Code: 63016, Message: "outside the allowed window"}

	res := h.processor.Handle(ctx, CompleteSale{Session: h.sess, Sale: dressRequest("ref-1")})
	if res.Kind != ResultReceiptFailed {
		t.Fatalf("expected receipt_failed, got %s", res.Kind)
	}
	stored, _ := h.store.FindSaleByClientRef(ctx, h.sess.RetailerId, "ref-1")
	if stored.Status != models.SaleStatusInProgress || stored.ReceiptStatus != models.ReceiptStatusFailed {
		t.Fatalf("sale should stay in progress with failed receipt: %+v", stored)
	}

	// retry with the same clientRef reuses the sale
	h.sender.err = nil
	res = h.processor.Handle(ctx, CompleteSale{Session: h.sess, Sale: dressRequest("ref-1")})
	if res.Kind != ResultCompleted || res.Sale.ID != stored.ID {
		t.Fatalf("retry: %s on sale %v", res.Kind, res.Sale)
	}
	sales, _ := h.store.ListSales(ctx, h.sess.RetailerId, models.SaleFilter{})
	if len(sales) != 1 {
		t.Fatalf("expected a single sale, got %d", len(sales))
	}
}

func TestCheckout_EditAfterFailedReceiptRevisesSale(t *testing.T) {
	h := newHarness(t, tier.Standard)
	ctx := context.Background()

	cart := pos.NewCart()
	cart.AddItem("Dress", decimal.NewFromInt(1000))
	co := pos.NewCheckout(cart)
	co.Proceed()
	co.SetCustomer(pos.CustomerData{Name: "Jane", Phone: "0700000000"})
	co.Proceed()

	h.sender.err = errors.New("connection reset")
	if _, err := co.Complete(ctx, h.processor.ForSession(h.sess)); err == nil {
		t.Fatalf("expected the failed receipt to block completion")
	}

	// back to the cart, add an item, fix the phone, try again
	co.Back()
	co.Back()
	cart.AddItem("Shoes", decimal.NewFromInt(500))
	if r := co.Proceed(); r != nil {
		t.Fatalf("sale -> customer: %v", r)
	}
	co.SetCustomer(pos.CustomerData{Name: "Jane", Phone: "0711111111"})
	if r := co.Proceed(); r != nil {
		t.Fatalf("customer -> payment: %v", r)
	}
	h.sender.err = nil
	done, err := co.Complete(ctx, h.processor.ForSession(h.sess))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if !done.Total.Equal(cart.Total()) || !done.Total.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("completion total %s, cart total %s", done.Total, cart.Total())
	}
	sale, _ := h.store.GetSale(ctx, h.sess.RetailerId, done.SaleId)
	if len(sale.Items) != 2 || sale.CustomerPhone != "+254711111111" || sale.ReceiptStatus != models.ReceiptStatusSent {
		t.Fatalf("stored sale not revised: %+v", sale)
	}
	if h.sender.count() != 1 {
		t.Fatalf("expected one delivered receipt, got %d", h.sender.count())
	}
	sent := h.sender.sent[0]
	if sent.To != "whatsapp:+254711111111" || !strings.Contains(sent.Body, "Shoes") || !strings.Contains(sent.Body, "KES 1500") {
		t.Fatalf("receipt reflects the old checkout: to=%s body=%q", sent.To, sent.Body)
	}
	sales, _ := h.store.ListSales(ctx, h.sess.RetailerId, models.SaleFilter{})
	if len(sales) != 1 {
		t.Fatalf("expected the retry to reuse the sale, got %d sales", len(sales))
	}
}

func TestCompleteSale_CompletedClientRefCannotChange(t *testing.T) {
	h := newHarness(t, tier.Standard)
	ctx := context.Background()
	if res := h.processor.Handle(ctx, CompleteSale{Session: h.sess, Sale: dressRequest("ref-done")}); res.Kind != ResultCompleted {
		t.Fatalf("first completion: %s (%s)", res.Kind, res.Error)
	}

	changed := dressRequest("ref-done")
	changed.Items[0].Quantity = 3
	res := h.processor.Handle(ctx, CompleteSale{Session: h.sess, Sale: changed})
	if res.Kind != ResultRejected {
		t.Fatalf("expected rejected, got %s", res.Kind)
	}
	stored, _ := h.store.FindSaleByClientRef(ctx, h.sess.RetailerId, "ref-done")
	if !stored.Total.Equal(decimal.NewFromInt(1000)) || h.sender.count() != 1 {
		t.Fatalf("completed sale changed: total %s, %d receipts", stored.Total, h.sender.count())
	}
}

func TestCompleteSale_BestEffortCompletesWithPendingReceipt(t *testing.T) {
	h := newHarness(t, tier.Pro, WithBestEffortReceipts(true))
	h.sender.err = errors.New("connection reset")

	res := h.processor.Handle(context.Background(), CompleteSale{Session: h.sess, Sale: dressRequest("ref-2")})
	if res.Kind != ResultCompletedReceiptPending {
		t.Fatalf("expected completed_receipt_pending, got %s", res.Kind)
	}
	if res.Sale.Status != models.SaleStatusCompleted || res.Sale.ReceiptStatus != models.ReceiptStatusFailed {
		t.Fatalf("unexpected sale: %+v", res.Sale)
	}

	h.sender.err = nil
	sent, err := h.processor.ReplayFailedReceipts(context.Background(), h.sess, 0)
	if err != nil || sent != 1 {
		t.Fatalf("replay sent %d, err %v", sent, err)
	}
}

func TestCompleteSale_Rejections(t *testing.T) {
	h := newHarness(t, tier.Standard)
	tests := []struct {
		name string
		cmd  CompleteSale
		want ResultKind
	}{
		{"no session", CompleteSale{Sale: dressRequest("r")}, ResultUnauthenticated},
		{"empty cart", CompleteSale{Session: h.sess, Sale: pos.SaleRequest{ClientRef: "r", Customer: pos.CustomerData{Name: "Jane", Phone: "0700000000"}}}, ResultRejected},
		{"blank name", CompleteSale{Session: h.sess, Sale: func() pos.SaleRequest { r := dressRequest("r"); r.Customer.Name = " "; return r }()}, ResultRejected},
		{"bad phone", CompleteSale{Session: h.sess, Sale: func() pos.SaleRequest { r := dressRequest("r"); r.Customer.Phone = "abc"; return r }()}, ResultRejected},
		{"no client ref", CompleteSale{Session: h.sess, Sale: dressRequest("")}, ResultRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.processor.Handle(context.Background(), tt.cmd).Kind; got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
	sales, _ := h.store.ListSales(context.Background(), h.sess.RetailerId, models.SaleFilter{})
	if len(sales) != 0 {
		t.Fatalf("rejected commands wrote %d sales", len(sales))
	}
}

func TestCompleteSale_DuplicateSubmissionSendsOnce(t *testing.T) {
	locker := &keyedLocker{}
	h := newHarness(t, tier.Standard, WithSaleLocker(locker.lock))

	var wg sync.WaitGroup
	results := make([]Result, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.processor.Handle(context.Background(), CompleteSale{Session: h.sess, Sale: dressRequest("ref-dup")})
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r.Kind != ResultCompleted {
			t.Fatalf("call %d: %s (%s)", i, r.Kind, r.Error)
		}
	}
	if h.sender.count() != 1 {
		t.Fatalf("expected exactly 1 receipt, got %d", h.sender.count())
	}
}
