package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/tier"
)

type fakeSender struct {
	sent []OutboundMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg OutboundMessage) (SendResult, error) {
	if f.err != nil {
		return SendResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return SendResult{Sid: "SM100", Status: "queued"}, nil
}

type recorded struct {
	customerId, text, sid string
}

type fakeRecorder struct {
	calls []recorded
	err   error
}

func (f *fakeRecorder) RecordOutbound(ctx context.Context, s appctx.Session, customerId, text, sid string) (*models.Message, error) {
	f.calls = append(f.calls, recorded{customerId, text, sid})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{Text: text}, nil
}

var testSession = appctx.Session{ID: "sess-1", RetailerId: "ret-1", Tier: tier.Standard}

func TestGateway_SendReceipt_DispatchesAndRecords(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	g := NewGateway(sender, rec, "KE")

	res := g.SendReceipt(context.Background(), testSession, Recipient{CustomerId: "cust-1", Address: "0700000000"}, acmePayload())
	if !res.Success || res.MessageSid != "SM100" || res.Status != "queued" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "whatsapp:+254700000000" {
		t.Fatalf("unexpected dispatch: %+v", sender.sent)
	}
	if sender.sent[0].Body != FormatReceipt(acmePayload()) || res.Text != sender.sent[0].Body {
		t.Fatalf("dispatched body is not the formatted receipt")
	}
	if len(rec.calls) != 1 || rec.calls[0].customerId != "cust-1" || rec.calls[0].sid != "SM100" || rec.calls[0].text != res.Text {
		t.Fatalf("unexpected inbox record: %+v", rec.calls)
	}
}

func TestGateway_TransportErrorIsAResult(t *testing.T) {
	sender := &fakeSender{err: &ProviderError{HTTPStatus: 400, Code: 63016, Message: "outside the allowed window"}}
	rec := &fakeRecorder{}
	g := NewGateway(sender, rec, "KE")

	res := g.SendReceipt(context.Background(), testSession, Recipient{CustomerId: "cust-1", Address: "0700000000"}, acmePayload())
	if res.Success || res.Code != 63016 || res.Error != "outside the allowed window" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("failed send must not be recorded")
	}

	sender.err = errors.New("connection reset")
	res = g.SendReceipt(context.Background(), testSession, Recipient{Address: "0700000000"}, acmePayload())
	if res.Success || res.Code != CodeTransport || !strings.Contains(res.Error, "connection reset") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGateway_RejectsBadInputBeforeDispatch(t *testing.T) {
	sender := &fakeSender{}
	g := NewGateway(sender, nil, "KE")

	cases := []struct {
		name    string
		session appctx.Session
		to      Recipient
		payload ReceiptPayload
		code    int
	}{
		{"no session", appctx.Session{}, Recipient{Address: "0700000000"}, acmePayload(), CodeNotAuthenticate},
		{"empty address", testSession, Recipient{Address: " "}, acmePayload(), CodeInvalidAddress},
		{"bad address", testSession, Recipient{Address: "not-a-phone"}, acmePayload(), CodeInvalidAddress},
		{"bad payload", testSession, Recipient{Address: "0700000000"}, ReceiptPayload{StoreName: "Acme"}, CodeInvalidPayload},
	}
	for _, tc := range cases {
		res := g.SendReceipt(context.Background(), tc.session, tc.to, tc.payload)
		if res.Success || res.Code != tc.code {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should have been dispatched, got %d", len(sender.sent))
	}
}

func TestGateway_InboxFailureStillReportsSuccess(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	g := NewGateway(&fakeSender{}, rec, "KE")

	res := g.SendReceipt(context.Background(), testSession, Recipient{CustomerId: "cust-1", Address: "+254700000000"}, acmePayload())
	if !res.Success || res.LogError != "db down" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGateway_SendText_RequiresBodyOrMedia(t *testing.T) {
	sender := &fakeSender{}
	g := NewGateway(sender, nil, "KE")

	if res := g.SendText(context.Background(), testSession, Recipient{Address: "0700000000"}, "  ", nil); res.Success {
		t.Fatalf("expected failure without body or media")
	}
	res := g.SendText(context.Background(), testSession, Recipient{Address: "0700000000"}, "", []string{"https://cdn.example.com/a.jpg"})
	if !res.Success || len(sender.sent) != 1 || len(sender.sent[0].MediaUrls) != 1 {
		t.Fatalf("unexpected media send: %+v / %+v", res, sender.sent)
	}
}

func TestGateway_UnconfiguredSender(t *testing.T) {
	rec := &fakeRecorder{}
	g := NewGateway(UnconfiguredSender{}, rec, "KE")

	res := g.SendText(context.Background(), testSession, Recipient{CustomerId: "cust-1", Address: "0700000000"}, "hello", nil)
	if res.Success || res.Code != CodeTransport || !strings.Contains(res.Error, "not configured") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("unsent message recorded")
	}
}
