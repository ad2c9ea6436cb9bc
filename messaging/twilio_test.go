package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestTwilio(t *testing.T, handler http.HandlerFunc) *TwilioClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewTwilioClient(TwilioConfig{
		BaseURL:    srv.URL,
		AccountSid: "AC123",
		AuthToken:  "secret",
		From:       "+254711000000",
	})
	if err != nil {
		t.Fatalf("NewTwilioClient: %v", err)
	}
	return c
}

func TestTwilioClient_Send(t *testing.T) {
	var form url.Values
	c := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "secret" {
			t.Errorf("missing basic auth")
		}
		_ = r.ParseForm()
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued","error_code":null,"error_message":null}`))
	})

	res, err := c.Send(context.Background(), OutboundMessage{
		To:        "whatsapp:+254700000000",
		Body:      "hello",
		MediaUrls: []string{"https://a/1.jpg", "https://a/2.jpg"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sid != "SM1" || res.Status != "queued" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if form.Get("From") != "whatsapp:+254711000000" || form.Get("To") != "whatsapp:+254700000000" || form.Get("Body") != "hello" {
		t.Fatalf("unexpected form: %v", form)
	}
	if len(form["MediaUrl"]) != 2 {
		t.Fatalf("expected 2 media urls, got %v", form["MediaUrl"])
	}
}

func TestTwilioClient_ProviderError(t *testing.T) {
	c := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	_, err := c.Send(context.Background(), OutboundMessage{To: "whatsapp:+1", Body: "x"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Code != 21211 || pe.HTTPStatus != 400 || pe.Message != "Invalid 'To' Phone Number" {
		t.Fatalf("unexpected provider error: %+v", pe)
	}
}

func TestNewTwilioClient_RequiresCredentials(t *testing.T) {
	if _, err := NewTwilioClient(TwilioConfig{From: "+1"}); err == nil {
		t.Fatalf("expected error without credentials")
	}
	if _, err := NewTwilioClient(TwilioConfig{AccountSid: "AC", AuthToken: "x"}); err == nil {
		t.Fatalf("expected error without sender")
	}
}

func TestTwilioSignature_RoundTrip(t *testing.T) {
	params := url.Values{"From": {"whatsapp:+254700000000"}, "Body": {"Hi"}, "MessageSid": {"SM1"}}
	sig := TwilioSignature("token", "https://api.example.com/api/whatsapp/webhook", params)
	if !ValidTwilioSignature("token", "https://api.example.com/api/whatsapp/webhook", params, sig) {
		t.Fatalf("expected signature to validate")
	}
	params.Set("Body", "Hi!")
	if ValidTwilioSignature("token", "https://api.example.com/api/whatsapp/webhook", params, sig) {
		t.Fatalf("tampered params must not validate")
	}
	if ValidTwilioSignature("", "https://x", params, sig) {
		t.Fatalf("empty token must not validate")
	}
}
