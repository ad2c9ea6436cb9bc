package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuote(t *testing.T) {
	rates := Rates{
		WhatsappUnitRate: decimal.RequireFromString("1.00"),
		SmsUnitRate:      decimal.RequireFromString("0.80"),
		FallbackRatio:    decimal.RequireFromString("0.10"),
	}
	tests := []struct {
		count    int
		fallback int
		total    string
	}{
		{1000, 100, "1080"},
		{1, 1, "1.8"},
		{15, 2, "16.6"},
		{10, 1, "10.8"},
	}
	for _, tt := range tests {
		q, err := rates.Quote(tt.count)
		if err != nil {
			t.Fatalf("Quote(%d): %v", tt.count, err)
		}
		if q.SmsFallback != tt.fallback {
			t.Errorf("Quote(%d) fallback = %d, want %d", tt.count, q.SmsFallback, tt.fallback)
		}
		if !q.Total.Equal(decimal.RequireFromString(tt.total)) {
			t.Errorf("Quote(%d) total = %s, want %s", tt.count, q.Total, tt.total)
		}
	}
}

func TestQuote_FormattedTotal(t *testing.T) {
	q, err := Rates{WhatsappUnitRate: decimal.NewFromInt(2), SmsUnitRate: decimal.NewFromInt(1), FallbackRatio: decimal.Zero}.Quote(1000)
	if err != nil {
		t.Fatal(err)
	}
	if q.FormattedTotal != "KES 2,000" {
		t.Fatalf("got %q", q.FormattedTotal)
	}
}

func TestQuote_RejectsBadCount(t *testing.T) {
	for _, n := range []int{0, -5, MaxBundleCount + 1} {
		if _, err := RatesFromEnv().Quote(n); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("Quote(%d) err = %v", n, err)
		}
	}
}
