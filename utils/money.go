package utils

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const CurrencyCode = "KES"

var receiptLocation = loadReceiptLocation()

func loadReceiptLocation() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

// FormatKES formats an amount like "KES 12,500" or "KES 12,500.50".
// Cents are shown only when the amount is fractional.
func FormatKES(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	s := plainAmount(amount.Abs())

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 6)
	if neg {
		b.WriteString("-")
	}
	b.WriteString(CurrencyCode + " ")

	rem := len(intPart) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(intPart[:rem])
	for i := rem; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatReceiptAmount formats an amount for message text without digit grouping, e.g. "KES 2000".
func FormatReceiptAmount(amount decimal.Decimal) string {
	return CurrencyCode + " " + plainAmount(amount)
}

func plainAmount(amount decimal.Decimal) string {
	amount = amount.Round(2)
	if amount.Equal(amount.Truncate(0)) {
		return amount.StringFixed(0)
	}
	return amount.StringFixed(2)
}

// FormatReceiptTime renders t in Nairobi time, e.g. "16 Oct 2026 14:05".
func FormatReceiptTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(receiptLocation).Format("02 Jan 2006 15:04")
}
