// Package billing prices message-credit bundles.
package billing

import (
	"errors"

	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/shopspring/decimal"
)

var ErrInvalidCount = errors.New("bundle count must be positive")

// MaxBundleCount caps a single purchase.
const MaxBundleCount = 1000000

type Rates struct {
	WhatsappUnitRate decimal.Decimal
	SmsUnitRate      decimal.Decimal
	// FallbackRatio is the share of messages expected to fall back to SMS.
	FallbackRatio decimal.Decimal
}

type Quote struct {
	Count          int             `json:"count"`
	WhatsappCost   decimal.Decimal `json:"whatsappCost"`
	SmsFallback    int             `json:"smsFallbackCount"`
	SmsCost        decimal.Decimal `json:"smsCost"`
	Total          decimal.Decimal `json:"total"`
	FormattedTotal string          `json:"formattedTotal"`
}

func RatesFromEnv() Rates {
	return Rates{
		WhatsappUnitRate: config.DecimalFromEnv("BUNDLE_WHATSAPP_RATE", decimal.RequireFromString("1.00")),
		SmsUnitRate:      config.DecimalFromEnv("BUNDLE_SMS_RATE", decimal.RequireFromString("0.80")),
		FallbackRatio:    config.DecimalFromEnv("BUNDLE_SMS_FALLBACK_RATIO", decimal.RequireFromString("0.10")),
	}
}

// Quote computes whatsappUnitRate × count + smsUnitRate × ceil(count × fallbackRatio).
func (r Rates) Quote(count int) (Quote, error) {
	if count <= 0 || count > MaxBundleCount {
		return Quote{}, ErrInvalidCount
	}
	n := decimal.NewFromInt(int64(count))
	ratio := r.FallbackRatio
	if ratio.IsNegative() {
		ratio = decimal.Zero
	}
	fallback := n.Mul(ratio).Ceil()

	q := Quote{
		Count:        count,
		WhatsappCost: r.WhatsappUnitRate.Mul(n),
		SmsFallback:  int(fallback.IntPart()),
		SmsCost:      r.SmsUnitRate.Mul(fallback),
	}
	q.Total = q.WhatsappCost.Add(q.SmsCost)
	q.FormattedTotal = utils.FormatKES(q.Total)
	return q, nil
}
