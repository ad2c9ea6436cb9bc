// Package tier maps a retailer's subscription tier to the features it may use
// and to the POS variant the dashboard should render.
package tier

import (
	"net/url"
	"strings"
)

type Tier string

const (
	Basic    Tier = "basic"
	Standard Tier = "standard"
	Pro      Tier = "pro"
)

type Feature string

const (
	FeaturePOS              Feature = "pos"
	FeatureCustomers        Feature = "customers"
	FeatureWhatsAppReceipts Feature = "whatsapp_receipts"
	FeatureInbox            Feature = "inbox"
	FeatureBundles          Feature = "bundles"
	FeatureReportsExport    Feature = "reports_export"
	FeatureBulkMessaging    Feature = "bulk_messaging"
)

// POSVariant names the checkout component a tier gets.
type POSVariant string

const (
	POSBasic    POSVariant = "pos_basic"
	POSWhatsApp POSVariant = "pos_whatsapp"
	POSPro      POSVariant = "pos_pro"
)

const UpgradePath = "/upgrade"

type Plan struct {
	Tier       Tier
	Features   map[Feature]bool
	POSVariant POSVariant
}

// SendsReceipts reports whether checkouts on this plan dispatch a WhatsApp receipt.
func (p Plan) SendsReceipts() bool {
	return p.Features[FeatureWhatsAppReceipts]
}

func (p Plan) Allows(f Feature) bool {
	return p.Features[f]
}

// Decision is the outcome of gating a feature; a denied decision always
// carries the upgrade prompt to redirect to.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

var order = []Tier{Basic, Standard, Pro}

var additions = map[Tier][]Feature{
	Basic:    {FeaturePOS, FeatureCustomers},
	Standard: {FeatureWhatsAppReceipts, FeatureInbox, FeatureBundles},
	Pro:      {FeatureReportsExport, FeatureBulkMessaging},
}

var variants = map[Tier]POSVariant{
	Basic:    POSBasic,
	Standard: POSWhatsApp,
	Pro:      POSPro,
}

// Parse resolves a tier name; anything unrecognised is treated as basic.
func Parse(s string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case Standard:
		return Standard
	case Pro:
		return Pro
	default:
		return Basic
	}
}

// PlanFor returns the cumulative feature set of t.
func PlanFor(t Tier) Plan {
	t = Parse(string(t))
	features := map[Feature]bool{}
	for _, cur := range order {
		for _, f := range additions[cur] {
			features[f] = true
		}
		if cur == t {
			break
		}
	}
	return Plan{Tier: t, Features: features, POSVariant: variants[t]}
}

// MinimumTier returns the lowest tier that includes f, or false for unknown features.
func MinimumTier(f Feature) (Tier, bool) {
	for _, t := range order {
		for _, x := range additions[t] {
			if x == f {
				return t, true
			}
		}
	}
	return "", false
}

func Decide(t Tier, f Feature) Decision {
	if PlanFor(t).Allows(f) {
		return Decision{Allowed: true}
	}
	q := url.Values{}
	q.Set("feature", string(f))
	if required, ok := MinimumTier(f); ok {
		q.Set("required", string(required))
	}
	return Decision{Allowed: false, RedirectTo: UpgradePath + "?" + q.Encode()}
}
