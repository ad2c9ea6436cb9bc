package config

import (
	"strings"
)

// ReceiptDispatchBestEffort lets a checkout complete even when the WhatsApp
// receipt could not be sent. The sale is then marked with receipt_status=failed
// and can be re-dispatched with cmd/receipt-replay.
//
// Set via env:
// - RECEIPT_DISPATCH_BEST_EFFORT=true
func ReceiptDispatchBestEffort() bool {
	return BoolFromEnv("RECEIPT_DISPATCH_BEST_EFFORT", false)
}

// ValidateTwilioSignature enables X-Twilio-Signature verification on inbound webhooks.
//
// Set via env:
// - TWILIO_VALIDATE_SIGNATURE=true (requires TWILIO_AUTH_TOKEN and WEBHOOK_PUBLIC_URL)
func ValidateTwilioSignature() bool {
	return BoolFromEnv("TWILIO_VALIDATE_SIGNATURE", false)
}

// StorageDriver selects the persistence backend: "mysql" (default) or "memory"
// for local demos without a database.
func StorageDriver() string {
	v := strings.ToLower(StringFromEnv("STORAGE_DRIVER", "mysql"))
	if v != "memory" {
		return "mysql"
	}
	return v
}

// DefaultPhoneRegion is the region used to parse national-format numbers (e.g. 0700…).
func DefaultPhoneRegion() string {
	return strings.ToUpper(StringFromEnv("DEFAULT_PHONE_REGION", "KE"))
}

func IsProduction() bool {
	return strings.EqualFold(StringFromEnv("GO_ENV", ""), "production")
}
