package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

const WhatsAppChannelPrefix = "whatsapp:"

var ErrInvalidPhone = errors.New("invalid phone number")

// StripChannel drops a "whatsapp:" style channel prefix.
func StripChannel(address string) string {
	address = strings.TrimSpace(address)
	if i := strings.Index(address, ":"); i >= 0 && !strings.HasPrefix(address, "+") {
		return strings.TrimSpace(address[i+1:])
	}
	return address
}

// NormalizePhone parses raw (national or international format, optionally
// channel-prefixed) and returns it in E.164, e.g. "+254700000000". Numbers
// outside any assigned range for their country are rejected.
func NormalizePhone(raw string, region string) (string, error) {
	number := StripChannel(raw)
	if number == "" {
		return "", ErrInvalidPhone
	}
	p, err := libphonenumber.Parse(number, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", ErrInvalidPhone
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// WhatsAppAddress normalizes raw and adds the WhatsApp channel prefix.
func WhatsAppAddress(raw string, region string) (string, error) {
	e164, err := NormalizePhone(raw, region)
	if err != nil {
		return "", err
	}
	return WhatsAppChannelPrefix + e164, nil
}
