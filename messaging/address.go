package messaging

import (
	"errors"
	"strings"

	"github.com/dukaflow/retailer_backend/utils"
)

var ErrInvalidAddress = errors.New("invalid destination address")

// NormalizeAddress turns a phone number or channel address into "whatsapp:+<E.164>".
func NormalizeAddress(raw string, region string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalidAddress
	}
	addr, err := utils.WhatsAppAddress(raw, region)
	if err != nil {
		return "", ErrInvalidAddress
	}
	return addr, nil
}
