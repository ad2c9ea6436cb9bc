package messaging

import (
	"context"
	"fmt"
)

type OutboundMessage struct {
	To        string
	Body      string
	MediaUrls []string
}

type SendResult struct {
	Sid    string
	Status string
}

// Sender delivers a message through the channel provider.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (SendResult, error)
}

// ProviderError is a failure reported by the channel provider.
type ProviderError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// UnconfiguredSender fails every send. Used when no channel credentials are set
// so the rest of the API stays usable in development.
type UnconfiguredSender struct{}

func (UnconfiguredSender) Send(context.Context, OutboundMessage) (SendResult, error) {
	return SendResult{}, &ProviderError{HTTPStatus: 503, Message: "whatsapp channel is not configured"}
}
