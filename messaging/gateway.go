package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	CodeInvalidAddress  = 21211
	CodeInvalidPayload  = 40001
	CodeNotAuthenticate = 40101
	CodeTransport       = 50001
)

var tracer = otel.Tracer("github.com/dukaflow/retailer_backend/messaging")

// ThreadRecorder stores a sent message in the customer's conversation.
type ThreadRecorder interface {
	RecordOutbound(ctx context.Context, s appctx.Session, customerId string, text string, providerSid string) (*models.Message, error)
}

type Recipient struct {
	CustomerId string
	Address    string
}

// Result is the outcome of a send. Transport failures are reported here, never as panics.
type Result struct {
	Success    bool   `json:"success"`
	MessageSid string `json:"messageSid,omitempty"`
	Status     string `json:"status,omitempty"`
	Text       string `json:"-"`
	Error      string `json:"error,omitempty"`
	Code       int    `json:"code,omitempty"`
	LogError   string `json:"-"`
}

type Gateway struct {
	sender   Sender
	recorder ThreadRecorder
	region   string
	logger   *logrus.Logger
}

func NewGateway(sender Sender, recorder ThreadRecorder, region string) *Gateway {
	if region == "" {
		region = "KE"
	}
	return &Gateway{
		sender:   sender,
		recorder: recorder,
		region:   region,
		logger:   config.GetLogger(),
	}
}

// SendReceipt validates and formats the receipt, dispatches it to the recipient and
// threads the sent text into the customer's conversation.
func (g *Gateway) SendReceipt(ctx context.Context, s appctx.Session, to Recipient, payload ReceiptPayload) Result {
	ctx, span := tracer.Start(ctx, "messaging.SendReceipt")
	defer span.End()

	if err := ValidateReceipt(payload); err != nil {
		span.SetStatus(codes.Error, "invalid payload")
		return Result{Error: fmt.Sprintf("invalid receipt: %v", utils.ProcessValidationErrors(err)), Code: CodeInvalidPayload}
	}
	return g.send(ctx, s, to, OutboundMessage{Body: FormatReceipt(payload)})
}

// SendText sends free text and/or media to the recipient.
func (g *Gateway) SendText(ctx context.Context, s appctx.Session, to Recipient, text string, mediaUrls []string) Result {
	ctx, span := tracer.Start(ctx, "messaging.SendText")
	defer span.End()

	if strings.TrimSpace(text) == "" && len(mediaUrls) == 0 {
		return Result{Error: "message or mediaUrl is required", Code: CodeInvalidPayload}
	}
	return g.send(ctx, s, to, OutboundMessage{Body: text, MediaUrls: mediaUrls})
}

func (g *Gateway) send(ctx context.Context, s appctx.Session, to Recipient, msg OutboundMessage) Result {
	if !s.Valid() {
		return Result{Error: utils.ErrNotAuthenticated.Error(), Code: CodeNotAuthenticate}
	}
	addr, err := NormalizeAddress(to.Address, g.region)
	if err != nil {
		return Result{Error: err.Error(), Code: CodeInvalidAddress}
	}
	msg.To = addr

	sent, err := g.sender.Send(ctx, msg)
	if err != nil {
		trace.SpanFromContext(ctx).SetStatus(codes.Error, "dispatch failed")
		config.LogError(g.logger, "messaging", "send", "dispatch", logrus.Fields{"to": addr, "retailer_id": s.RetailerId}, err)
		res := Result{Error: err.Error(), Code: CodeTransport, Text: msg.Body}
		var pe *ProviderError
		if errors.As(err, &pe) {
			res.Error = pe.Message
			if pe.Code != 0 {
				res.Code = pe.Code
			}
		}
		return res
	}

	res := Result{Success: true, MessageSid: sent.Sid, Status: sent.Status, Text: msg.Body}
	if g.recorder != nil && to.CustomerId != "" {
		text := msg.Body
		if text == "" {
			text = strings.Join(msg.MediaUrls, "\n")
		}
		if _, rerr := g.recorder.RecordOutbound(ctx, s, to.CustomerId, text, sent.Sid); rerr != nil {
			config.LogError(g.logger, "messaging", "send", "record outbound in inbox", logrus.Fields{"customer_id": to.CustomerId, "sid": sent.Sid}, rerr)
			res.LogError = rerr.Error()
		}
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("message.sid", res.MessageSid),
		attribute.String("message.status", res.Status),
		attribute.Bool("inbox.recorded", res.LogError == ""),
	)
	return res
}
