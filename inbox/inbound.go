package inbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
)

var ErrMessageNotFound = errors.New("message not found")

// InboundMessage is a customer message delivered by the provider webhook.
type InboundMessage struct {
	From       string
	To         string
	Body       string
	MessageSid string
	Timestamp  string
}

type InboundResult struct {
	Conversation *models.Conversation
	Message      *models.Message
	Duplicate    bool
}

// HandleInbound resolves the sender to a known customer and appends the message
// to that customer's conversation. Unknown senders yield ErrCustomerNotFound and
// no writes.
func (s *Synchronizer) HandleInbound(ctx context.Context, in InboundMessage) (*InboundResult, error) {
	from, err := utils.NormalizePhone(in.From, s.region)
	if err != nil {
		return nil, fmt.Errorf("%w: sender %q", ErrCustomerNotFound, in.From)
	}
	customer, retailer, err := s.resolveSender(ctx, from, in.To)
	if err != nil {
		return nil, err
	}

	sess := appctx.SystemSession(retailer.ID, tier.Parse(retailer.Tier))
	ctx = sess.Bind(ctx)
	conv, err := s.FindOrCreateConversation(ctx, sess, customer.ID)
	if err != nil {
		return nil, err
	}
	msg, created, err := s.appendMessage(ctx, sess, conv.ID, in.Body, models.MessageSenderCustomer, in.MessageSid, ParseProviderTimestamp(in.Timestamp))
	if err != nil && msg == nil {
		return nil, err
	}
	return &InboundResult{Conversation: conv, Message: msg, Duplicate: !created}, err
}

// resolveSender looks across tenants, so it runs with the tenant guard off
// until the retailer is known.
func (s *Synchronizer) resolveSender(ctx context.Context, fromE164, to string) (*models.Customer, *models.Retailer, error) {
	unscoped := utils.SetSkipTenantScopeInContext(ctx, true)
	if strings.TrimSpace(to) != "" {
		toE164, err := utils.NormalizePhone(to, s.region)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: recipient %q", ErrCustomerNotFound, to)
		}
		retailer, err := s.retailers.FindRetailerByWhatsappNumber(unscoped, toE164)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, nil, fmt.Errorf("%w: no retailer for %s", ErrCustomerNotFound, toE164)
			}
			return nil, nil, err
		}
		customer, err := s.customers.FindCustomerByPhone(utils.SetRetailerIdInContext(ctx, retailer.ID), retailer.ID, fromE164)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, nil, ErrCustomerNotFound
			}
			return nil, nil, err
		}
		return customer, retailer, nil
	}

	// shared sender number: take the retailer that most recently dealt with this customer
	customers, err := s.customers.FindCustomersByPhone(unscoped, fromE164)
	if err != nil {
		return nil, nil, err
	}
	if len(customers) == 0 {
		return nil, nil, ErrCustomerNotFound
	}
	customer := customers[0]
	retailer, err := s.retailers.GetRetailer(unscoped, customer.RetailerId)
	if err != nil {
		return nil, nil, err
	}
	return &customer, retailer, nil
}

// UpdateMessageStatus applies a provider delivery status. Only forward
// transitions (sent → delivered → read, or sent → failed) are applied; stale or
// repeated callbacks are ignored and reported as unchanged.
func (s *Synchronizer) UpdateMessageStatus(ctx context.Context, providerSid string, status models.MessageStatus) (*models.Message, bool, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	providerSid = strings.TrimSpace(providerSid)
	if providerSid == "" {
		return nil, false, ErrMessageNotFound
	}

	for attempt := 0; attempt < 3; attempt++ {
		m, err := s.store.FindMessageByProviderSid(ctx, "", providerSid)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, false, ErrMessageNotFound
			}
			return nil, false, err
		}
		if !m.Status.CanTransitionTo(status) {
			return m, false, nil
		}
		ok, err := s.store.CompareAndSetMessageStatus(ctx, m.ID, m.Status, status)
		if err != nil {
			return nil, false, err
		}
		if ok {
			m.Status = status
			return m, true, nil
		}
	}
	return nil, false, fmt.Errorf("message %s: status kept changing", providerSid)
}

// ParseProviderTimestamp accepts RFC3339/RFC1123Z strings or unix seconds. Unparseable input yields the zero time.
func ParseProviderTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC()
		}
		return time.Unix(secs, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
