package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrInvalidSender        = errors.New("invalid message sender")
)

const lockTypeConversation = "conversation"

// Locker obtains a best-effort lock and returns its release func.
type Locker func(ctx context.Context, retailerId, lockType, key string) func()

type Synchronizer struct {
	store     Store
	customers CustomerDirectory
	retailers RetailerDirectory
	region    string
	lock      Locker
	now       func() time.Time
	logger    *logrus.Logger
}

type Option func(*Synchronizer)

func WithLocker(l Locker) Option {
	return func(s *Synchronizer) { s.lock = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithRegion(region string) Option {
	return func(s *Synchronizer) { s.region = region }
}

func NewSynchronizer(store Store, customers CustomerDirectory, retailers RetailerDirectory, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		customers: customers,
		retailers: retailers,
		region:    "KE",
		lock:      utils.RetailerLock,
		now:       time.Now,
		logger:    config.GetLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Synchronizer) scope(ctx context.Context, sess appctx.Session) (context.Context, error) {
	if !sess.Valid() {
		return ctx, utils.ErrNotAuthenticated
	}
	return sess.Bind(ctx), nil
}

// FindOrCreateConversation returns the customer's conversation, creating an open
// one when none exists. Concurrent callers converge on a single row: a
// duplicate-key failure on insert is answered by re-reading the winner's row.
func (s *Synchronizer) FindOrCreateConversation(ctx context.Context, sess appctx.Session, customerId string) (*models.Conversation, error) {
	ctx, err := s.scope(ctx, sess)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(customerId) == "" {
		return nil, ErrCustomerNotFound
	}

	c, err := s.store.FindConversationByCustomer(ctx, sess.RetailerId, customerId)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	release := s.lock(ctx, sess.RetailerId, lockTypeConversation, customerId)
	defer release()

	// another holder of the lock may have created it
	if c, err := s.store.FindConversationByCustomer(ctx, sess.RetailerId, customerId); err == nil {
		return c, nil
	}

	now := s.now()
	c = &models.Conversation{
		ID:           uuid.NewString(),
		RetailerId:   sess.RetailerId,
		CustomerId:   customerId,
		Status:       models.ConversationStatusOpen,
		Priority:     models.ConversationPriorityNormal,
		UnreadCount:  0,
		LastActivity: now,
	}
	err = s.store.CreateConversation(ctx, c)
	if err == nil {
		return c, nil
	}
	if !utils.IsDuplicateKey(err) {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	existing, ferr := s.store.FindConversationByCustomer(ctx, sess.RetailerId, customerId)
	if ferr != nil {
		return nil, fmt.Errorf("re-fetch conversation after duplicate: %w", ferr)
	}
	return existing, nil
}

// AppendMessage stores a message in the conversation and then refreshes the
// conversation summary. Customer messages add one to the unread count.
// A repeated providerSid returns the already stored message unchanged.
func (s *Synchronizer) AppendMessage(ctx context.Context, sess appctx.Session, conversationId, text string, sender models.MessageSender, providerSid string) (*models.Message, error) {
	m, _, err := s.appendMessage(ctx, sess, conversationId, text, sender, providerSid, time.Time{})
	return m, err
}

func (s *Synchronizer) appendMessage(ctx context.Context, sess appctx.Session, conversationId, text string, sender models.MessageSender, providerSid string, at time.Time) (*models.Message, bool, error) {
	ctx, err := s.scope(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	if !sender.IsValid() {
		return nil, false, ErrInvalidSender
	}
	if strings.TrimSpace(text) == "" {
		return nil, false, ErrEmptyMessage
	}
	if _, err := s.store.GetConversation(ctx, sess.RetailerId, conversationId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, false, ErrConversationNotFound
		}
		return nil, false, err
	}

	now := s.now()
	if at.IsZero() {
		at = now
	}
	m := &models.Message{
		ID:             uuid.NewString(),
		RetailerId:     sess.RetailerId,
		ConversationId: conversationId,
		Text:           text,
		Sender:         sender,
		Status:         models.MessageStatusSent,
		Timestamp:      at,
	}
	if sid := strings.TrimSpace(providerSid); sid != "" {
		m.ProviderSid = &sid
	}

	if err := s.store.CreateMessage(ctx, m); err != nil {
		if m.ProviderSid != nil && utils.IsDuplicateKey(err) {
			existing, ferr := s.store.FindMessageByProviderSid(ctx, sess.RetailerId, *m.ProviderSid)
			if ferr != nil {
				return nil, false, fmt.Errorf("re-fetch message after duplicate: %w", ferr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create message: %w", err)
	}

	delta := 0
	if sender == models.MessageSenderCustomer {
		delta = 1
	}
	if err := s.store.UpdateConversationSummary(ctx, sess.RetailerId, conversationId, text, now, delta); err != nil {
		// the message is stored; Resync rebuilds the summary
		return m, true, fmt.Errorf("update conversation summary: %w", err)
	}
	return m, true, nil
}

// RecordOutbound threads an agent message that was already sent to the customer.
func (s *Synchronizer) RecordOutbound(ctx context.Context, sess appctx.Session, customerId, text, providerSid string) (*models.Message, error) {
	c, err := s.FindOrCreateConversation(ctx, sess, customerId)
	if err != nil {
		return nil, err
	}
	return s.AppendMessage(ctx, sess, c.ID, text, models.MessageSenderAgent, providerSid)
}

// MarkRead clears the unread count and marks the customer's messages read.
func (s *Synchronizer) MarkRead(ctx context.Context, sess appctx.Session, conversationId string) (*models.Conversation, error) {
	ctx, err := s.scope(ctx, sess)
	if err != nil {
		return nil, err
	}
	c, err := s.getConversation(ctx, sess, conversationId)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkCustomerMessagesRead(ctx, sess.RetailerId, conversationId); err != nil {
		return nil, err
	}
	if err := s.store.SetConversationSummary(ctx, sess.RetailerId, conversationId, c.LastMessage, c.LastActivity, 0); err != nil {
		return nil, err
	}
	c.UnreadCount = 0
	return c, nil
}

// Resync rebuilds the summary fields from the stored messages.
func (s *Synchronizer) Resync(ctx context.Context, sess appctx.Session, conversationId string) (*models.Conversation, error) {
	ctx, err := s.scope(ctx, sess)
	if err != nil {
		return nil, err
	}
	c, err := s.getConversation(ctx, sess, conversationId)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, sess.RetailerId, conversationId, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return c, nil
	}

	last := msgs[0]
	unread := 0
	for _, m := range msgs {
		if m.Timestamp.After(last.Timestamp) || (m.Timestamp.Equal(last.Timestamp) && m.CreatedAt.After(last.CreatedAt)) {
			last = m
		}
		if m.Sender == models.MessageSenderCustomer && m.Status != models.MessageStatusRead {
			unread++
		}
	}
	lastActivity := c.LastActivity
	if last.Timestamp.After(lastActivity) {
		lastActivity = last.Timestamp
	}
	if err := s.store.SetConversationSummary(ctx, sess.RetailerId, conversationId, last.Text, lastActivity, unread); err != nil {
		return nil, err
	}
	c.LastMessage = last.Text
	c.LastActivity = lastActivity
	c.UnreadCount = unread
	return c, nil
}

// ResyncAll rebuilds every conversation of the session's retailer and returns how many changed.
func (s *Synchronizer) ResyncAll(ctx context.Context, sess appctx.Session) (int, error) {
	if !sess.Valid() {
		return 0, utils.ErrNotAuthenticated
	}
	convs, err := s.store.ListConversations(sess.Bind(ctx), sess.RetailerId, models.ConversationFilter{})
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, before := range convs {
		after, err := s.Resync(ctx, sess, before.ID)
		if err != nil {
			config.LogError(s.logger, "inbox", "ResyncAll", "resync conversation", before.ID, err)
			continue
		}
		if after.LastMessage != before.LastMessage || after.UnreadCount != before.UnreadCount || !after.LastActivity.Equal(before.LastActivity) {
			changed++
		}
	}
	return changed, nil
}

func (s *Synchronizer) ListConversations(ctx context.Context, sess appctx.Session, filter models.ConversationFilter) ([]models.ConversationView, error) {
	ctx, err := s.scope(ctx, sess)
	if err != nil {
		return nil, err
	}
	convs, err := s.store.ListConversations(ctx, sess.RetailerId, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.CustomerId)
	}
	customers, err := s.customers.GetCustomers(ctx, sess.RetailerId, utils.UniqueSlice(ids))
	if err != nil {
		return nil, err
	}
	byId := make(map[string]*models.Customer, len(customers))
	for i := range customers {
		byId[customers[i].ID] = &customers[i]
	}
	views := make([]models.ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, models.ConversationViewFrom(c, byId[c.CustomerId]))
	}
	return views, nil
}

func (s *Synchronizer) ListMessages(ctx context.Context, sess appctx.Session, conversationId string, limit int) ([]models.Message, error) {
	ctx, err := s.scope(ctx, sess)
	if err != nil {
		return nil, err
	}
	if _, err := s.getConversation(ctx, sess, conversationId); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sess.RetailerId, conversationId, limit)
}

func (s *Synchronizer) getConversation(ctx context.Context, sess appctx.Session, id string) (*models.Conversation, error) {
	c, err := s.store.GetConversation(ctx, sess.RetailerId, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	return c, err
}
