package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
)

// MemoryStore keeps every table in process memory. It enforces the same unique
// keys as the MySQL schema and is used for local demos and tests.
type MemoryStore struct {
	mu            sync.Mutex
	retailers     map[string]models.Retailer
	customers     map[string]models.Customer
	conversations map[string]models.Conversation
	messages      map[string]models.Message
	sales         map[string]models.Sale
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		retailers:     make(map[string]models.Retailer),
		customers:     make(map[string]models.Customer),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string]models.Message),
		sales:         make(map[string]models.Sale),
		now:           time.Now,
	}
}

func (s *MemoryStore) stamp(created, updated *time.Time) {
	now := s.now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

/* retailers */

func (s *MemoryStore) CreateRetailer(_ context.Context, r *models.Retailer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.retailers[r.ID]; ok {
		return utils.ErrDuplicateKey
	}
	for _, other := range s.retailers {
		if r.WhatsappNumber != "" && other.WhatsappNumber == r.WhatsappNumber {
			return utils.ErrDuplicateKey
		}
	}
	s.stamp(&r.CreatedAt, &r.UpdatedAt)
	s.retailers[r.ID] = *r
	return nil
}

func (s *MemoryStore) GetRetailer(_ context.Context, id string) (*models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retailers[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return &r, nil
}

func (s *MemoryStore) FindRetailerByWhatsappNumber(_ context.Context, phoneE164 string) (*models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retailers {
		if r.WhatsappNumber == phoneE164 {
			return &r, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

/* customers */

func (s *MemoryStore) CreateCustomer(_ context.Context, c *models.Customer) error {
	if err := c.Prepare(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return utils.ErrDuplicateKey
	}
	for _, other := range s.customers {
		if other.RetailerId == c.RetailerId && other.PhoneE164 == c.PhoneE164 {
			return utils.ErrDuplicateKey
		}
	}
	s.stamp(&c.CreatedAt, &c.UpdatedAt)
	s.customers[c.ID] = *c
	return nil
}

func (s *MemoryStore) GetCustomer(_ context.Context, retailerId, id string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok || c.RetailerId != retailerId {
		return nil, utils.ErrorRecordNotFound
	}
	return &c, nil
}

func (s *MemoryStore) FindCustomerByPhone(_ context.Context, retailerId, phoneE164 string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		if c.RetailerId == retailerId && c.PhoneE164 == phoneE164 {
			return &c, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *MemoryStore) FindCustomersByPhone(_ context.Context, phoneE164 string) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Customer
	for _, c := range s.customers {
		if c.PhoneE164 == phoneE164 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) GetCustomers(_ context.Context, retailerId string, ids []string) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Customer, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.customers[id]; ok && c.RetailerId == retailerId {
			out = append(out, c)
		}
	}
	return out, nil
}

/* conversations */

func (s *MemoryStore) FindConversationByCustomer(_ context.Context, retailerId, customerId string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.RetailerId == retailerId && c.CustomerId == customerId {
			return &c, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *MemoryStore) GetConversation(_ context.Context, retailerId, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.RetailerId != retailerId {
		return nil, utils.ErrorRecordNotFound
	}
	return &c, nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[c.ID]; ok {
		return utils.ErrDuplicateKey
	}
	for _, other := range s.conversations {
		if other.RetailerId == c.RetailerId && other.CustomerId == c.CustomerId {
			return utils.ErrDuplicateKey
		}
	}
	s.stamp(&c.CreatedAt, &c.UpdatedAt)
	s.conversations[c.ID] = *c
	return nil
}

func (s *MemoryStore) ListConversations(_ context.Context, retailerId string, filter models.ConversationFilter) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if c.RetailerId != retailerId {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.UnreadOnly && c.UnreadCount == 0 {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateConversationSummary(_ context.Context, retailerId, id, lastMessage string, lastActivity time.Time, unreadDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.RetailerId != retailerId {
		return utils.ErrorRecordNotFound
	}
	c.LastMessage = lastMessage
	c.LastActivity = lastActivity
	c.UnreadCount += unreadDelta
	c.UpdatedAt = s.now()
	s.conversations[id] = c
	return nil
}

func (s *MemoryStore) SetConversationSummary(_ context.Context, retailerId, id, lastMessage string, lastActivity time.Time, unreadCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.RetailerId != retailerId {
		return utils.ErrorRecordNotFound
	}
	c.LastMessage = lastMessage
	c.LastActivity = lastActivity
	c.UnreadCount = unreadCount
	c.UpdatedAt = s.now()
	s.conversations[id] = c
	return nil
}

/* messages */

func (s *MemoryStore) CreateMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return utils.ErrDuplicateKey
	}
	if m.ProviderSid != nil {
		for _, other := range s.messages {
			if other.RetailerId == m.RetailerId && other.ProviderSid != nil && *other.ProviderSid == *m.ProviderSid {
				return utils.ErrDuplicateKey
			}
		}
	}
	s.stamp(&m.CreatedAt, &m.UpdatedAt)
	s.messages[m.ID] = *m
	return nil
}

func (s *MemoryStore) FindMessageByProviderSid(_ context.Context, retailerId, providerSid string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ProviderSid == nil || *m.ProviderSid != providerSid {
			continue
		}
		if retailerId != "" && m.RetailerId != retailerId {
			continue
		}
		return &m, nil
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *MemoryStore) ListMessages(_ context.Context, retailerId, conversationId string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.RetailerId == retailerId && m.ConversationId == conversationId {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) CompareAndSetMessageStatus(_ context.Context, id string, from, to models.MessageStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return false, utils.ErrorRecordNotFound
	}
	if m.Status != from {
		return false, nil
	}
	m.Status = to
	m.UpdatedAt = s.now()
	s.messages[id] = m
	return true, nil
}

func (s *MemoryStore) MarkCustomerMessagesRead(_ context.Context, retailerId, conversationId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.RetailerId != retailerId || m.ConversationId != conversationId || m.Sender != models.MessageSenderCustomer {
			continue
		}
		if m.Status == models.MessageStatusSent || m.Status == models.MessageStatusDelivered {
			m.Status = models.MessageStatusRead
			m.UpdatedAt = s.now()
			s.messages[id] = m
		}
	}
	return nil
}

/* sales */

func cloneSale(sale models.Sale) models.Sale {
	items := make([]models.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	sale.Items = items
	return sale
}

func (s *MemoryStore) CreateSale(_ context.Context, sale *models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[sale.ID]; ok {
		return utils.ErrDuplicateKey
	}
	for _, other := range s.sales {
		if other.RetailerId == sale.RetailerId && other.ClientRef == sale.ClientRef {
			return utils.ErrDuplicateKey
		}
	}
	for i := range sale.Items {
		sale.Items[i].ID = i + 1
		sale.Items[i].SaleId = sale.ID
	}
	s.stamp(&sale.CreatedAt, &sale.UpdatedAt)
	s.sales[sale.ID] = cloneSale(*sale)
	return nil
}

func (s *MemoryStore) GetSale(_ context.Context, retailerId, id string) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok || sale.RetailerId != retailerId {
		return nil, utils.ErrorRecordNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *MemoryStore) FindSaleByClientRef(_ context.Context, retailerId, clientRef string) (*models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sale := range s.sales {
		if sale.RetailerId == retailerId && sale.ClientRef == clientRef {
			out := cloneSale(sale)
			return &out, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *MemoryStore) UpdateSaleReceipt(_ context.Context, retailerId, id string, status models.ReceiptStatus, messageSid *string, receiptError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok || sale.RetailerId != retailerId {
		return utils.ErrorRecordNotFound
	}
	sale.ReceiptStatus = status
	sale.ReceiptMessageSid = messageSid
	sale.ReceiptError = receiptError
	sale.UpdatedAt = s.now()
	s.sales[id] = sale
	return nil
}

func (s *MemoryStore) ReviseSale(_ context.Context, sale *models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sales[sale.ID]
	if !ok || stored.RetailerId != sale.RetailerId || stored.Status != models.SaleStatusInProgress {
		return utils.ErrorRecordNotFound
	}
	for i := range sale.Items {
		sale.Items[i].ID = i + 1
		sale.Items[i].SaleId = sale.ID
	}
	stored.CustomerId = sale.CustomerId
	stored.CustomerName = sale.CustomerName
	stored.CustomerPhone = sale.CustomerPhone
	stored.Surcharge = sale.Surcharge
	stored.Total = sale.Total
	stored.Timestamp = sale.Timestamp
	stored.Items = sale.Items
	stored.ReceiptStatus = sale.ReceiptStatus
	stored.ReceiptMessageSid = sale.ReceiptMessageSid
	stored.ReceiptError = sale.ReceiptError
	stored.UpdatedAt = s.now()
	s.sales[sale.ID] = cloneSale(stored)
	return nil
}

func (s *MemoryStore) MarkSaleCompleted(_ context.Context, retailerId, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok || sale.RetailerId != retailerId {
		return utils.ErrorRecordNotFound
	}
	sale.Status = models.SaleStatusCompleted
	sale.UpdatedAt = s.now()
	s.sales[id] = sale
	return nil
}

func (s *MemoryStore) ListSales(_ context.Context, retailerId string, filter models.SaleFilter) ([]models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Sale
	for _, sale := range s.sales {
		if sale.RetailerId != retailerId {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if filter.ReceiptStatus != "" && sale.ReceiptStatus != filter.ReceiptStatus {
			continue
		}
		if filter.From != nil && sale.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.Timestamp.Before(*filter.To) {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListRetailers returns every retailer; used by ops tools.
func (s *MemoryStore) ListRetailers(_ context.Context) ([]models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Retailer, 0, len(s.retailers))
	for _, r := range s.retailers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
