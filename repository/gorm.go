package repository

import (
	"context"
	"time"

	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the MySQL implementation of the inbox, checkout and directory stores.
// Every retailer-scoped query names retailer_id explicitly; the tenant guard
// plugin adds it as well when a session is bound to ctx.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		return nil, utils.NormalizeDbError(err)
	}
	return &out, nil
}

/* retailers */

func (s *GormStore) CreateRetailer(ctx context.Context, r *models.Retailer) error {
	return utils.NormalizeDbError(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) UpdateRetailer(ctx context.Context, r *models.Retailer) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return utils.NormalizeDbError(err)
	}
	return utils.InvalidateCache[models.Retailer](ctx, r.ID)
}

// GetRetailer is read on every webhook and checkout, so it goes through the Redis cache.
func (s *GormStore) GetRetailer(ctx context.Context, id string) (*models.Retailer, error) {
	return utils.CachedFetch(ctx, id, func(ctx context.Context) (*models.Retailer, error) {
		return first[models.Retailer](s.db.WithContext(ctx).Where("id = ?", id))
	})
}

func (s *GormStore) FindRetailerByWhatsappNumber(ctx context.Context, phoneE164 string) (*models.Retailer, error) {
	return first[models.Retailer](s.db.WithContext(ctx).Where("whatsapp_number = ?", phoneE164))
}

func (s *GormStore) ListRetailers(ctx context.Context) ([]models.Retailer, error) {
	var out []models.Retailer
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

/* customers */

func (s *GormStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	return utils.NormalizeDbError(s.db.WithContext(ctx).Create(c).Error)
}

func (s *GormStore) GetCustomer(ctx context.Context, retailerId, id string) (*models.Customer, error) {
	return first[models.Customer](s.db.WithContext(ctx).Where("retailer_id = ? AND id = ?", retailerId, id))
}

func (s *GormStore) FindCustomerByPhone(ctx context.Context, retailerId, phoneE164 string) (*models.Customer, error) {
	return first[models.Customer](s.db.WithContext(ctx).Where("retailer_id = ? AND phone_e164 = ?", retailerId, phoneE164))
}

func (s *GormStore) FindCustomersByPhone(ctx context.Context, phoneE164 string) ([]models.Customer, error) {
	var out []models.Customer
	err := s.db.WithContext(ctx).
		Where("phone_e164 = ?", phoneE164).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) GetCustomers(ctx context.Context, retailerId string, ids []string) ([]models.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Customer
	err := s.db.WithContext(ctx).Where("retailer_id = ? AND id IN ?", retailerId, ids).Find(&out).Error
	return out, err
}

/* conversations */

func (s *GormStore) FindConversationByCustomer(ctx context.Context, retailerId, customerId string) (*models.Conversation, error) {
	return first[models.Conversation](s.db.WithContext(ctx).Where("retailer_id = ? AND customer_id = ?", retailerId, customerId))
}

func (s *GormStore) GetConversation(ctx context.Context, retailerId, id string) (*models.Conversation, error) {
	return first[models.Conversation](s.db.WithContext(ctx).Where("retailer_id = ? AND id = ?", retailerId, id))
}

func (s *GormStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	return utils.NormalizeDbError(s.db.WithContext(ctx).Create(c).Error)
}

func (s *GormStore) ListConversations(ctx context.Context, retailerId string, filter models.ConversationFilter) ([]models.Conversation, error) {
	q := s.db.WithContext(ctx).Where("retailer_id = ?", retailerId)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UnreadOnly {
		q = q.Where("unread_count > 0")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []models.Conversation
	err := q.Order("last_activity DESC").Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateConversationSummary(ctx context.Context, retailerId, id, lastMessage string, lastActivity time.Time, unreadDelta int) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("retailer_id = ? AND id = ?", retailerId, id).
		Updates(map[string]interface{}{
			"last_message":  lastMessage,
			"last_activity": lastActivity,
			"unread_count":  gorm.Expr("unread_count + ?", unreadDelta),
		}).Error
}

func (s *GormStore) SetConversationSummary(ctx context.Context, retailerId, id, lastMessage string, lastActivity time.Time, unreadCount int) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("retailer_id = ? AND id = ?", retailerId, id).
		Updates(map[string]interface{}{
			"last_message":  lastMessage,
			"last_activity": lastActivity,
			"unread_count":  unreadCount,
		}).Error
}

/* messages */

func (s *GormStore) CreateMessage(ctx context.Context, m *models.Message) error {
	return utils.NormalizeDbError(s.db.WithContext(ctx).Create(m).Error)
}

func (s *GormStore) FindMessageByProviderSid(ctx context.Context, retailerId, providerSid string) (*models.Message, error) {
	q := s.db.WithContext(ctx).Where("provider_sid = ?", providerSid)
	if retailerId != "" {
		q = q.Where("retailer_id = ?", retailerId)
	}
	return first[models.Message](q)
}

func (s *GormStore) ListMessages(ctx context.Context, retailerId, conversationId string, limit int) ([]models.Message, error) {
	q := s.db.WithContext(ctx).Where("retailer_id = ? AND conversation_id = ?", retailerId, conversationId)
	var out []models.Message
	if limit > 0 {
		// newest page, returned oldest first
		if err := q.Order("timestamp DESC, created_at DESC").Limit(limit).Find(&out).Error; err != nil {
			return nil, err
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	}
	err := q.Order("timestamp ASC, created_at ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) CompareAndSetMessageStatus(ctx context.Context, id string, from, to models.MessageStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkCustomerMessagesRead(ctx context.Context, retailerId, conversationId string) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("retailer_id = ? AND conversation_id = ? AND sender = ? AND status IN ?",
			retailerId, conversationId, models.MessageSenderCustomer,
			[]models.MessageStatus{models.MessageStatusSent, models.MessageStatusDelivered}).
		Update("status", models.MessageStatusRead).Error
}

/* sales */

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (s *GormStore) CreateSale(ctx context.Context, sale *models.Sale) error {
	return utils.NormalizeDbError(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(sale).Error
	}))
}

func (s *GormStore) GetSale(ctx context.Context, retailerId, id string) (*models.Sale, error) {
	return first[models.Sale](s.db.WithContext(ctx).Preload("Items", orderedItems).Where("retailer_id = ? AND id = ?", retailerId, id))
}

func (s *GormStore) FindSaleByClientRef(ctx context.Context, retailerId, clientRef string) (*models.Sale, error) {
	return first[models.Sale](s.db.WithContext(ctx).Preload("Items", orderedItems).Where("retailer_id = ? AND client_ref = ?", retailerId, clientRef))
}

func (s *GormStore) UpdateSaleReceipt(ctx context.Context, retailerId, id string, status models.ReceiptStatus, messageSid *string, receiptError string) error {
	return s.db.WithContext(ctx).Model(&models.Sale{}).
		Where("retailer_id = ? AND id = ?", retailerId, id).
		Updates(map[string]interface{}{
			"receipt_status":      status,
			"receipt_message_sid": messageSid,
			"receipt_error":       receiptError,
		}).Error
}

// ReviseSale rewrites an in_progress sale and swaps its items in one transaction.
func (s *GormStore) ReviseSale(ctx context.Context, sale *models.Sale) error {
	return utils.NormalizeDbError(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Sale{}).
			Where("retailer_id = ? AND id = ? AND status = ?", sale.RetailerId, sale.ID, models.SaleStatusInProgress).
			Updates(map[string]interface{}{
				"customer_id":         sale.CustomerId,
				"customer_name":       sale.CustomerName,
				"customer_phone":      sale.CustomerPhone,
				"surcharge":           sale.Surcharge,
				"total":               sale.Total,
				"timestamp":           sale.Timestamp,
				"receipt_status":      sale.ReceiptStatus,
				"receipt_message_sid": sale.ReceiptMessageSid,
				"receipt_error":       sale.ReceiptError,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorRecordNotFound
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleItem{}).Error; err != nil {
			return err
		}
		for i := range sale.Items {
			sale.Items[i].ID = 0
			sale.Items[i].SaleId = sale.ID
		}
		if len(sale.Items) == 0 {
			return nil
		}
		return tx.Create(&sale.Items).Error
	}))
}

func (s *GormStore) MarkSaleCompleted(ctx context.Context, retailerId, id string) error {
	return s.db.WithContext(ctx).Model(&models.Sale{}).
		Where("retailer_id = ? AND id = ?", retailerId, id).
		Update("status", models.SaleStatusCompleted).Error
}

func (s *GormStore) ListSales(ctx context.Context, retailerId string, filter models.SaleFilter) ([]models.Sale, error) {
	q := s.db.WithContext(ctx).Preload("Items", orderedItems).Where("retailer_id = ?", retailerId)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ReceiptStatus != "" {
		q = q.Where("receipt_status = ?", filter.ReceiptStatus)
	}
	if filter.From != nil {
		q = q.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("timestamp < ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []models.Sale
	err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).Find(&out).Error
	return out, err
}
