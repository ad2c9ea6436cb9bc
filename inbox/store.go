package inbox

import (
	"context"
	"time"

	"github.com/dukaflow/retailer_backend/models"
)

// Store persists conversations and messages. Implementations return
// utils.ErrorRecordNotFound for missing rows and utils.ErrDuplicateKey for
// unique-index violations.
type Store interface {
	FindConversationByCustomer(ctx context.Context, retailerId, customerId string) (*models.Conversation, error)
	GetConversation(ctx context.Context, retailerId, id string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, c *models.Conversation) error
	ListConversations(ctx context.Context, retailerId string, filter models.ConversationFilter) ([]models.Conversation, error)

	// UpdateConversationSummary sets last_message and last_activity and adds
	// unreadDelta to unread_count in a single statement.
	UpdateConversationSummary(ctx context.Context, retailerId, id, lastMessage string, lastActivity time.Time, unreadDelta int) error
	SetConversationSummary(ctx context.Context, retailerId, id, lastMessage string, lastActivity time.Time, unreadCount int) error

	CreateMessage(ctx context.Context, m *models.Message) error
	// FindMessageByProviderSid searches every retailer when retailerId is empty.
	FindMessageByProviderSid(ctx context.Context, retailerId, providerSid string) (*models.Message, error)
	ListMessages(ctx context.Context, retailerId, conversationId string, limit int) ([]models.Message, error)

	// CompareAndSetMessageStatus updates status only if it still equals from.
	CompareAndSetMessageStatus(ctx context.Context, id string, from, to models.MessageStatus) (bool, error)
	MarkCustomerMessagesRead(ctx context.Context, retailerId, conversationId string) error
}

type CustomerDirectory interface {
	FindCustomerByPhone(ctx context.Context, retailerId, phoneE164 string) (*models.Customer, error)
	// FindCustomersByPhone searches every retailer, most recently updated first.
	FindCustomersByPhone(ctx context.Context, phoneE164 string) ([]models.Customer, error)
	GetCustomers(ctx context.Context, retailerId string, ids []string) ([]models.Customer, error)
}

type RetailerDirectory interface {
	GetRetailer(ctx context.Context, id string) (*models.Retailer, error)
	FindRetailerByWhatsappNumber(ctx context.Context, phoneE164 string) (*models.Retailer, error)
}
