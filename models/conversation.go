package models

import (
	"time"
)

type Conversation struct {
	ID           string               `gorm:"primary_key;size:36" json:"id"`
	RetailerId   string               `gorm:"size:36;not null;index:uniq_conversation_customer,unique;index:idx_conversation_activity,priority:1" json:"retailer_id"`
	CustomerId   string               `gorm:"size:36;not null;index:uniq_conversation_customer,unique" json:"customer_id"`
	Status       ConversationStatus   `gorm:"type:enum('open','closed','pending');not null;default:'open'" json:"status"`
	Priority     ConversationPriority `gorm:"type:enum('low','normal','high');not null;default:'normal'" json:"priority"`
	LastMessage  string               `gorm:"type:text" json:"last_message"`
	UnreadCount  int                  `gorm:"not null;default:0" json:"unread_count"`
	LastActivity time.Time            `gorm:"not null;index:idx_conversation_activity,priority:2" json:"last_activity"`
	AssignedTo   *string              `gorm:"size:36;default:null" json:"assigned_to"`
	CreatedAt    time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type ConversationFilter struct {
	Status     ConversationStatus
	UnreadOnly bool
	Limit      int
}

// ConversationView is the inbox list projection.
type ConversationView struct {
	Conversation
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

func ConversationViewFrom(c Conversation, customer *Customer) ConversationView {
	v := ConversationView{Conversation: c}
	if customer != nil {
		v.CustomerName = customer.Name
		v.CustomerPhone = customer.PhoneE164
	}
	return v
}
