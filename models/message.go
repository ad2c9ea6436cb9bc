package models

import (
	"time"
)

type Message struct {
	ID             string        `gorm:"primary_key;size:36" json:"id"`
	RetailerId     string        `gorm:"size:36;not null;index:uniq_message_provider_sid,unique" json:"retailer_id"`
	ConversationId string        `gorm:"size:36;not null;index:idx_message_conversation,priority:1" json:"conversation_id"`
	Text           string        `gorm:"type:text;not null" json:"text"`
	Sender         MessageSender `gorm:"type:enum('customer','agent');not null" json:"sender"`
	Status         MessageStatus `gorm:"type:enum('sent','delivered','read','failed');not null;default:'sent'" json:"status"`
	ProviderSid    *string       `gorm:"size:64;default:null;index:uniq_message_provider_sid,unique" json:"provider_sid"`
	Timestamp      time.Time     `gorm:"not null;index:idx_message_conversation,priority:2" json:"timestamp"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}
