package models

import (
	"time"
)

type Retailer struct {
	ID             string    `gorm:"primary_key;size:36" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	WhatsappNumber string    `gorm:"size:20;uniqueIndex" json:"whatsapp_number"`
	Tier           string    `gorm:"size:20;not null;default:'basic'" json:"tier"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
