package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID         string    `gorm:"primary_key;size:36" json:"id"`
	RetailerId string    `gorm:"size:36;not null;index:uniq_customer_phone,unique" json:"retailer_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Phone      string    `gorm:"size:30;not null" json:"phone"`
	PhoneE164  string    `gorm:"size:20;not null;index:uniq_customer_phone,unique" json:"phone_e164"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Prepare trims input and derives PhoneE164. Called by the gorm hook and by the in-memory store.
func (c *Customer) Prepare() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	e164, err := utils.NormalizePhone(c.Phone, config.DefaultPhoneRegion())
	if err != nil {
		return fmt.Errorf("customer phone %q: %w", c.Phone, err)
	}
	c.PhoneE164 = e164
	return nil
}

func (c *Customer) BeforeSave(tx *gorm.DB) error {
	return c.Prepare()
}
