package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID                string          `gorm:"primary_key;size:36" json:"id"`
	RetailerId        string          `gorm:"size:36;not null;index:uniq_sale_client_ref,unique;index:idx_sale_status,priority:1" json:"retailer_id"`
	CustomerId        string          `gorm:"size:36;not null;index" json:"customer_id"`
	ClientRef         string          `gorm:"size:64;not null;index:uniq_sale_client_ref,unique" json:"client_ref"`
	CustomerName      string          `gorm:"size:100;not null" json:"customer_name"`
	CustomerPhone     string          `gorm:"size:20;not null" json:"customer_phone"`
	Items             []SaleItem      `gorm:"foreignKey:SaleId" json:"items"`
	Surcharge         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"surcharge"`
	Total             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	Timestamp         time.Time       `gorm:"not null" json:"timestamp"`
	Status            SaleStatus      `gorm:"type:enum('in_progress','completed');not null;default:'in_progress';index:idx_sale_status,priority:2" json:"status"`
	ReceiptStatus     ReceiptStatus   `gorm:"type:enum('pending','sent','failed','skipped');not null;default:'pending'" json:"receipt_status"`
	ReceiptMessageSid *string         `gorm:"size:64;default:null" json:"receipt_message_sid"`
	ReceiptError      string          `gorm:"type:text" json:"receipt_error"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	SaleId     string          `gorm:"size:36;not null;index" json:"sale_id"`
	ItemRef    string          `gorm:"size:36;not null" json:"item_ref"`
	Name       string          `gorm:"size:150;not null" json:"name"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	LineAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_amount"`
}

// ComputeTotal returns Σ(unitPrice × quantity) plus the surcharge.
func (s Sale) ComputeTotal() decimal.Decimal {
	total := s.Surcharge
	for _, it := range s.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type SaleFilter struct {
	Status        SaleStatus
	ReceiptStatus ReceiptStatus
	From          *time.Time
	To            *time.Time
	Limit         int
}

// SaleSummary is the dashboard/export projection of a Sale.
type SaleSummary struct {
	ID            string          `json:"id"`
	ClientRef     string          `json:"client_ref"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	ItemCount     int             `json:"item_count"`
	Total         decimal.Decimal `json:"total"`
	Timestamp     time.Time       `json:"timestamp"`
	Status        SaleStatus      `json:"status"`
	ReceiptStatus ReceiptStatus   `json:"receipt_status"`
}

func SaleSummaryFromSale(s Sale) SaleSummary {
	count := 0
	for _, it := range s.Items {
		count += it.Quantity
	}
	return SaleSummary{
		ID:            s.ID,
		ClientRef:     s.ClientRef,
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
		ItemCount:     count,
		Total:         s.Total,
		Timestamp:     s.Timestamp,
		Status:        s.Status,
		ReceiptStatus: s.ReceiptStatus,
	}
}
