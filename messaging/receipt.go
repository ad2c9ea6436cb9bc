package messaging

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	receiptRule   = "------------------------------"
	receiptFooter = "Thank you for shopping with us!"
)

type ReceiptLine struct {
	Name      string          `json:"name" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
}

// Qty treats a missing quantity as one unit.
func (l ReceiptLine) Qty() int {
	if l.Quantity <= 0 {
		return 1
	}
	return l.Quantity
}

func (l ReceiptLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty())))
}

type ReceiptPayload struct {
	StoreName     string          `json:"store_name" validate:"required"`
	ReceiptNumber string          `json:"receipt_number"`
	Date          time.Time       `json:"date"`
	Items         []ReceiptLine   `json:"items" validate:"required,min=1,dive"`
	Total         decimal.Decimal `json:"total" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func ValidateReceipt(p ReceiptPayload) error {
	p.StoreName = strings.TrimSpace(p.StoreName)
	items := make([]ReceiptLine, len(p.Items))
	for i, it := range p.Items {
		it.Name = strings.TrimSpace(it.Name)
		items[i] = it
	}
	p.Items = items
	return validate.Struct(p)
}

// FormatReceipt renders p as WhatsApp text. The output depends only on p.
func FormatReceipt(p ReceiptPayload) string {
	var b strings.Builder
	b.WriteString("*" + strings.TrimSpace(p.StoreName) + "*\n")
	if n := strings.TrimSpace(p.ReceiptNumber); n != "" {
		b.WriteString("Receipt #" + n + "\n")
	}
	if !p.Date.IsZero() {
		b.WriteString("Date: " + utils.FormatReceiptTime(p.Date) + "\n")
	}
	b.WriteString(receiptRule + "\n")
	for _, it := range p.Items {
		b.WriteString(strings.TrimSpace(it.Name))
		b.WriteString(" × " + strconv.Itoa(it.Qty()))
		b.WriteString(" — " + utils.FormatReceiptAmount(it.Amount()) + "\n")
	}
	b.WriteString(receiptRule + "\n")
	b.WriteString("TOTAL: " + utils.FormatReceiptAmount(p.Total) + "\n")
	b.WriteString(receiptFooter)
	return b.String()
}

// ReceiptFromSale builds the receipt for a persisted sale.
func ReceiptFromSale(storeName string, s models.Sale) ReceiptPayload {
	lines := make([]ReceiptLine, 0, len(s.Items))
	for _, it := range s.Items {
		lines = append(lines, ReceiptLine{Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return ReceiptPayload{
		StoreName:     storeName,
		ReceiptNumber: ReceiptNumber(s),
		Date:          s.Timestamp,
		Items:         lines,
		Total:         s.Total,
	}
}

// ReceiptNumber is a short customer-facing reference derived from the sale id.
func ReceiptNumber(s models.Sale) string {
	id := strings.ToUpper(strings.ReplaceAll(s.ID, "-", ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}
