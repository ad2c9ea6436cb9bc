package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSale_ComputeTotalAndSummary(t *testing.T) {
	s := Sale{
		ID:           "s1",
		CustomerName: "Jane",
		Surcharge:    decimal.NewFromInt(50),
		Items: []SaleItem{
			{Name: "Dress", UnitPrice: decimal.NewFromInt(1000), Quantity: 2},
			{Name: "Scarf", UnitPrice: decimal.RequireFromString("249.50"), Quantity: 1},
		},
	}
	if got := s.ComputeTotal(); !got.Equal(decimal.RequireFromString("2299.50")) {
		t.Fatalf("expected 2299.50, got %s", got)
	}

	s.Total = s.ComputeTotal()
	sum := SaleSummaryFromSale(s)
	if sum.ItemCount != 3 {
		t.Fatalf("expected 3 units, got %d", sum.ItemCount)
	}
	if !sum.Total.Equal(s.Total) || sum.CustomerName != "Jane" {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestCustomer_PrepareNormalizesPhone(t *testing.T) {
	c := Customer{RetailerId: "r1", Name: "  Jane ", Phone: " 0700000000 "}
	if err := c.Prepare(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PhoneE164 != "+254700000000" || c.Name != "Jane" || c.ID == "" {
		t.Fatalf("unexpected customer: %+v", c)
	}

	bad := Customer{RetailerId: "r1", Name: "X", Phone: "nope"}
	if err := bad.Prepare(); err == nil {
		t.Fatalf("expected error for invalid phone")
	}
}
