package pos

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func sumRows(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func TestCart_AddItem_RejectsInvalidInput(t *testing.T) {
	c := NewCart()
	cases := []struct {
		name  string
		price decimal.Decimal
	}{
		{"", decimal.NewFromInt(100)},
		{"   ", decimal.NewFromInt(100)},
		{"Dress", decimal.Zero},
		{"Dress", decimal.NewFromInt(-5)},
	}
	for _, tc := range cases {
		if _, ok := c.AddItem(tc.name, tc.price); ok {
			t.Fatalf("AddItem(%q, %s) expected rejection", tc.name, tc.price)
		}
	}
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart, got %d rows", c.Len())
	}
}

func TestCart_AddItem_SameIdentityIncrementsQuantity(t *testing.T) {
	c := NewCart()
	first, _ := c.AddItem("Dress", decimal.NewFromInt(1000))
	second, _ := c.AddItem("  dress ", decimal.NewFromInt(1000))
	if first.ID != second.ID {
		t.Fatalf("expected same row, got %s and %s", first.ID, second.ID)
	}
	if c.Len() != 1 || c.Items()[0].Quantity != 2 {
		t.Fatalf("expected one row with quantity 2, got %+v", c.Items())
	}

	// a different price is a different item
	c.AddItem("Dress", decimal.NewFromInt(1200))
	if c.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", c.Len())
	}
	if !c.Total().Equal(decimal.NewFromInt(3200)) {
		t.Fatalf("expected total 3200, got %s", c.Total())
	}
}

func TestCart_UpdateQuantity_NonPositiveRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -10} {
		c := NewCart()
		it, _ := c.AddItem("Dress", decimal.NewFromInt(1000))
		c.AddItem("Scarf", decimal.NewFromInt(300))
		if !c.UpdateQuantity(it.ID, q) {
			t.Fatalf("UpdateQuantity(%d) returned false", q)
		}
		for _, row := range c.Items() {
			if row.ID == it.ID {
				t.Fatalf("quantity %d should remove row", q)
			}
			if row.Quantity < 1 {
				t.Fatalf("non-positive row left in cart: %+v", row)
			}
		}
		if !c.Total().Equal(decimal.NewFromInt(300)) {
			t.Fatalf("expected 300, got %s", c.Total())
		}
	}
}

func TestCart_UnknownIdIsNoOp(t *testing.T) {
	c := NewCart()
	c.AddItem("Dress", decimal.NewFromInt(1000))
	if c.UpdateQuantity("missing", 3) || c.RemoveItem("missing") {
		t.Fatalf("expected false for unknown id")
	}
	if c.Len() != 1 {
		t.Fatalf("cart changed on unknown id")
	}
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := NewCart()
	c.AddItem("Dress", decimal.NewFromInt(1000))
	items := c.Items()
	items[0].Quantity = 99
	if c.Items()[0].Quantity != 1 {
		t.Fatalf("Items leaked internal slice")
	}
}

func TestCart_TotalMatchesRowsForRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"Dress", "Scarf", "Kitenge", "Sandals", "dress"}
	prices := []int64{250, 1000, 1499, 3000}

	for run := 0; run < 50; run++ {
		c := NewCart()
		for step := 0; step < 40; step++ {
			items := c.Items()
			switch op := rng.Intn(4); {
			case op == 0 || len(items) == 0:
				price := decimal.NewFromInt(prices[rng.Intn(len(prices))])
				if rng.Intn(10) == 0 {
					price = decimal.Zero
				}
				c.AddItem(names[rng.Intn(len(names))], price)
			case op == 1:
				c.UpdateQuantity(items[rng.Intn(len(items))].ID, rng.Intn(6)-2)
			case op == 2:
				c.RemoveItem(items[rng.Intn(len(items))].ID)
			default:
				c.SetSurcharge(decimal.NewFromInt(int64(rng.Intn(3) * 50)))
			}

			rows := c.Items()
			want := sumRows(rows).Add(c.Surcharge())
			if !c.Total().Equal(want) {
				t.Fatalf("run %d step %d: total %s != rows %s", run, step, c.Total(), want)
			}
			if c.Total().IsNegative() {
				t.Fatalf("negative total %s", c.Total())
			}
			for _, r := range rows {
				if r.Quantity < 1 {
					t.Fatalf("run %d step %d: row with quantity %d", run, step, r.Quantity)
				}
			}
		}
	}
}

func ExampleCart_Total() {
	c := NewCart()
	c.AddItem("Dress", decimal.NewFromInt(1000))
	c.AddItem("Dress", decimal.NewFromInt(1000))
	fmt.Println(c.Total())
	// Output: 2000
}
