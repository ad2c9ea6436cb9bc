package pos

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) sameIdentity(name string, unitPrice decimal.Decimal) bool {
	return strings.EqualFold(i.Name, name) && i.UnitPrice.Equal(unitPrice)
}

// Cart holds the items of a sale under construction. It is not safe for
// concurrent use; Checkout serializes access.
type Cart struct {
	items     []Item
	surcharge decimal.Decimal
	newID     func() string
}

func NewCart() *Cart {
	return &Cart{newID: uuid.NewString}
}

// AddItem adds one unit of name at unitPrice. An item with the same name
// (case-insensitive) and price gets its quantity bumped instead of a new row.
// Blank names and non-positive prices are ignored.
func (c *Cart) AddItem(name string, unitPrice decimal.Decimal) (Item, bool) {
	name = strings.TrimSpace(name)
	if name == "" || !unitPrice.IsPositive() {
		return Item{}, false
	}
	for i := range c.items {
		if c.items[i].sameIdentity(name, unitPrice) {
			c.items[i].Quantity++
			return c.items[i], true
		}
	}
	it := Item{
		ID:        c.nextID(),
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  1,
	}
	c.items = append(c.items, it)
	return it, true
}

// UpdateQuantity sets the quantity of itemId. Zero or negative removes the row.
// Returns false for unknown ids.
func (c *Cart) UpdateQuantity(itemId string, quantity int) bool {
	idx := c.indexOf(itemId)
	if idx < 0 {
		return false
	}
	if quantity <= 0 {
		c.items = append(c.items[:idx], c.items[idx+1:]...)
		return true
	}
	c.items[idx].Quantity = quantity
	return true
}

func (c *Cart) RemoveItem(itemId string) bool {
	idx := c.indexOf(itemId)
	if idx < 0 {
		return false
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return true
}

// SetSurcharge sets a fixed amount added to the total (e.g. an SMS fallback allocation).
// Negative values are treated as zero.
func (c *Cart) SetSurcharge(amount decimal.Decimal) {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	c.surcharge = amount
}

func (c *Cart) Surcharge() decimal.Decimal {
	return c.surcharge
}

// Total is recomputed from the current rows on every call.
func (c *Cart) Total() decimal.Decimal {
	total := c.surcharge
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Items returns a copy of the current rows.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) Clear() {
	c.items = nil
	c.surcharge = decimal.Zero
}

func (c *Cart) indexOf(itemId string) int {
	for i := range c.items {
		if c.items[i].ID == itemId {
			return i
		}
	}
	return -1
}

func (c *Cart) nextID() string {
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c.newID()
}
