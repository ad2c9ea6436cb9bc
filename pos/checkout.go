package pos

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Step string

const (
	StepSale     Step = "sale"
	StepCustomer Step = "customer"
	StepPayment  Step = "payment"
	StepSuccess  Step = "success"
)

const (
	ReasonEmptyCart        = "add at least one item"
	ReasonCustomerName     = "customer name is required"
	ReasonCustomerPhone    = "customer phone is required"
	ReasonAlreadyInFlight  = "checkout already processing"
	ReasonNotInPayment     = "checkout is not at the payment step"
	ReasonNotInCustomer    = "customer details can only be changed at the customer step"
	ReasonUseComplete      = "complete the sale to finish payment"
	ReasonAlreadyCompleted = "sale already completed"
)

// Rejection explains why a transition did not happen. The machine state is unchanged.
type Rejection struct {
	Step   Step   `json:"step"`
	Reason string `json:"reason"`
}

func (r *Rejection) Error() string {
	return string(r.Step) + ": " + r.Reason
}

type CustomerData struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (d CustomerData) Trimmed() CustomerData {
	return CustomerData{Name: strings.TrimSpace(d.Name), Phone: strings.TrimSpace(d.Phone)}
}

// SaleRequest is the frozen cart and customer handed to a Processor.
type SaleRequest struct {
	ClientRef string
	Items     []Item
	Surcharge decimal.Decimal
	Total     decimal.Decimal
	Customer  CustomerData
	Timestamp time.Time
}

// Completion describes a finished sale. ReceiptPending is set when the sale
// completed without a delivered receipt.
type Completion struct {
	SaleId         string          `json:"sale_id"`
	Total          decimal.Decimal `json:"total"`
	MessageSid     string          `json:"message_sid,omitempty"`
	ReceiptPending bool            `json:"receipt_pending"`
}

// Processor persists the sale and dispatches its receipt. A non-nil error
// keeps the checkout at the payment step.
type Processor interface {
	ProcessSale(ctx context.Context, req SaleRequest) (Completion, error)
}

// Checkout drives a sale through sale → customer → payment → success.
type Checkout struct {
	mu         sync.Mutex
	step       Step
	cart       *Cart
	customer   CustomerData
	clientRef  string
	inFlight   bool
	lastErr    error
	completion *Completion
	now        func() time.Time
}

func NewCheckout(cart *Cart) *Checkout {
	if cart == nil {
		cart = NewCart()
	}
	return &Checkout{
		step:      StepSale,
		cart:      cart,
		clientRef: uuid.NewString(),
		now:       time.Now,
	}
}

func (c *Checkout) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Cart exposes the cart for item edits. Edits after Complete has frozen the
// request do not affect the sale being processed.
func (c *Checkout) Cart() *Cart {
	return c.cart
}

func (c *Checkout) Customer() CustomerData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customer
}

// ClientRef identifies this sale attempt; retries after a failed Complete reuse it.
func (c *Checkout) ClientRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientRef
}

// UseClientRef adopts a reference minted by the client so a resubmitted
// checkout maps to the same sale. Refused once completion has started.
func (c *Checkout) UseClientRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref == "" || c.inFlight || c.step == StepSuccess {
		return false
	}
	c.clientRef = ref
	return true
}

func (c *Checkout) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// LastError is the error of the most recent failed Complete.
func (c *Checkout) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Checkout) Completion() (Completion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completion == nil {
		return Completion{}, false
	}
	return *c.completion, true
}

func (c *Checkout) SetCustomer(d CustomerData) *Rejection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepCustomer {
		return &Rejection{Step: c.step, Reason: ReasonNotInCustomer}
	}
	c.customer = d
	return nil
}

// Proceed moves forward one step when the current step's guard passes.
func (c *Checkout) Proceed() *Rejection {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.step {
	case StepSale:
		if c.cart.IsEmpty() {
			return &Rejection{Step: c.step, Reason: ReasonEmptyCart}
		}
		c.step = StepCustomer
	case StepCustomer:
		if r := c.validateCustomerLocked(); r != nil {
			return r
		}
		c.step = StepPayment
	case StepPayment:
		return &Rejection{Step: c.step, Reason: ReasonUseComplete}
	case StepSuccess:
		return &Rejection{Step: c.step, Reason: ReasonAlreadyCompleted}
	}
	return nil
}

func (c *Checkout) validateCustomerLocked() *Rejection {
	if c.cart.IsEmpty() {
		return &Rejection{Step: c.step, Reason: ReasonEmptyCart}
	}
	d := c.customer.Trimmed()
	if d.Name == "" {
		return &Rejection{Step: c.step, Reason: ReasonCustomerName}
	}
	if d.Phone == "" {
		return &Rejection{Step: c.step, Reason: ReasonCustomerPhone}
	}
	return nil
}

// Back steps customer → sale and payment → customer, keeping entered data.
// It is a no-op elsewhere and while a completion is in flight.
func (c *Checkout) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return
	}
	switch c.step {
	case StepCustomer:
		c.step = StepSale
	case StepPayment:
		c.step = StepCustomer
	}
}

// Reset starts a new sale after success, clearing cart and customer.
func (c *Checkout) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepSuccess {
		return false
	}
	c.cart.Clear()
	c.customer = CustomerData{}
	c.clientRef = uuid.NewString()
	c.lastErr = nil
	c.completion = nil
	c.step = StepSale
	return true
}

// Complete freezes the cart and customer and hands them to p. On success the
// checkout moves to StepSuccess; otherwise it stays at StepPayment and the
// error is returned. A concurrent call while one is in flight is rejected.
func (c *Checkout) Complete(ctx context.Context, p Processor) (Completion, error) {
	c.mu.Lock()
	if c.step != StepPayment {
		r := &Rejection{Step: c.step, Reason: ReasonNotInPayment}
		c.mu.Unlock()
		return Completion{}, r
	}
	if c.inFlight {
		c.mu.Unlock()
		return Completion{}, &Rejection{Step: c.step, Reason: ReasonAlreadyInFlight}
	}
	if r := c.validateCustomerLocked(); r != nil {
		c.mu.Unlock()
		return Completion{}, r
	}
	req := SaleRequest{
		ClientRef: c.clientRef,
		Items:     c.cart.Items(),
		Surcharge: c.cart.Surcharge(),
		Total:     c.cart.Total(),
		Customer:  c.customer.Trimmed(),
		Timestamp: c.now(),
	}
	c.inFlight = true
	c.mu.Unlock()

	done, err := p.ProcessSale(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.lastErr = err
		return Completion{}, err
	}
	c.lastErr = nil
	c.completion = &done
	c.step = StepSuccess
	return done, nil
}
