package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/messaging"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/pos"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/dukaflow/retailer_backend/workflow")

type ResultKind string

const (
	ResultCompleted               ResultKind = "completed"
	ResultCompletedReceiptPending ResultKind = "completed_receipt_pending"
	ResultReceiptFailed           ResultKind = "receipt_failed"
	ResultRejected                ResultKind = "rejected"
	ResultUnauthenticated         ResultKind = "unauthenticated"
	ResultFailed                  ResultKind = "failed"
)

// Done reports whether the sale reached the completed state.
func (k ResultKind) Done() bool {
	return k == ResultCompleted || k == ResultCompletedReceiptPending
}

const lockTypeSale = "sale"

var ErrClientRefReused = errors.New("clientRef belongs to a completed sale with different items or customer")

// CompleteSale is the single command behind every checkout, whether it comes
// from the HTTP handler, the in-process checkout machine or the replay tool.
type CompleteSale struct {
	Session appctx.Session
	Sale    pos.SaleRequest
}

type Result struct {
	Kind    ResultKind        `json:"result"`
	Sale    *models.Sale      `json:"sale,omitempty"`
	Receipt *messaging.Result `json:"receipt,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type SaleStore interface {
	FindSaleByClientRef(ctx context.Context, retailerId, clientRef string) (*models.Sale, error)
	GetSale(ctx context.Context, retailerId, id string) (*models.Sale, error)
	CreateSale(ctx context.Context, sale *models.Sale) error
	UpdateSaleReceipt(ctx context.Context, retailerId, id string, status models.ReceiptStatus, messageSid *string, receiptError string) error
	MarkSaleCompleted(ctx context.Context, retailerId, id string) error
	// ReviseSale replaces customer, items, surcharge, total and receipt state of
	// an in_progress sale. It returns utils.ErrorRecordNotFound once the sale is completed.
	ReviseSale(ctx context.Context, sale *models.Sale) error
	ListSales(ctx context.Context, retailerId string, filter models.SaleFilter) ([]models.Sale, error)
}

type CustomerStore interface {
	FindCustomerByPhone(ctx context.Context, retailerId, phoneE164 string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
}

type RetailerStore interface {
	GetRetailer(ctx context.Context, id string) (*models.Retailer, error)
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, s appctx.Session, to messaging.Recipient, payload messaging.ReceiptPayload) messaging.Result
}

type Locker func(ctx context.Context, retailerId, lockType, key string) func()

type SaleProcessor struct {
	sales      SaleStore
	customers  CustomerStore
	retailers  RetailerStore
	receipts   ReceiptSender
	lock       Locker
	bestEffort bool
	region     string
	logger     *logrus.Logger
}

type ProcessorOption func(*SaleProcessor)

func WithSaleLocker(l Locker) ProcessorOption {
	return func(p *SaleProcessor) { p.lock = l }
}

// WithBestEffortReceipts lets a sale complete when its receipt could not be sent.
func WithBestEffortReceipts(on bool) ProcessorOption {
	return func(p *SaleProcessor) { p.bestEffort = on }
}

func NewSaleProcessor(sales SaleStore, customers CustomerStore, retailers RetailerStore, receipts ReceiptSender, opts ...ProcessorOption) *SaleProcessor {
	p := &SaleProcessor{
		sales:      sales,
		customers:  customers,
		retailers:  retailers,
		receipts:   receipts,
		lock:       utils.RetailerLock,
		bestEffort: config.ReceiptDispatchBestEffort(),
		region:     config.DefaultPhoneRegion(),
		logger:     config.GetLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Handle persists the sale, dispatches the receipt when the plan includes
// receipts and marks the sale completed, in that order. A retry with the same
// clientRef resumes the stored sale instead of creating a second one.
func (p *SaleProcessor) Handle(ctx context.Context, cmd CompleteSale) Result {
	ctx, span := tracer.Start(ctx, "workflow.CompleteSale")
	defer span.End()

	sess := cmd.Session
	if !sess.Valid() {
		span.SetStatus(codes.Error, "unauthenticated")
		return Result{Kind: ResultUnauthenticated, Error: utils.ErrNotAuthenticated.Error()}
	}
	req, err := p.normalizeRequest(cmd.Sale)
	if err != nil {
		return Result{Kind: ResultRejected, Error: err.Error()}
	}
	span.SetAttributes(
		attribute.String("retailer.id", sess.RetailerId),
		attribute.String("sale.client_ref", req.ClientRef),
		attribute.String("retailer.tier", string(sess.Tier)),
	)
	ctx = sess.Bind(ctx)

	release := p.lock(ctx, sess.RetailerId, lockTypeSale, req.ClientRef)
	defer release()

	sale, err := p.persistSale(ctx, sess, req)
	if errors.Is(err, ErrClientRefReused) {
		return Result{Kind: ResultRejected, Error: err.Error()}
	}
	if err != nil {
		span.SetStatus(codes.Error, "persist sale")
		config.LogError(p.logger, "workflow", "CompleteSale", "persist sale", logrus.Fields{"retailer_id": sess.RetailerId, "client_ref": req.ClientRef}, err)
		return Result{Kind: ResultFailed, Error: err.Error()}
	}
	span.SetAttributes(attribute.String("sale.id", sale.ID))

	res := p.deliver(ctx, sess, sale)
	if !res.Kind.Done() {
		span.SetStatus(codes.Error, string(res.Kind))
	}
	span.SetAttributes(attribute.String("sale.result", string(res.Kind)))
	return res
}

func (p *SaleProcessor) deliver(ctx context.Context, sess appctx.Session, sale *models.Sale) Result {
	if sale.Status == models.SaleStatusCompleted && sale.ReceiptStatus != models.ReceiptStatusFailed && sale.ReceiptStatus != models.ReceiptStatusPending {
		return Result{Kind: ResultCompleted, Sale: sale}
	}

	var receipt *messaging.Result
	switch {
	case !tier.PlanFor(sess.Tier).SendsReceipts():
		if sale.ReceiptStatus != models.ReceiptStatusSkipped {
			if err := p.sales.UpdateSaleReceipt(ctx, sess.RetailerId, sale.ID, models.ReceiptStatusSkipped, nil, ""); err != nil {
				return Result{Kind: ResultFailed, Sale: sale, Error: err.Error()}
			}
			sale.ReceiptStatus = models.ReceiptStatusSkipped
		}
	case sale.ReceiptStatus != models.ReceiptStatusSent:
		r, err := p.dispatch(ctx, sess, sale)
		if err != nil {
			return Result{Kind: ResultFailed, Sale: sale, Error: err.Error()}
		}
		receipt = &r
		if !r.Success {
			if !p.bestEffort && sale.Status != models.SaleStatusCompleted {
				return Result{Kind: ResultReceiptFailed, Sale: sale, Receipt: receipt, Error: r.Error}
			}
			if err := p.complete(ctx, sess, sale); err != nil {
				return Result{Kind: ResultFailed, Sale: sale, Receipt: receipt, Error: err.Error()}
			}
			return Result{Kind: ResultCompletedReceiptPending, Sale: sale, Receipt: receipt, Error: r.Error}
		}
	}

	if err := p.complete(ctx, sess, sale); err != nil {
		return Result{Kind: ResultFailed, Sale: sale, Receipt: receipt, Error: err.Error()}
	}
	return Result{Kind: ResultCompleted, Sale: sale, Receipt: receipt}
}

func (p *SaleProcessor) complete(ctx context.Context, sess appctx.Session, sale *models.Sale) error {
	if sale.Status == models.SaleStatusCompleted {
		return nil
	}
	if err := p.sales.MarkSaleCompleted(ctx, sess.RetailerId, sale.ID); err != nil {
		config.LogError(p.logger, "workflow", "CompleteSale", "mark completed", sale.ID, err)
		return fmt.Errorf("mark sale completed: %w", err)
	}
	sale.Status = models.SaleStatusCompleted
	return nil
}

// dispatch sends the receipt and records the outcome on the sale. A send
// failure is reported through the returned Result; err is only for storage.
func (p *SaleProcessor) dispatch(ctx context.Context, sess appctx.Session, sale *models.Sale) (messaging.Result, error) {
	storeName := "Receipt"
	if retailer, err := p.retailers.GetRetailer(ctx, sess.RetailerId); err == nil && strings.TrimSpace(retailer.Name) != "" {
		storeName = retailer.Name
	} else if err != nil {
		config.LogError(p.logger, "workflow", "CompleteSale", "get retailer", sess.RetailerId, err)
	}

	r := p.receipts.SendReceipt(ctx, sess, messaging.Recipient{CustomerId: sale.CustomerId, Address: sale.CustomerPhone}, messaging.ReceiptFromSale(storeName, *sale))
	if !r.Success {
		config.LogError(p.logger, "workflow", "CompleteSale", "receipt dispatch", logrus.Fields{"sale_id": sale.ID, "code": r.Code}, errors.New(r.Error))
		if err := p.sales.UpdateSaleReceipt(ctx, sess.RetailerId, sale.ID, models.ReceiptStatusFailed, nil, r.Error); err != nil {
			return r, err
		}
		sale.ReceiptStatus = models.ReceiptStatusFailed
		sale.ReceiptError = r.Error
		return r, nil
	}

	sid := r.MessageSid
	if err := p.sales.UpdateSaleReceipt(ctx, sess.RetailerId, sale.ID, models.ReceiptStatusSent, &sid, ""); err != nil {
		return r, err
	}
	sale.ReceiptStatus = models.ReceiptStatusSent
	sale.ReceiptMessageSid = &sid
	sale.ReceiptError = ""
	return r, nil
}

func (p *SaleProcessor) persistSale(ctx context.Context, sess appctx.Session, req pos.SaleRequest) (*models.Sale, error) {
	existing, err := p.sales.FindSaleByClientRef(ctx, sess.RetailerId, req.ClientRef)
	if err == nil {
		return p.reconcile(ctx, sess, existing, req)
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	customer, err := p.findOrCreateCustomer(ctx, sess, req.Customer)
	if err != nil {
		return nil, err
	}

	sale := &models.Sale{
		ID:            uuid.NewString(),
		RetailerId:    sess.RetailerId,
		ClientRef:     req.ClientRef,
		Status:        models.SaleStatusInProgress,
		ReceiptStatus: models.ReceiptStatusPending,
	}
	applyRequest(sale, req, customer)

	if err := p.sales.CreateSale(ctx, sale); err != nil {
		if !utils.IsDuplicateKey(err) {
			return nil, fmt.Errorf("create sale: %w", err)
		}
		existing, err := p.sales.FindSaleByClientRef(ctx, sess.RetailerId, req.ClientRef)
		if err != nil {
			return nil, err
		}
		return p.reconcile(ctx, sess, existing, req)
	}
	return sale, nil
}

// reconcile resumes a stored sale for a resubmitted request. An unfinished sale
// whose cart or customer was edited since is rewritten to match the request;
// a completed one can no longer change.
func (p *SaleProcessor) reconcile(ctx context.Context, sess appctx.Session, sale *models.Sale, req pos.SaleRequest) (*models.Sale, error) {
	phone, err := utils.NormalizePhone(req.Customer.Phone, p.region)
	if err != nil {
		return nil, err
	}
	if saleMatches(sale, req, phone) {
		return sale, nil
	}
	if sale.Status == models.SaleStatusCompleted {
		return nil, ErrClientRefReused
	}

	customer, err := p.findOrCreateCustomer(ctx, sess, req.Customer)
	if err != nil {
		return nil, err
	}
	applyRequest(sale, req, customer)
	sale.ReceiptStatus = models.ReceiptStatusPending
	sale.ReceiptMessageSid = nil
	sale.ReceiptError = ""
	if err := p.sales.ReviseSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("revise sale: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"sale_id":    sale.ID,
		"client_ref": sale.ClientRef,
		"total":      sale.Total.String(),
	}).Info("sale revised from resubmitted checkout")
	return sale, nil
}

func applyRequest(sale *models.Sale, req pos.SaleRequest, customer *models.Customer) {
	sale.CustomerId = customer.ID
	sale.CustomerName = req.Customer.Name
	sale.CustomerPhone = customer.PhoneE164
	sale.Surcharge = req.Surcharge
	sale.Timestamp = req.Timestamp
	sale.Items = make([]models.SaleItem, 0, len(req.Items))
	for _, it := range req.Items {
		sale.Items = append(sale.Items, models.SaleItem{
			ItemRef:    it.ID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			LineAmount: it.LineTotal(),
		})
	}
	sale.Total = sale.ComputeTotal()
}

// saleMatches compares what the customer is charged and where the receipt goes.
// Item refs are client-side ids and are ignored.
func saleMatches(sale *models.Sale, req pos.SaleRequest, phoneE164 string) bool {
	if sale.CustomerPhone != phoneE164 || sale.CustomerName != req.Customer.Name {
		return false
	}
	if !sale.Surcharge.Equal(req.Surcharge) || len(sale.Items) != len(req.Items) {
		return false
	}
	for i, it := range req.Items {
		stored := sale.Items[i]
		if stored.Name != it.Name || stored.Quantity != it.Quantity || !stored.UnitPrice.Equal(it.UnitPrice) {
			return false
		}
	}
	return true
}

func (p *SaleProcessor) findOrCreateCustomer(ctx context.Context, sess appctx.Session, data pos.CustomerData) (*models.Customer, error) {
	phone, err := utils.NormalizePhone(data.Phone, p.region)
	if err != nil {
		return nil, err
	}
	c, err := p.customers.FindCustomerByPhone(ctx, sess.RetailerId, phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	c = &models.Customer{RetailerId: sess.RetailerId, Name: data.Name, Phone: data.Phone}
	if err := p.customers.CreateCustomer(ctx, c); err != nil {
		if !utils.IsDuplicateKey(err) {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return p.customers.FindCustomerByPhone(ctx, sess.RetailerId, phone)
	}
	return c, nil
}

func (p *SaleProcessor) normalizeRequest(req pos.SaleRequest) (pos.SaleRequest, error) {
	req.ClientRef = strings.TrimSpace(req.ClientRef)
	if req.ClientRef == "" {
		return req, errors.New("clientRef is required")
	}
	req.Customer = req.Customer.Trimmed()
	if req.Customer.Name == "" {
		return req, errors.New(pos.ReasonCustomerName)
	}
	if req.Customer.Phone == "" {
		return req, errors.New(pos.ReasonCustomerPhone)
	}
	if _, err := utils.NormalizePhone(req.Customer.Phone, p.region); err != nil {
		return req, err
	}
	items := make([]pos.Item, 0, len(req.Items))
	for _, it := range req.Items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" || !it.UnitPrice.IsPositive() || it.Quantity < 1 {
			return req, fmt.Errorf("invalid item %q", it.Name)
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return req, errors.New(pos.ReasonEmptyCart)
	}
	req.Items = items
	if req.Surcharge.IsNegative() {
		req.Surcharge = decimal.Zero
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	return req, nil
}

// SaleRequestFromSale rebuilds the command payload of a stored sale.
func SaleRequestFromSale(s models.Sale) pos.SaleRequest {
	req := pos.SaleRequest{
		ClientRef: s.ClientRef,
		Surcharge: s.Surcharge,
		Total:     s.Total,
		Customer:  pos.CustomerData{Name: s.CustomerName, Phone: s.CustomerPhone},
		Timestamp: s.Timestamp,
	}
	for _, it := range s.Items {
		req.Items = append(req.Items, pos.Item{ID: it.ItemRef, Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return req
}
