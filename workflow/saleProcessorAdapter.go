package workflow

import (
	"context"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/pos"
	"github.com/sirupsen/logrus"
)

// SaleError is returned to the checkout machine when a CompleteSale did not finish.
type SaleError struct {
	Kind    ResultKind
	Message string
}

func (e *SaleError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// CheckoutProcessor binds a session to the SaleProcessor so a pos.Checkout can drive it.
type CheckoutProcessor struct {
	processor *SaleProcessor
	session   appctx.Session
	last      Result
}

func (p *SaleProcessor) ForSession(sess appctx.Session) *CheckoutProcessor {
	return &CheckoutProcessor{processor: p, session: sess}
}

// LastResult is the full result of the most recent ProcessSale call.
func (c *CheckoutProcessor) LastResult() Result {
	return c.last
}

func (c *CheckoutProcessor) ProcessSale(ctx context.Context, req pos.SaleRequest) (pos.Completion, error) {
	res := c.processor.Handle(ctx, CompleteSale{Session: c.session, Sale: req})
	c.last = res
	if !res.Kind.Done() {
		return pos.Completion{}, &SaleError{Kind: res.Kind, Message: res.Error}
	}
	done := pos.Completion{
		SaleId:         res.Sale.ID,
		Total:          res.Sale.Total,
		ReceiptPending: res.Kind == ResultCompletedReceiptPending,
	}
	if res.Sale.ReceiptMessageSid != nil {
		done.MessageSid = *res.Sale.ReceiptMessageSid
	}
	return done, nil
}

// ReplayFailedReceipts re-runs CompleteSale for the retailer's sales whose
// receipt failed or never went out. It returns how many reached a sent receipt.
func (p *SaleProcessor) ReplayFailedReceipts(ctx context.Context, sess appctx.Session, limit int) (int, error) {
	var pending []models.Sale
	for _, status := range []models.ReceiptStatus{models.ReceiptStatusFailed, models.ReceiptStatusPending} {
		sales, err := p.sales.ListSales(sess.Bind(ctx), sess.RetailerId, models.SaleFilter{ReceiptStatus: status, Limit: limit})
		if err != nil {
			return 0, err
		}
		pending = append(pending, sales...)
	}

	sent := 0
	for _, sale := range pending {
		res := p.Handle(ctx, CompleteSale{Session: sess, Sale: SaleRequestFromSale(sale)})
		if res.Sale != nil && res.Sale.ReceiptStatus == models.ReceiptStatusSent {
			sent++
			continue
		}
		p.logger.WithFields(logrus.Fields{
			"sale_id": sale.ID,
			"result":  res.Kind,
		}).Warn("receipt replay did not send")
		if res.Kind == ResultFailed {
			config.LogError(p.logger, "workflow", "ReplayFailedReceipts", "replay", sale.ID, &SaleError{Kind: res.Kind, Message: res.Error})
		}
	}
	return sent, nil
}
