package handlers

import (
	"errors"
	"net/http"

	"github.com/dukaflow/retailer_backend/middlewares"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/pos"
	"github.com/dukaflow/retailer_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type checkoutItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  *int            `json:"quantity"`
}

type checkoutRequest struct {
	ClientRef string           `json:"clientRef" binding:"required"`
	Items     []checkoutItem   `json:"items"`
	Surcharge decimal.Decimal  `json:"surcharge"`
	Customer  pos.CustomerData `json:"customer"`
}

// buildCheckout replays the submitted cart through the checkout machine up to
// the payment step. A missing quantity means one; zero or less is rejected.
func buildCheckout(req checkoutRequest) (*pos.Checkout, *pos.Rejection) {
	cart := pos.NewCart()
	for _, in := range req.Items {
		qty := 1
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		if qty <= 0 {
			return nil, &pos.Rejection{Step: pos.StepSale, Reason: "invalid quantity for " + `"` + in.Name + `"`}
		}
		added, ok := cart.AddItem(in.Name, in.UnitPrice)
		if !ok {
			return nil, &pos.Rejection{Step: pos.StepSale, Reason: "invalid item " + `"` + in.Name + `"`}
		}
		if qty > 1 {
			cart.UpdateQuantity(added.ID, added.Quantity-1+qty)
		}
	}
	cart.SetSurcharge(req.Surcharge)

	co := pos.NewCheckout(cart)
	co.UseClientRef(req.ClientRef)
	if r := co.Proceed(); r != nil {
		return nil, r
	}
	if r := co.SetCustomer(req.Customer); r != nil {
		return nil, r
	}
	if r := co.Proceed(); r != nil {
		return nil, r
	}
	return co, nil
}

func saleErrorStatus(kind workflow.ResultKind) int {
	switch kind {
	case workflow.ResultUnauthenticated:
		return http.StatusUnauthorized
	case workflow.ResultRejected:
		return http.StatusBadRequest
	case workflow.ResultReceiptFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Checkout runs a submitted cart through the checkout machine and CompleteSale.
// Resubmitting the same clientRef resumes the same sale.
func (h *Handler) Checkout(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	co, rej := buildCheckout(req)
	if rej != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": rej.Reason, "step": rej.Step})
		return
	}

	proc := h.Sales.ForSession(sess)
	done, err := co.Complete(c.Request.Context(), proc)
	if err != nil {
		var r *pos.Rejection
		if errors.As(err, &r) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": r.Reason, "step": r.Step})
			return
		}
		res := proc.LastResult()
		status := saleErrorStatus(res.Kind)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		body := gin.H{"success": false, "result": res.Kind, "error": res.Error, "step": co.Step()}
		if res.Receipt != nil {
			body["code"] = res.Receipt.Code
		}
		c.JSON(status, body)
		return
	}

	res := proc.LastResult()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"result":         res.Kind,
		"step":           co.Step(),
		"saleId":         done.SaleId,
		"total":          done.Total,
		"messageSid":     done.MessageSid,
		"receiptPending": done.ReceiptPending,
		"sale":           models.SaleSummaryFromSale(*res.Sale),
	})
}
