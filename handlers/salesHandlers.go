package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/dukaflow/retailer_backend/middlewares"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/reports"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/gin-gonic/gin"
)

// Plan tells the dashboard which features and POS component the session's tier gets.
func (h *Handler) Plan(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	plan := tier.PlanFor(sess.Tier)
	features := make([]string, 0, len(plan.Features))
	for f, on := range plan.Features {
		if on {
			features = append(features, string(f))
		}
	}
	sort.Strings(features)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"tier":       plan.Tier,
		"posVariant": plan.POSVariant,
		"features":   features,
	})
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}

func saleFilterFromQuery(c *gin.Context) (models.SaleFilter, error) {
	filter := models.SaleFilter{
		Status:        models.SaleStatus(c.Query("status")),
		ReceiptStatus: models.ReceiptStatus(c.Query("receiptStatus")),
		Limit:         queryLimit(c),
	}
	var err error
	if filter.From, err = parseDay(c.Query("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseDay(c.Query("to")); err != nil {
		return filter, err
	}
	if filter.To != nil {
		// inclusive of the whole "to" day
		end := filter.To.AddDate(0, 0, 1)
		filter.To = &end
	}
	return filter, nil
}

func (h *Handler) ListSales(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	filter, err := saleFilterFromQuery(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	sales, err := h.SaleStore.ListSales(sess.Bind(c.Request.Context()), sess.RetailerId, filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]models.SaleSummary, 0, len(sales))
	for _, s := range sales {
		out = append(out, models.SaleSummaryFromSale(s))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sales": out})
}

// ExportSales downloads completed sales as an xlsx workbook.
func (h *Handler) ExportSales(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	filter, err := saleFilterFromQuery(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	filter.Status = models.SaleStatusCompleted
	filter.Limit = 0
	sales, err := h.SaleStore.ListSales(sess.Bind(c.Request.Context()), sess.RetailerId, filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Type", reports.ContentTypeXlsx)
	c.Header("Content-Disposition", "attachment; filename=sales-"+time.Now().UTC().Format("20060102")+".xlsx")
	c.Status(http.StatusOK)
	if err := reports.WriteSalesExport(c.Writer, sales); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) QuoteBundle(c *gin.Context) {
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil {
		fail(c, http.StatusBadRequest, errors.New("count must be a whole number"))
		return
	}
	q, err := h.Bundles.Quote(count)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quote": q})
}
