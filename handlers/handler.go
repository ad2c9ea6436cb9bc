// Package handlers exposes the checkout, messaging and inbox operations over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dukaflow/retailer_backend/billing"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/inbox"
	"github.com/dukaflow/retailer_backend/messaging"
	"github.com/dukaflow/retailer_backend/middlewares"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/dukaflow/retailer_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CustomerFinder interface {
	FindCustomerByPhone(ctx context.Context, retailerId, phoneE164 string) (*models.Customer, error)
}

type SaleLister interface {
	ListSales(ctx context.Context, retailerId string, filter models.SaleFilter) ([]models.Sale, error)
}

// WebhookConfig controls X-Twilio-Signature verification of provider callbacks.
type WebhookConfig struct {
	ValidateSignature bool
	AuthToken         string
	// PublicURL is the externally visible scheme+host the provider signs against.
	PublicURL string
}

func WebhookConfigFromEnv() WebhookConfig {
	return WebhookConfig{
		ValidateSignature: config.ValidateTwilioSignature(),
		AuthToken:         config.StringFromEnv("TWILIO_AUTH_TOKEN", ""),
		PublicURL:         config.StringFromEnv("WEBHOOK_PUBLIC_URL", ""),
	}
}

type Handler struct {
	Inbox     *inbox.Synchronizer
	Gateway   *messaging.Gateway
	Sales     *workflow.SaleProcessor
	SaleStore SaleLister
	Customers CustomerFinder
	Bundles   billing.Rates
	Webhook   WebhookConfig
	Region    string
	Logger    *logrus.Logger
}

// Register mounts every route. Provider callbacks are public (optionally
// signature checked); everything else requires a session and a plan feature.
func (h *Handler) Register(r gin.IRouter) {
	if h.Logger == nil {
		h.Logger = config.GetLogger()
	}
	if h.Region == "" {
		h.Region = config.DefaultPhoneRegion()
	}

	api := r.Group("/api")
	api.GET("/whatsapp/webhook", h.WebhookStatus)
	api.POST("/whatsapp/webhook", h.InboundWebhook)
	api.POST("/whatsapp/status", h.StatusCallback)

	authed := api.Group("", middlewares.RequireSession())
	authed.GET("/plan", h.Plan)
	authed.POST("/whatsapp", middlewares.RequireFeature(tier.FeatureInbox), h.SendMessage)
	authed.POST("/pos/checkout", middlewares.RequireFeature(tier.FeaturePOS), h.Checkout)
	authed.GET("/sales", middlewares.RequireFeature(tier.FeaturePOS), h.ListSales)
	authed.GET("/sales/export", middlewares.RequireFeature(tier.FeatureReportsExport), h.ExportSales)
	authed.GET("/bundles/quote", middlewares.RequireFeature(tier.FeatureBundles), h.QuoteBundle)

	conv := authed.Group("/conversations", middlewares.RequireFeature(tier.FeatureInbox))
	conv.GET("", h.ListConversations)
	conv.GET("/:id/messages", h.ListMessages)
	conv.POST("/:id/read", h.MarkRead)
	conv.POST("/:id/resync", h.Resync)
}

func fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, inbox.ErrConversationNotFound),
		errors.Is(err, inbox.ErrCustomerNotFound),
		errors.Is(err, inbox.ErrMessageNotFound),
		errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, inbox.ErrEmptyMessage), errors.Is(err, inbox.ErrInvalidSender):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return config.SearchLimit
	}
	if n > 500 {
		return 500
	}
	return n
}
