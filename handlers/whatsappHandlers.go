package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/inbox"
	"github.com/dukaflow/retailer_backend/messaging"
	"github.com/dukaflow/retailer_backend/middlewares"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const twilioSignatureHeader = "X-Twilio-Signature"

func (h *Handler) WebhookStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// verifySignature rejects forged provider callbacks when verification is on.
func (h *Handler) verifySignature(c *gin.Context) bool {
	if !h.Webhook.ValidateSignature {
		return true
	}
	if err := c.Request.ParseForm(); err != nil {
		return false
	}
	fullURL := strings.TrimRight(h.Webhook.PublicURL, "/") + c.Request.URL.RequestURI()
	return messaging.ValidTwilioSignature(h.Webhook.AuthToken, fullURL, c.Request.PostForm, c.GetHeader(twilioSignatureHeader))
}

// InboundWebhook records a customer's WhatsApp message into their conversation.
func (h *Handler) InboundWebhook(c *gin.Context) {
	if !h.verifySignature(c) {
		fail(c, http.StatusForbidden, errors.New("invalid signature"))
		return
	}
	in := inbox.InboundMessage{
		From:       strings.TrimSpace(c.PostForm("From")),
		To:         strings.TrimSpace(c.PostForm("To")),
		Body:       c.PostForm("Body"),
		MessageSid: strings.TrimSpace(c.PostForm("MessageSid")),
		Timestamp:  c.PostForm("Timestamp"),
	}
	if in.From == "" || strings.TrimSpace(in.Body) == "" || in.MessageSid == "" {
		fail(c, http.StatusBadRequest, errors.New("From, Body and MessageSid are required"))
		return
	}

	res, err := h.Inbox.HandleInbound(c.Request.Context(), in)
	if err != nil && res == nil {
		if errors.Is(err, inbox.ErrCustomerNotFound) {
			h.Logger.WithFields(logrus.Fields{"from": in.From, "to": in.To, "sid": in.MessageSid}).Warn("inbound message from unknown customer")
			fail(c, http.StatusNotFound, errors.New("customer not found"))
			return
		}
		config.LogError(h.Logger, "handlers", "InboundWebhook", "HandleInbound", in.MessageSid, err)
		fail(c, statusFor(err), err)
		return
	}
	if err != nil {
		// message stored, summary left for resync
		config.LogError(h.Logger, "handlers", "InboundWebhook", "conversation summary", res.Conversation.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"conversationId": res.Conversation.ID,
		"messageId":      res.Message.ID,
		"duplicate":      res.Duplicate,
	})
}

// StatusCallback applies a provider delivery status to the stored message.
func (h *Handler) StatusCallback(c *gin.Context) {
	if !h.verifySignature(c) {
		fail(c, http.StatusForbidden, errors.New("invalid signature"))
		return
	}
	sid := strings.TrimSpace(c.PostForm("MessageSid"))
	raw := c.PostForm("MessageStatus")
	if sid == "" || raw == "" {
		fail(c, http.StatusBadRequest, errors.New("MessageSid and MessageStatus are required"))
		return
	}
	status, err := models.ParseProviderStatus(raw)
	if err != nil {
		// statuses we do not track are acknowledged and ignored
		c.JSON(http.StatusOK, gin.H{"success": true, "changed": false})
		return
	}
	m, changed, err := h.Inbox.UpdateMessageStatus(c.Request.Context(), sid, status)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "changed": changed, "status": m.Status})
}

// mediaList accepts either a single URL or a list of URLs.
type mediaList []string

func (m *mediaList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if strings.TrimSpace(one) != "" {
			*m = mediaList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.New("mediaUrl must be a string or an array of strings")
	}
	out := make(mediaList, 0, len(many))
	for _, u := range many {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	*m = out
	return nil
}

type sendRequest struct {
	To       string    `json:"to"`
	Message  string    `json:"message"`
	MediaUrl mediaList `json:"mediaUrl"`
}

// SendMessage sends a WhatsApp message; known customers get it threaded into their conversation.
func (h *Handler) SendMessage(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.To) == "" {
		fail(c, http.StatusBadRequest, errors.New("to is required"))
		return
	}

	to := messaging.Recipient{Address: req.To}
	if phone, err := utils.NormalizePhone(req.To, h.Region); err == nil {
		if cust, err := h.Customers.FindCustomerByPhone(c.Request.Context(), sess.RetailerId, phone); err == nil {
			to.CustomerId = cust.ID
		}
	}

	res := h.Gateway.SendText(c.Request.Context(), sess, to, req.Message, req.MediaUrl)
	if !res.Success {
		status := http.StatusInternalServerError
		switch res.Code {
		case messaging.CodeInvalidAddress, messaging.CodeInvalidPayload:
			status = http.StatusBadRequest
		case messaging.CodeNotAuthenticate:
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"success": false, "error": res.Error, "code": res.Code})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageSid": res.MessageSid, "status": res.Status})
}
