package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dukaflow/retailer_backend/middlewares"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListConversations(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	filter := models.ConversationFilter{
		UnreadOnly: strings.EqualFold(c.Query("unread"), "true"),
		Limit:      queryLimit(c),
	}
	if s := c.Query("status"); s != "" {
		filter.Status = models.ConversationStatus(strings.ToLower(s))
		if !filter.Status.IsValid() {
			fail(c, http.StatusBadRequest, errors.New("invalid status"))
			return
		}
	}
	views, err := h.Inbox.ListConversations(c.Request.Context(), sess, filter)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversations": views})
}

func (h *Handler) ListMessages(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	msgs, err := h.Inbox.ListMessages(c.Request.Context(), sess, c.Param("id"), queryLimit(c))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

func (h *Handler) MarkRead(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	conv, err := h.Inbox.MarkRead(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conv})
}

func (h *Handler) Resync(c *gin.Context) {
	sess, _ := middlewares.SessionFrom(c)
	conv, err := h.Inbox.Resync(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conv})
}
