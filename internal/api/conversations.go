package api

import (
	"net/http"

	"whatsapp-router/internal/outbound"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	Dispatcher *outbound.Dispatcher
}

func NewConversationHandler(d *outbound.Dispatcher) *ConversationHandler {
	return &ConversationHandler{Dispatcher: d}
}

func (h *ConversationHandler) GetConversations(c *gin.Context) {
	views, err := h.Dispatcher.ListConversations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	msgs, err := h.Dispatcher.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type SendTextRequest struct {
	Text      string `json:"text" binding:"required"`
	ReplyToID string `json:"replyToId"`
}

func (h *ConversationHandler) SendText(c *gin.Context) {
	var req SendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Dispatcher.SendText(c.Request.Context(), c.Param("id"), req.Text, req.ReplyToID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ConversationHandler) SendMedia(c *gin.Context) {
	var req outbound.MediaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Dispatcher.SendMedia(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Invite sends the access template. The request Host picks the project.
func (h *ConversationHandler) Invite(c *gin.Context) {
	var req outbound.InviteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Dispatcher.Invite(c.Request.Context(), req, c.Request.Host)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ConversationHandler) PasswordReset(c *gin.Context) {
	var req outbound.PasswordResetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Dispatcher.PasswordReset(c.Request.Context(), req, c.Request.Host)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
