package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type TemplateSource interface {
	GetTemplates(ctx context.Context) (interface{}, error)
}

type WhatsAppHandler struct {
	Client TemplateSource
}

func NewWhatsAppHandler(client TemplateSource) *WhatsAppHandler {
	return &WhatsAppHandler{Client: client}
}

// GetTemplates passes the business account's template list through.
func (h *WhatsAppHandler) GetTemplates(c *gin.Context) {
	templates, err := h.Client.GetTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, templates)
}
