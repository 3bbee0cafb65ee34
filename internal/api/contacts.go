package api

import (
	"net/http"

	"whatsapp-router/internal/models"
	"whatsapp-router/internal/outbound"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	Dispatcher *outbound.Dispatcher
}

func NewContactHandler(d *outbound.Dispatcher) *ContactHandler {
	return &ContactHandler{Dispatcher: d}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.Dispatcher.ListContacts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// Return empty array instead of null
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}

type UpdateCustomNameRequest struct {
	CustomName string `json:"customName"`
}

func (h *ContactHandler) UpdateCustomName(c *gin.Context) {
	var req UpdateCustomNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.Dispatcher.UpdateCustomName(c.Request.Context(), c.Param("id"), req.CustomName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}
