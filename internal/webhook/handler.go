package webhook

import (
	"context"
	"errors"
	"net/http"

	"whatsapp-router/pkg/payload"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrVerifyTokenUnset means no verify token is configured, so no subscription can be accepted.
var ErrVerifyTokenUnset = errors.New("webhook verify token not configured")

// EventProcessor consumes one decoded webhook delivery.
type EventProcessor interface {
	Process(ctx context.Context, body *payload.WebhookPayload) error
}

type Handler struct {
	verifyToken string
	processor   EventProcessor
}

func NewHandler(verifyToken string, processor EventProcessor) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		processor:   processor,
	}
}

// Verify checks a subscription handshake against the configured token.
func Verify(mode, token, expected string) (bool, error) {
	if expected == "" {
		return false, ErrVerifyTokenUnset
	}
	return mode == "subscribe" && token == expected, nil
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	ok, err := Verify(mode, token, h.verifyToken)
	if err != nil {
		log.Error().Err(err).Msg("Webhook verification rejected")
		c.Status(http.StatusForbidden)
		return
	}
	if !ok {
		log.Warn().Str("mode", mode).Msg("Webhook verification failed: invalid token or mode")
		c.Status(http.StatusForbidden)
		return
	}

	log.Info().Msg("Webhook verified successfully")
	c.String(http.StatusOK, challenge)
}

func (h *Handler) HandleMessage(c *gin.Context) {
	var body payload.WebhookPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		// Undecodable deliveries are dropped like ones without a value.
		log.Warn().Err(err).Msg("Ignoring undecodable webhook payload")
		c.Status(http.StatusOK)
		return
	}

	if err := h.processor.Process(c.Request.Context(), &body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrProcessing.Error()})
		return
	}
	c.Status(http.StatusOK)
}
