// Package outbound sends messages through WhatsApp and records what was sent.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-router/internal/database"
	"whatsapp-router/internal/metrics"
	"whatsapp-router/internal/models"
	"whatsapp-router/internal/whatsapp"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrInvalidInput = errors.New("invalid input")

// Transport is the subset of the Graph API client used for sending.
type Transport interface {
	SendText(ctx context.Context, to, body, replyToID string) (string, error)
	SendMedia(ctx context.Context, to, kind, link, caption, filename string) (string, error)
	SendTemplate(ctx context.Context, to, templateName, languageCode string, components []whatsapp.ComponentObj) (string, error)
}

// ProjectMatcher finds the project a template request came from.
type ProjectMatcher interface {
	MatchByHost(ctx context.Context, host string) (*models.Project, error)
}

type Dispatcher struct {
	store     *database.Store
	transport Transport
	projects  ProjectMatcher
	metrics   *metrics.RouterMetrics
	now       func() time.Time
}

func NewDispatcher(store *database.Store, transport Transport, projects ProjectMatcher, m *metrics.RouterMetrics) *Dispatcher {
	return &Dispatcher{
		store:     store,
		transport: transport,
		projects:  projects,
		metrics:   m,
		now:       time.Now,
	}
}

// ReplyText sends body to contact and records it in conversationID. Nothing is
// stored when the send fails.
func (d *Dispatcher) ReplyText(ctx context.Context, contact *models.Contact, conversationID, body, replyToID string) (*models.Message, error) {
	id, err := d.transport.SendText(ctx, contact.WaID, body, replyToID)
	d.metrics.ObserveOutbound("text", err)
	if err != nil {
		return nil, fmt.Errorf("send text to %s: %w", contact.WaID, err)
	}

	msg := d.newMessage(id, conversationID, contact.ID, models.MessageTypeText)
	msg.TextBody = body
	if replyToID != "" {
		msg.ReplyToID = &replyToID
	}
	if err := d.record(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// SendText sends a free-form text into an existing conversation.
func (d *Dispatcher) SendText(ctx context.Context, conversationID, body, replyToID string) (*models.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	conv, err := d.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return d.ReplyText(ctx, conv.Contact, conv.ID, body, replyToID)
}

// MediaInput describes a media message sent by public link.
type MediaInput struct {
	Type     string `json:"type" binding:"required"`
	Link     string `json:"link" binding:"required"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

func (d *Dispatcher) SendMedia(ctx context.Context, conversationID string, in MediaInput) (*models.Message, error) {
	msgType := models.ParseMessageType(in.Type)
	switch msgType {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeDocument:
	default:
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrInvalidInput, in.Type)
	}

	conv, err := d.conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	id, err := d.transport.SendMedia(ctx, conv.Contact.WaID, in.Type, in.Link, in.Caption, in.Filename)
	d.metrics.ObserveOutbound("media", err)
	if err != nil {
		return nil, fmt.Errorf("send %s to %s: %w", in.Type, conv.Contact.WaID, err)
	}

	msg := d.newMessage(id, conv.ID, conv.ContactID, msgType)
	msg.Caption = in.Caption
	msg.MediaFilename = in.Filename
	msg.MediaLocalPath = in.Link
	if err := d.record(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Dispatcher) conversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := d.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Contact == nil {
		return nil, fmt.Errorf("conversation %s has no contact: %w", id, database.ErrNotFound)
	}
	return conv, nil
}

func (d *Dispatcher) newMessage(id, conversationID, contactID string, msgType models.MessageType) *models.Message {
	now := d.now()
	return &models.Message{
		ID:             messageID(id),
		ConversationID: conversationID,
		ContactID:      contactID,
		Direction:      models.DirectionOutbound,
		Type:           msgType,
		Timestamp:      now.UnixMilli(),
		Status:         models.MessageStatusSent,
		SentAt:         &now,
	}
}

// record stores a sent message and bumps its conversation.
func (d *Dispatcher) record(ctx context.Context, msg *models.Message) error {
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("record outbound message %s: %w", msg.ID, err)
	}
	if err := d.store.TouchConversation(ctx, msg.ConversationID, time.UnixMilli(msg.Timestamp)); err != nil {
		return fmt.Errorf("touch conversation %s: %w", msg.ConversationID, err)
	}
	log.Debug().Str("messageId", msg.ID).Str("conversationId", msg.ConversationID).Str("type", string(msg.Type)).Msg("Outbound message recorded")
	return nil
}

// messageID keeps the id WhatsApp returned, or invents a placeholder when the
// API accepted the message without one.
func messageID(id string) string {
	if id != "" {
		return id
	}
	return "temp_" + uuid.NewString()
}
