package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-router/internal/database"
	"whatsapp-router/internal/models"
)

// ServiceWindow is how long after the last engagement free-form messages are allowed.
const ServiceWindow = 24 * time.Hour

// ConversationView is a conversation as listed to operators.
type ConversationView struct {
	models.Conversation
	LastMessage             *models.Message `json:"lastMessage"`
	IsWithin24Hours         bool            `json:"isWithin24Hours"`
	LastRelevantMessageTime *time.Time      `json:"lastRelevantMessageTime"`
}

// ListConversations returns every conversation, most recent first, with its
// customer service window computed at read time.
func (d *Dispatcher) ListConversations(ctx context.Context) ([]ConversationView, error) {
	convs, err := d.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	now := d.now()
	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := ConversationView{Conversation: conv}

		last, err := d.store.LastMessage(ctx, conv.ID)
		switch {
		case err == nil:
			view.LastMessage = last
		case !errors.Is(err, database.ErrNotFound):
			return nil, fmt.Errorf("last message of %s: %w", conv.ID, err)
		}

		engaged, err := d.store.LastEngagementMessage(ctx, conv.ID)
		switch {
		case err == nil:
			at := time.UnixMilli(engaged.Timestamp)
			view.LastRelevantMessageTime = &at
			view.IsWithin24Hours = WithinWindow(at, now)
		case !errors.Is(err, database.ErrNotFound):
			return nil, fmt.Errorf("engagement of %s: %w", conv.ID, err)
		}

		views = append(views, view)
	}
	return views, nil
}

// WithinWindow reports whether now is less than ServiceWindow after at.
func WithinWindow(at, now time.Time) bool {
	return now.Sub(at) < ServiceWindow
}

// Messages marks the conversation read and returns its history oldest first.
func (d *Dispatcher) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if err := d.store.MarkConversationRead(ctx, conversationID); err != nil {
		return nil, err
	}
	return d.store.ListMessages(ctx, conversationID)
}

func (d *Dispatcher) ListContacts(ctx context.Context) ([]models.Contact, error) {
	return d.store.ListContacts(ctx)
}

func (d *Dispatcher) UpdateCustomName(ctx context.Context, contactID, customName string) (*models.Contact, error) {
	return d.store.UpdateContact(ctx, contactID, map[string]interface{}{"custom_name": customName})
}
