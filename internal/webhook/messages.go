package webhook

import (
	"context"
	"fmt"
	"time"

	"whatsapp-router/internal/models"
	"whatsapp-router/pkg/payload"

	"github.com/rs/zerolog/log"
)

// saveInbound stores msg with its type-specific fields. Media is downloaded
// and stored before the row is written.
func (p *Processor) saveInbound(ctx context.Context, msg payload.Message, contact *models.Contact, conversationID string, ts int64) error {
	row := &models.Message{
		ID:             msg.ID,
		ConversationID: conversationID,
		ContactID:      contact.ID,
		Direction:      models.DirectionInbound,
		Type:           models.ParseMessageType(msg.Content.Kind()),
		Timestamp:      ts,
		Status:         models.MessageStatusDelivered,
	}
	if reply := msg.ReplyToID(); reply != "" {
		row.ReplyToID = &reply
	}

	switch c := msg.Content.(type) {
	case payload.Text:
		row.TextBody = c.Body
	case payload.Media:
		row.Caption = c.Caption
		row.MediaID = c.ID
		row.MediaMimeType = c.MimeType
		row.MediaFilename = c.Filename
		row.IsVoice = c.Voice
		row.IsAnimated = c.Animated
		ref, err := p.storeMedia(ctx, c)
		if err != nil {
			return err
		}
		row.MediaLocalPath = ref
	case payload.Location:
		lat, lng := c.Latitude, c.Longitude
		row.Latitude = &lat
		row.Longitude = &lng
	case payload.Reaction:
		row.ReactionEmoji = c.Emoji
		if c.MessageID != "" {
			target := c.MessageID
			row.ReplyToID = &target
		}
	case payload.Unsupported:
		log.Debug().Str("messageId", msg.ID).Str("type", c.Type).Msg("Storing unsupported message")
	}

	if err := p.Store.CreateMessage(ctx, row); err != nil {
		return fmt.Errorf("save inbound message %s: %w", msg.ID, err)
	}
	log.Info().Str("messageId", msg.ID).Str("waId", contact.WaID).Str("type", string(row.Type)).Msg("Inbound message saved")
	return nil
}

func (p *Processor) storeMedia(ctx context.Context, m payload.Media) (string, error) {
	data, mimeType, err := p.Downloader.DownloadMedia(ctx, m.ID)
	if err != nil {
		return "", fmt.Errorf("download media %s: %w", m.ID, err)
	}
	if m.MimeType != "" {
		mimeType = m.MimeType
	}
	ref, err := p.Media.Save(data, mimeType, m.Filename)
	if err != nil {
		return "", fmt.Errorf("store media %s: %w", m.ID, err)
	}
	return ref, nil
}

var statusColumns = map[models.MessageStatus]string{
	models.MessageStatusSent:      "sent_at",
	models.MessageStatusDelivered: "delivered_at",
	models.MessageStatusRead:      "read_at",
	models.MessageStatusFailed:    "failed_at",
}

// handleStatus applies one delivery receipt. Each lifecycle timestamp is last
// write wins; a FAILED message keeps its status when a later receipt arrives.
func (p *Processor) handleStatus(ctx context.Context, st payload.Status) error {
	current, err := p.Store.GetMessage(ctx, st.ID)
	if err != nil {
		return err
	}

	status, known := models.ParseMessageStatus(st.Status)
	fields := map[string]interface{}{"status": status}

	if known {
		at := p.now()
		if ms, ok := st.UnixMillis(); ok {
			at = time.UnixMilli(ms)
		}
		fields[statusColumns[status]] = at
	} else {
		log.Warn().Str("messageId", st.ID).Str("status", st.Status).Msg("Unknown status, recording as SENT")
	}

	if current.Status == models.MessageStatusFailed && status != models.MessageStatusFailed {
		delete(fields, "status")
		log.Warn().Str("messageId", st.ID).Str("status", st.Status).Msg("Ignoring status change on failed message")
	}
	if status == models.MessageStatusFailed && len(st.Errors) > 0 {
		log.Warn().Str("messageId", st.ID).Int("code", st.Errors[0].Code).Str("title", st.Errors[0].Title).Msg("Message delivery failed")
	}

	if len(fields) == 0 {
		return nil
	}
	return p.Store.UpdateMessage(ctx, st.ID, fields)
}
