package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-router/internal/database"
	"whatsapp-router/internal/metrics"
	"whatsapp-router/internal/models"
	"whatsapp-router/internal/phone"
	"whatsapp-router/internal/routing"
	"whatsapp-router/pkg/payload"

	"github.com/rs/zerolog/log"
)

// ErrProcessing wraps any failure of the inbound or status pipelines.
var ErrProcessing = errors.New("webhook processing failed")

type MembershipResolver interface {
	Resolve(ctx context.Context, phone string) ([]uint, error)
}

type ProjectSource interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
}

// Replier sends a text to a contact and records it as outbound.
type Replier interface {
	ReplyText(ctx context.Context, contact *models.Contact, conversationID, body, replyToID string) (*models.Message, error)
}

type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

type MediaStore interface {
	Save(data []byte, mimeType, filename string) (string, error)
}

// Notifier is told about every routed inbound message. Its errors are logged only.
type Notifier interface {
	NotifyNewMessage(displayName, preview, conversationID string) error
}

type Deps struct {
	Store      *database.Store
	Resolver   MembershipResolver
	Projects   ProjectSource
	Replier    Replier
	Downloader MediaDownloader
	Media      MediaStore
	Notifier   Notifier
	Metrics    *metrics.RouterMetrics
	BotName    string
}

type Processor struct {
	Deps
	now func() time.Time
}

func NewProcessor(deps Deps) *Processor {
	return &Processor{Deps: deps, now: time.Now}
}

// Process handles one webhook delivery. Payloads without
// entry[0].changes[0].value are ignored.
func (p *Processor) Process(ctx context.Context, body *payload.WebhookPayload) error {
	value, ok := body.FirstValue()
	if !ok {
		log.Debug().Msg("Webhook payload has no value, ignoring")
		return nil
	}

	for _, msg := range value.Messages {
		start := time.Now()
		err := p.handleMessage(ctx, value, msg)
		p.Metrics.ObserveWebhookEvent("message", err)
		p.Metrics.ObserveWebhookDuration("message", time.Since(start).Seconds())
		if err != nil {
			log.Error().Err(err).Str("messageId", msg.ID).Str("waId", msg.From).Msg("Failed to handle incoming message")
			return fmt.Errorf("%w: message %s: %w", ErrProcessing, msg.ID, err)
		}
	}

	for _, st := range value.Statuses {
		start := time.Now()
		err := p.handleStatus(ctx, st)
		p.Metrics.ObserveWebhookEvent("status", err)
		p.Metrics.ObserveWebhookDuration("status", time.Since(start).Seconds())
		if err != nil {
			log.Error().Err(err).Str("messageId", st.ID).Str("status", st.Status).Msg("Failed to apply status update")
			return fmt.Errorf("%w: status %s: %w", ErrProcessing, st.ID, err)
		}
	}
	return nil
}

func (p *Processor) handleMessage(ctx context.Context, value *payload.Value, msg payload.Message) error {
	waID, profileName := msg.From, ""
	if profile := value.ContactFor(msg.From); profile != nil {
		if waID == "" {
			waID = profile.WaID
		}
		profileName = profile.Profile.Name
	}
	if waID == "" {
		return fmt.Errorf("message %s has no sender", msg.ID)
	}

	contact, err := p.findOrCreateContact(ctx, waID, profileName)
	if err != nil {
		return err
	}

	ts, ok := msg.UnixMillis()
	if !ok {
		ts = p.now().UnixMilli()
	}
	conv, err := p.Store.UpsertConversation(ctx, contact.ID, time.UnixMilli(ts), true)
	if err != nil {
		return err
	}

	prior, err := p.Store.CountMessagesByContact(ctx, contact.ID)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if prior == 0 {
		for _, text := range routing.Greetings(p.BotName) {
			if _, err := p.Replier.ReplyText(ctx, contact, conv.ID, text, ""); err != nil {
				return err
			}
		}
	}

	text := strings.TrimSpace(msg.TextBody())

	if text == routing.ResetCommand {
		if _, err := p.resolve(ctx, contact, waID, conv.ID); err != nil {
			return err
		}
		return p.saveInbound(ctx, msg, contact, conv.ID, ts)
	}

	if contact.PendingProjectSelection && text != "" {
		if err := p.choose(ctx, contact, conv.ID, text); err != nil {
			return err
		}
		return p.saveInbound(ctx, msg, contact, conv.ID, ts)
	}

	if contact.ProjectID == nil {
		decision, err := p.resolve(ctx, contact, waID, conv.ID)
		if err != nil {
			return err
		}
		if decision.State() == routing.Unassigned {
			if _, err := p.Replier.ReplyText(ctx, contact, conv.ID, routing.NotRegistered(), ""); err != nil {
				return err
			}
		}
	}

	if err := p.saveInbound(ctx, msg, contact, conv.ID, ts); err != nil {
		return err
	}
	p.notify(contact, msg, conv.ID)
	return nil
}

// findOrCreateContact looks the sender up under its own number and its
// Brazilian alternate, creating it when neither exists.
func (p *Processor) findOrCreateContact(ctx context.Context, waID, profileName string) (*models.Contact, error) {
	contact, err := p.Store.FindContactByAnyWaID(ctx, phone.Candidates(waID))
	switch {
	case errors.Is(err, database.ErrNotFound):
		contact = &models.Contact{WaID: waID, Name: profileName}
		if err := p.Store.CreateContact(ctx, contact); err != nil {
			return nil, fmt.Errorf("create contact: %w", err)
		}
		log.Info().Str("waId", waID).Str("contactId", contact.ID).Msg("New contact")
		return contact, nil
	case err != nil:
		return nil, fmt.Errorf("find contact: %w", err)
	}

	if profileName != "" && profileName != contact.Name {
		return p.Store.UpdateContact(ctx, contact.ID, map[string]interface{}{"name": profileName})
	}
	return contact, nil
}

// resolve recomputes membership for the number the contact is writing from,
// which may be the alternate of the stored waId, and applies it. The new state
// is stored before any reply is sent and stays even if the reply fails.
func (p *Processor) resolve(ctx context.Context, contact *models.Contact, waID, conversationID string) (routing.Decision, error) {
	ids, err := p.Resolver.Resolve(ctx, waID)
	if err != nil {
		return routing.Decision{}, fmt.Errorf("resolve membership: %w", err)
	}

	candidates, err := p.projectsByID(ctx, ids)
	if err != nil {
		return routing.Decision{}, err
	}

	decision := routing.Resolve(candidates)
	if err := p.apply(ctx, contact, decision); err != nil {
		return decision, err
	}
	return decision, p.sendReplies(ctx, contact, conversationID, decision)
}

func (p *Processor) choose(ctx context.Context, contact *models.Contact, conversationID, text string) error {
	offered, err := p.projectsByID(ctx, contact.AvailableProjectIDs)
	if err != nil {
		return err
	}
	names := make(map[uint]string, len(offered))
	for _, proj := range offered {
		names[proj.ID] = proj.Name
	}

	decision := routing.Choose(routing.FromContact(contact), text, names)
	if decision.State() == routing.Assigned {
		if err := p.apply(ctx, contact, decision); err != nil {
			return err
		}
	}
	return p.sendReplies(ctx, contact, conversationID, decision)
}

func (p *Processor) apply(ctx context.Context, contact *models.Contact, decision routing.Decision) error {
	next := decision.Next
	updated, err := p.Store.SaveAssignment(ctx, contact.ID, next.ProjectID, next.Pending, next.Available)
	if err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	*contact = *updated

	p.Metrics.ObserveTransition(string(decision.State()))
	evt := log.Info().Str("contactId", contact.ID).Str("waId", contact.WaID).Str("state", string(decision.State()))
	if next.ProjectID != nil {
		evt = evt.Uint("projectId", *next.ProjectID)
	}
	evt.Msg("Contact routing updated")
	return nil
}

func (p *Processor) sendReplies(ctx context.Context, contact *models.Contact, conversationID string, decision routing.Decision) error {
	for _, text := range decision.Replies {
		if _, err := p.Replier.ReplyText(ctx, contact, conversationID, text, ""); err != nil {
			return err
		}
	}
	return nil
}

// projectsByID returns the known projects among ids, skipping ids that no
// longer exist.
func (p *Processor) projectsByID(ctx context.Context, ids []uint) ([]models.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	all, err := p.Projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Project
	for _, proj := range all {
		if wanted[proj.ID] {
			out = append(out, proj)
		}
	}
	return out, nil
}

func (p *Processor) notify(contact *models.Contact, msg payload.Message, conversationID string) {
	if p.Notifier == nil {
		return
	}
	preview := msg.TextBody()
	if _, isText := msg.Content.(payload.Text); !isText {
		preview = fmt.Sprintf("Nova mensagem (%s)", msg.Type)
	}
	if err := p.Notifier.NotifyNewMessage(contact.DisplayName(), preview, conversationID); err != nil {
		log.Warn().Err(err).Str("conversationId", conversationID).Msg("New message notification dropped")
	}
}
