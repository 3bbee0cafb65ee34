package outbound

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsapp-router/internal/database"
	"whatsapp-router/internal/models"
	"whatsapp-router/internal/phone"
	"whatsapp-router/internal/whatsapp"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const templateFooter = "Plataforma feita por Alessandro Cardoso"

type InviteInput struct {
	To          string `json:"to" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Platform    string `json:"platform" binding:"required"`
	PlatformURL string `json:"platformUrl" binding:"required"`
	Login       string `json:"login" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

type PasswordResetInput struct {
	To               string `json:"to" binding:"required"`
	Name             string `json:"name" binding:"required"`
	PlatformName     string `json:"platformName" binding:"required"`
	PasswordResetURL string `json:"passwordResetUrl" binding:"required"`
}

// Invite sends the access_created template. The contact is bound to the
// project whose apiUrl matches host, when there is one.
func (d *Dispatcher) Invite(ctx context.Context, in InviteInput, host string) (*models.Message, error) {
	components := []whatsapp.ComponentObj{
		{Type: "header", Parameters: []whatsapp.ParameterObj{
			whatsapp.TextParam("name", in.Name),
		}},
		{Type: "body", Parameters: []whatsapp.ParameterObj{
			whatsapp.TextParam("platform", in.Platform),
			whatsapp.TextParam("platform_url", in.PlatformURL),
			whatsapp.TextParam("login", in.Login),
			whatsapp.TextParam("password", in.Password),
		}},
	}

	id, err := d.transport.SendTemplate(ctx, in.To, "access_created", "en", components)
	d.metrics.ObserveOutbound("template", err)
	if err != nil {
		return nil, fmt.Errorf("send invite to %s: %w", in.To, err)
	}

	project := d.matchProject(ctx, host)
	contact, err := d.store.FindContactByAnyWaID(ctx, phone.Candidates(in.To))
	switch {
	case errors.Is(err, database.ErrNotFound):
		contact = &models.Contact{WaID: in.To, CustomName: in.Name}
		if project != nil {
			contact.ProjectID = &project.ID
		}
		err = d.store.CreateContact(ctx, contact)
	case err == nil:
		fields := map[string]interface{}{"custom_name": in.Name}
		if project != nil {
			bindProject(fields, project.ID)
		}
		contact, err = d.store.UpdateContact(ctx, contact.ID, fields)
	}
	if err != nil {
		return nil, fmt.Errorf("save invited contact: %w", err)
	}

	header := "Bem vindo " + in.Name
	body := strings.Join([]string{
		header,
		fmt.Sprintf("Olá, seu acesso à plataforma %s foi criado.", in.Platform),
		"Você pode estar acessando através desse link:",
		in.PlatformURL,
		"Com o seguinte acesso:",
		in.Login,
		"Senha: " + in.Password,
		"",
		"Por favor mude a sua senha após o primeiro acesso.",
		templateFooter,
	}, "\n")

	return d.recordTemplate(ctx, id, contact, header, body)
}

// PasswordReset sends the password_reset_url template. A matching project is
// only applied to contacts that have none yet.
func (d *Dispatcher) PasswordReset(ctx context.Context, in PasswordResetInput, host string) (*models.Message, error) {
	components := []whatsapp.ComponentObj{
		{Type: "header", Parameters: []whatsapp.ParameterObj{
			whatsapp.TextParam("platform_name", in.PlatformName),
		}},
		{Type: "body", Parameters: []whatsapp.ParameterObj{
			whatsapp.TextParam("name", in.Name),
			whatsapp.TextParam("password_reset_url", in.PasswordResetURL),
		}},
	}

	id, err := d.transport.SendTemplate(ctx, in.To, "password_reset_url", "pt_BR", components)
	d.metrics.ObserveOutbound("template", err)
	if err != nil {
		return nil, fmt.Errorf("send password reset to %s: %w", in.To, err)
	}

	project := d.matchProject(ctx, host)
	contact, err := d.store.FindContactByAnyWaID(ctx, phone.Candidates(in.To))
	switch {
	case errors.Is(err, database.ErrNotFound):
		contact = &models.Contact{WaID: in.To, Name: in.Name, CustomName: in.Name}
		if project != nil {
			contact.ProjectID = &project.ID
		}
		err = d.store.CreateContact(ctx, contact)
	case err == nil:
		fields := map[string]interface{}{"custom_name": in.Name}
		if contact.ProjectID == nil && project != nil {
			bindProject(fields, project.ID)
		}
		contact, err = d.store.UpdateContact(ctx, contact.ID, fields)
	}
	if err != nil {
		return nil, fmt.Errorf("save password reset contact: %w", err)
	}

	body := strings.Join([]string{
		"Olá " + in.Name,
		"Segue o link para redefinição de senha da sua conta:",
		in.PasswordResetURL,
		"Se você não solicitou redefinição de senha, desconsidere essa mensagem.",
	}, "\n")

	return d.recordTemplate(ctx, id, contact, "Redefinição de senha "+in.PlatformName, body)
}

func (d *Dispatcher) recordTemplate(ctx context.Context, id string, contact *models.Contact, header, body string) (*models.Message, error) {
	msg := d.newMessage(id, "", contact.ID, models.MessageTypeText)
	conv, err := d.store.UpsertConversation(ctx, contact.ID, *msg.SentAt, false)
	if err != nil {
		return nil, err
	}

	footer := templateFooter
	msg.ConversationID = conv.ID
	msg.TextBody = body
	msg.TemplateHeader = &header
	msg.TemplateFooter = &footer
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("record template message %s: %w", msg.ID, err)
	}

	log.Info().Str("waId", contact.WaID).Str("messageId", msg.ID).Str("header", header).Msg("Template message sent")
	return msg, nil
}

// matchProject is best effort: a lookup failure only means no binding.
func (d *Dispatcher) matchProject(ctx context.Context, host string) *models.Project {
	if d.projects == nil {
		return nil
	}
	p, err := d.projects.MatchByHost(ctx, host)
	if err != nil {
		log.Debug().Err(err).Str("host", host).Msg("No project matches request host")
		return nil
	}
	return p
}

// bindProject assigns a project and leaves any pending selection.
func bindProject(fields map[string]interface{}, projectID uint) {
	fields["project_id"] = projectID
	fields["pending_project_selection"] = false
	fields["available_project_ids"] = datatypes.JSONSlice[uint]{}
}
