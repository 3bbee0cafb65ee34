package whatsapp

import (
	"context"
	"fmt"
	"time"

	"whatsapp-router/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client talks to the WhatsApp Cloud API (Graph API).
type Client struct {
	httpClient    *resty.Client
	phoneNumberID string
	wabaID        string
}

func NewClient(cfg *config.Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.GraphAPIURL).
		SetAuthToken(cfg.WhatsAppToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	log.Info().Str("baseURL", cfg.GraphAPIURL).Str("phoneNumberID", cfg.PhoneNumberID).Msg("WhatsApp client configured")

	return &Client{
		httpClient:    httpClient,
		phoneNumberID: cfg.PhoneNumberID,
		wabaID:        cfg.WhatsAppBusinessAccountID,
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Context          *ContextObj  `json:"context,omitempty"`
	Text             *TextObj     `json:"text,omitempty"`
	Image            *MediaObj    `json:"image,omitempty"`
	Video            *MediaObj    `json:"video,omitempty"`
	Audio            *MediaObj    `json:"audio,omitempty"`
	Document         *MediaObj    `json:"document,omitempty"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type ContextObj struct {
	MessageID string `json:"message_id"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"` // For documents
}

type TemplateObj struct {
	Name       string         `json:"name"`
	Language   LanguageObj    `json:"language"`
	Components []ComponentObj `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type ComponentObj struct {
	Type       string         `json:"type"`
	Parameters []ParameterObj `json:"parameters"`
}

type ParameterObj struct {
	Type          string `json:"type"`
	ParameterName string `json:"parameter_name,omitempty"`
	Text          string `json:"text,omitempty"`
}

// TextParam builds a named text parameter for a template component.
func TextParam(name, value string) ParameterObj {
	return ParameterObj{Type: "text", ParameterName: name, Text: value}
}

type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the wamid of the first accepted message, or "".
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// --- Messaging Methods ---

// SendRawMessage posts msg and returns the id WhatsApp assigned to it. The id
// may be empty when the API accepted the message without echoing one.
func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) (string, error) {
	url := fmt.Sprintf("/%s/messages", c.phoneNumberID)
	msg.MessagingProduct = "whatsapp"

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&SendResponse{}).
		Post(url)
	if err != nil {
		log.Error().Err(err).Str("to", msg.To).Str("type", msg.Type).Msg("WhatsApp API: send request failed")
		return "", fmt.Errorf("WhatsApp API send request failed: %w", err)
	}
	if resp.IsError() {
		log.Error().Str("to", msg.To).Str("type", msg.Type).Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msg("WhatsApp API: send returned an error")
		return "", fmt.Errorf("WhatsApp API send error: status %s, body: %s", resp.Status(), resp.String())
	}

	id := resp.Result().(*SendResponse).MessageID()
	log.Debug().Str("to", msg.To).Str("type", msg.Type).Str("messageId", id).Msg("WhatsApp message sent")
	return id, nil
}

func (c *Client) SendText(ctx context.Context, to, body, replyToID string) (string, error) {
	msg := GenericMessage{
		RecipientType: "individual",
		To:            to,
		Type:          "text",
		Text:          &TextObj{Body: body},
	}
	if replyToID != "" {
		msg.Context = &ContextObj{MessageID: replyToID}
	}
	return c.SendRawMessage(ctx, msg)
}

// SendMedia sends an image, video, audio or document by public link.
func (c *Client) SendMedia(ctx context.Context, to, kind, link, caption, filename string) (string, error) {
	media := &MediaObj{Link: link, Caption: caption}
	msg := GenericMessage{
		RecipientType: "individual",
		To:            to,
		Type:          kind,
	}

	switch kind {
	case "image":
		msg.Image = media
	case "video":
		msg.Video = media
	case "audio":
		media.Caption = ""
		msg.Audio = media
	case "document":
		media.Filename = filename
		msg.Document = media
	default:
		return "", fmt.Errorf("unsupported media type %q", kind)
	}
	return c.SendRawMessage(ctx, msg)
}

func (c *Client) SendTemplate(ctx context.Context, to, templateName, languageCode string, components []ComponentObj) (string, error) {
	msg := GenericMessage{
		RecipientType: "individual",
		To:            to,
		Type:          "template",
		Template: &TemplateObj{
			Name:       templateName,
			Language:   LanguageObj{Code: languageCode},
			Components: components,
		},
	}
	return c.SendRawMessage(ctx, msg)
}

// --- Media Methods ---

type MediaInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// DownloadMedia resolves a media id to its temporary URL and fetches the bytes.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&MediaInfo{}).
		Get("/" + mediaID)
	if err != nil {
		return nil, "", fmt.Errorf("WhatsApp API media lookup failed: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("WhatsApp API media lookup error: status %s, body: %s", resp.Status(), resp.String())
	}

	info := resp.Result().(*MediaInfo)
	if info.URL == "" {
		return nil, "", fmt.Errorf("WhatsApp API returned no url for media %s", mediaID)
	}

	file, err := c.httpClient.R().
		SetContext(ctx).
		Get(info.URL)
	if err != nil {
		return nil, "", fmt.Errorf("media download failed: %w", err)
	}
	if file.IsError() {
		return nil, "", fmt.Errorf("media download error: status %s", file.Status())
	}

	log.Debug().Str("mediaId", mediaID).Int("bytes", len(file.Body())).Msg("Media downloaded")
	return file.Body(), info.MimeType, nil
}

// --- Template Management Methods ---

// GetTemplates returns the raw message_templates listing of the business account.
func (c *Client) GetTemplates(ctx context.Context) (interface{}, error) {
	var result interface{}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/%s/message_templates", c.wabaID))
	if err != nil {
		return nil, fmt.Errorf("WhatsApp API template list failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("WhatsApp API template list error: status %s, body: %s", resp.Status(), resp.String())
	}
	return result, nil
}
