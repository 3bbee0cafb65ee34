package payload

import (
	"encoding/json"
	"fmt"
)

// Message is one inbound message. Content holds exactly one variant, chosen
// by the message type; anything we do not model becomes Unsupported.
type Message struct {
	From      string
	ID        string
	Timestamp string
	Type      string
	Context   *Context
	Content   Content
}

type Context struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Content is implemented by Text, Media, Location, Reaction and Unsupported.
type Content interface {
	Kind() string
}

type Text struct {
	Body string
}

type Media struct {
	Type     string
	ID       string
	MimeType string
	SHA256   string
	Caption  string
	Filename string
	Voice    bool
	Animated bool
}

type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

type Reaction struct {
	MessageID string
	Emoji     string
}

// Unsupported keeps the original type name of a message we do not model.
type Unsupported struct {
	Type string
}

func (Text) Kind() string        { return "text" }
func (m Media) Kind() string     { return m.Type }
func (Location) Kind() string    { return "location" }
func (Reaction) Kind() string    { return "reaction" }
func (Unsupported) Kind() string { return "unsupported" }

type wireMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	Voice    bool   `json:"voice,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

type wireMessage struct {
	From      string   `json:"from"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Context   *Context `json:"context,omitempty"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *wireMedia `json:"image,omitempty"`
	Video    *wireMedia `json:"video,omitempty"`
	Audio    *wireMedia `json:"audio,omitempty"`
	Sticker  *wireMedia `json:"sticker,omitempty"`
	Document *wireMedia `json:"document,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name,omitempty"`
		Address   string  `json:"address,omitempty"`
	} `json:"location,omitempty"`
	Reaction *struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	} `json:"reaction,omitempty"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	*m = Message{
		From:      w.From,
		ID:        w.ID,
		Timestamp: w.Timestamp,
		Type:      w.Type,
		Context:   w.Context,
		Content:   w.content(),
	}
	return nil
}

func (w *wireMessage) content() Content {
	media := func(wm *wireMedia) Content {
		if wm == nil {
			return Unsupported{Type: w.Type}
		}
		return Media{
			Type:     w.Type,
			ID:       wm.ID,
			MimeType: wm.MimeType,
			SHA256:   wm.SHA256,
			Caption:  wm.Caption,
			Filename: wm.Filename,
			Voice:    wm.Voice,
			Animated: wm.Animated,
		}
	}

	switch w.Type {
	case "text":
		if w.Text != nil {
			return Text{Body: w.Text.Body}
		}
	case "image":
		return media(w.Image)
	case "video":
		return media(w.Video)
	case "audio":
		return media(w.Audio)
	case "sticker":
		return media(w.Sticker)
	case "document":
		return media(w.Document)
	case "location":
		if w.Location != nil {
			return Location{
				Latitude:  w.Location.Latitude,
				Longitude: w.Location.Longitude,
				Name:      w.Location.Name,
				Address:   w.Location.Address,
			}
		}
	case "reaction":
		if w.Reaction != nil {
			return Reaction{MessageID: w.Reaction.MessageID, Emoji: w.Reaction.Emoji}
		}
	}
	return Unsupported{Type: w.Type}
}

// TextBody returns the body of a text message and "" for every other kind.
func (m Message) TextBody() string {
	if t, ok := m.Content.(Text); ok {
		return t.Body
	}
	return ""
}

// ReplyToID is the id of the message this one quotes, if any.
func (m Message) ReplyToID() string {
	if m.Context == nil {
		return ""
	}
	return m.Context.ID
}

func (m Message) UnixMillis() (int64, bool) {
	return secondsToMillis(m.Timestamp)
}
