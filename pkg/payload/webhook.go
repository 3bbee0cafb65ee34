// Package payload holds the WhatsApp Cloud API webhook wire types.
package payload

import "strconv"

// WebhookPayload represents the incoming JSON payload from WhatsApp
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value *Value `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// FirstValue returns entry[0].changes[0].value, the only part of a delivery
// we act on. ok is false when the payload does not have that shape.
func (p *WebhookPayload) FirstValue() (*Value, bool) {
	if p == nil || len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil, false
	}
	v := p.Entry[0].Changes[0].Value
	return v, v != nil
}

// Contact is the sender profile attached to inbound messages
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// ContactFor picks the profile for waID, falling back to the first profile.
func (v *Value) ContactFor(waID string) *Contact {
	for i := range v.Contacts {
		if v.Contacts[i].WaID == waID {
			return &v.Contacts[i]
		}
	}
	if len(v.Contacts) > 0 {
		return &v.Contacts[0]
	}
	return nil
}

type Status struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

// UnixMillis converts the seconds timestamp WhatsApp sends to milliseconds
func (s Status) UnixMillis() (int64, bool) {
	return secondsToMillis(s.Timestamp)
}

func secondsToMillis(raw string) (int64, bool) {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return secs * 1000, true
}
