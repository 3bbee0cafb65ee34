package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Direction tells whether a message came from the contact or from us
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// MessageType is the closed set of message kinds we persist
type MessageType string

const (
	MessageTypeText        MessageType = "TEXT"
	MessageTypeImage       MessageType = "IMAGE"
	MessageTypeVideo       MessageType = "VIDEO"
	MessageTypeAudio       MessageType = "AUDIO"
	MessageTypeSticker     MessageType = "STICKER"
	MessageTypeDocument    MessageType = "DOCUMENT"
	MessageTypeLocation    MessageType = "LOCATION"
	MessageTypeReaction    MessageType = "REACTION"
	MessageTypeUnsupported MessageType = "UNSUPPORTED"
)

var messageTypes = map[string]MessageType{
	"text":        MessageTypeText,
	"image":       MessageTypeImage,
	"video":       MessageTypeVideo,
	"audio":       MessageTypeAudio,
	"sticker":     MessageTypeSticker,
	"document":    MessageTypeDocument,
	"location":    MessageTypeLocation,
	"reaction":    MessageTypeReaction,
	"unsupported": MessageTypeUnsupported,
}

// ParseMessageType maps a WhatsApp message type, unknown values become UNSUPPORTED
func ParseMessageType(s string) MessageType {
	if t, ok := messageTypes[s]; ok {
		return t
	}
	return MessageTypeUnsupported
}

// MessageStatus is the delivery lifecycle of a message
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
	MessageStatusFailed    MessageStatus = "FAILED"
)

var messageStatuses = map[string]MessageStatus{
	"sent":      MessageStatusSent,
	"delivered": MessageStatusDelivered,
	"read":      MessageStatusRead,
	"failed":    MessageStatusFailed,
}

// ParseMessageStatus maps a WhatsApp status name. Unknown names are treated as SENT.
// The second result reports whether the name was recognised.
func ParseMessageStatus(s string) (MessageStatus, bool) {
	if st, ok := messageStatuses[s]; ok {
		return st, true
	}
	return MessageStatusSent, false
}

// Project is an external system whose users we route conversations to
type Project struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	APIURL            string    `gorm:"column:api_url;type:text" json:"apiUrl"`
	UserNumbersAPIURL string    `gorm:"column:user_numbers_api_url;type:text" json:"userNumbersApiUrl"`
	APIKey            string    `gorm:"column:api_key;type:text" json:"apiKey,omitempty"`
	ExternalAPIKey    *string   `gorm:"column:external_api_key;type:varchar(128);uniqueIndex" json:"-"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}

// CanProbe reports whether the project exposes a membership endpoint
func (p Project) CanProbe() bool {
	return p.APIURL != "" && p.UserNumbersAPIURL != ""
}

// Contact is a WhatsApp user identified by their wa_id
type Contact struct {
	ID                      string                    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	WaID                    string                    `gorm:"column:wa_id;type:varchar(32);uniqueIndex;not null" json:"waId"`
	Name                    string                    `gorm:"type:varchar(255)" json:"name"`
	CustomName              string                    `gorm:"type:varchar(255)" json:"customName"`
	ProjectID               *uint                     `gorm:"index" json:"projectId"`
	Project                 *Project                  `json:"project,omitempty"`
	PendingProjectSelection bool                      `gorm:"not null;default:false" json:"pendingProjectSelection"`
	AvailableProjectIDs     datatypes.JSONSlice[uint] `gorm:"column:available_project_ids" json:"availableProjectIds"`
	CreatedAt               time.Time                 `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt               time.Time                 `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Contact) TableName() string {
	return "contacts"
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// DisplayName prefers the operator-assigned name, then the WhatsApp profile name
func (c *Contact) DisplayName() string {
	if c.CustomName != "" {
		return c.CustomName
	}
	if c.Name != "" {
		return c.Name
	}
	return c.WaID
}

// Conversation is the single thread we keep per contact
type Conversation struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ContactID     string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"contactId"`
	Contact       *Contact  `json:"contact,omitempty"`
	LastMessageAt time.Time `gorm:"index" json:"lastMessageAt"`
	UnreadCount   int       `gorm:"not null;default:0" json:"unreadCount"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Message is keyed by the WhatsApp message id (wamid)
type Message struct {
	ID             string        `gorm:"primaryKey;type:varchar(191)" json:"id"`
	ConversationID string        `gorm:"type:varchar(36);index;not null" json:"conversationId"`
	ContactID      string        `gorm:"type:varchar(36);index;not null" json:"contactId"`
	Contact        *Contact      `json:"contact,omitempty"`
	Direction      Direction     `gorm:"type:varchar(16);not null" json:"direction"`
	Type           MessageType   `gorm:"type:varchar(16);not null" json:"type"`
	Timestamp      int64         `gorm:"index;not null" json:"timestamp"` // epoch milliseconds
	Status         MessageStatus `gorm:"type:varchar(16);not null" json:"status"`

	TextBody       string   `gorm:"type:text" json:"textBody,omitempty"`
	Caption        string   `gorm:"type:text" json:"caption,omitempty"`
	MediaID        string   `gorm:"type:varchar(191)" json:"mediaId,omitempty"`
	MediaMimeType  string   `gorm:"type:varchar(100)" json:"mediaMimeType,omitempty"`
	MediaFilename  string   `gorm:"type:varchar(255)" json:"mediaFilename,omitempty"`
	MediaLocalPath string   `gorm:"type:text" json:"mediaLocalPath,omitempty"`
	IsVoice        bool     `json:"isVoice,omitempty"`
	IsAnimated     bool     `json:"isAnimated,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	ReactionEmoji  string   `gorm:"type:varchar(32)" json:"reactionEmoji,omitempty"`

	ReplyToID *string  `gorm:"type:varchar(191);index" json:"replyToId,omitempty"`
	ReplyTo   *Message `gorm:"foreignKey:ReplyToID" json:"replyTo,omitempty"`

	TemplateHeader *string `gorm:"type:text" json:"templateHeader,omitempty"`
	TemplateFooter *string `gorm:"type:text" json:"templateFooter,omitempty"`

	SentAt      *time.Time `json:"sentAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

// User is a dashboard operator. Password holds a bcrypt hash and RefreshToken
// the single refresh token currently valid for the user.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        *string   `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	Password     *string   `gorm:"type:varchar(255)" json:"-"`
	Role         string    `gorm:"type:varchar(32);not null;default:user" json:"role"`
	RefreshToken *string   `gorm:"column:refresh_token;type:text" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// All lists every model for AutoMigrate and data copies, parents first
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&Contact{},
		&Conversation{},
		&Message{},
	}
}
