package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-router/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a row referenced by key does not exist.
var ErrNotFound = errors.New("record not found")

// Store holds the point reads and writes used by the router. Every method is a
// single-row operation; nothing here spans a transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- Contacts ---

func (s *Store) FindContactByWaID(ctx context.Context, waID string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).Where("wa_id = ?", waID).First(&contact).Error; err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

// FindContactByAnyWaID tries each id in order and returns the first match.
func (s *Store) FindContactByAnyWaID(ctx context.Context, waIDs []string) (*models.Contact, error) {
	for _, waID := range waIDs {
		contact, err := s.FindContactByWaID(ctx, waID)
		if err == nil {
			return contact, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (s *Store) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	if contact.AvailableProjectIDs == nil {
		contact.AvailableProjectIDs = datatypes.JSONSlice[uint]{}
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(contact).Error
}

// UpdateContact applies column updates and returns the fresh row.
func (s *Store) UpdateContact(ctx context.Context, id string, fields map[string]interface{}) (*models.Contact, error) {
	res := s.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetContact(ctx, id)
}

// SaveAssignment persists the routing state of a contact in one write.
func (s *Store) SaveAssignment(ctx context.Context, id string, projectID *uint, pending bool, available []uint) (*models.Contact, error) {
	ids := datatypes.JSONSlice[uint]{}
	if len(available) > 0 {
		ids = append(ids, available...)
	}
	return s.UpdateContact(ctx, id, map[string]interface{}{
		"project_id":                projectID,
		"pending_project_selection": pending,
		"available_project_ids":     ids,
	})
}

func (s *Store) ListContacts(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.db.WithContext(ctx).Preload("Project").Order("created_at DESC").Find(&contacts).Error
	return contacts, err
}

// --- Conversations ---

// UpsertConversation creates the contact's conversation or bumps the existing
// one. Inbound messages also increment the unread counter.
func (s *Store) UpsertConversation(ctx context.Context, contactID string, at time.Time, inbound bool) (*models.Conversation, error) {
	updates := map[string]interface{}{
		"last_message_at": at,
		"updated_at":      time.Now(),
	}
	conv := models.Conversation{ContactID: contactID, LastMessageAt: at}
	if inbound {
		conv.UnreadCount = 1
		updates["unread_count"] = gorm.Expr("conversations.unread_count + 1")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contact_id"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Omit(clause.Associations).
		Create(&conv).Error
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	var out models.Conversation
	if err := s.db.WithContext(ctx).Where("contact_id = ?", contactID).First(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Preload("Contact").First(&conv, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (s *Store) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("last_message_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkConversationRead(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("unread_count", 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").Order("last_message_at DESC").Find(&convs).Error
	return convs, err
}

// --- Messages ---

func (s *Store) CountMessagesByContact(ctx context.Context, contactID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).Where("contact_id = ?", contactID).Count(&n).Error
	return n, err
}

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (s *Store) UpdateMessage(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns a conversation's messages oldest first with the
// replied-to message attached.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Preload("Contact").
		Preload("ReplyTo.Contact").
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *Store) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// LastEngagementMessage finds the newest message that opens the customer
// service window: anything inbound, or an outbound template.
func (s *Store) LastEngagementMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Where(s.db.Where("direction = ?", models.DirectionInbound).
			Or("direction = ? AND template_header IS NOT NULL", models.DirectionOutbound)).
		Order("timestamp DESC").
		First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// --- Projects ---

func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).Order("id ASC").Find(&projects).Error
	return projects, err
}

func (s *Store) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

func (s *Store) CreateProject(ctx context.Context, project *models.Project) error {
	return s.db.WithContext(ctx).Create(project).Error
}

func (s *Store) UpdateProject(ctx context.Context, id uint, fields map[string]interface{}) (*models.Project, error) {
	if len(fields) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetProject(ctx, id)
}

func (s *Store) DeleteProject(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Project{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountContactsByProject maps project id to the number of contacts bound to it
func (s *Store) CountContactsByProject(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		ProjectID uint
		Total     int64
	}
	err := s.db.WithContext(ctx).Model(&models.Contact{}).
		Select("project_id, COUNT(*) AS total").
		Where("project_id IS NOT NULL").
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ProjectID] = r.Total
	}
	return counts, nil
}

func (s *Store) FindProjectByExternalAPIKey(ctx context.Context, key string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Where("external_api_key = ?", key).First(&project).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// FindProjectByAPIURLFragment returns the first project, by id, whose apiUrl contains fragment
func (s *Store) FindProjectByAPIURLFragment(ctx context.Context, fragment string) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Where("api_url LIKE ?", "%"+fragment+"%").
		Order("id ASC").
		First(&project).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// --- Users ---

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) UpdateUser(ctx context.Context, id uint, fields map[string]interface{}) (*models.User, error) {
	if len(fields) > 0 {
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces the user's refresh token with next only while it
// still equals current. It reports whether the swap happened.
func (s *Store) SwapRefreshToken(ctx context.Context, id uint, current, next string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", id, current).
		Update("refresh_token", next)
	return res.RowsAffected == 1, res.Error
}
