// Package users manages dashboard operators and their login sessions.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsapp-router/internal/auth"
	"whatsapp-router/internal/database"
	"whatsapp-router/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalid            = errors.New("invalid user")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

const defaultRole = "user"

// Input carries the writable fields of a user. Nil fields are left unchanged
// on update.
type Input struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Profile is the public view of a user returned on login.
type Profile struct {
	ID    uint   `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type Tokens struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type Session struct {
	Tokens
	User Profile `json:"user"`
}

type Service struct {
	store  *database.Store
	signer *auth.Signer
	cost   int
}

func NewService(store *database.Store, signer *auth.Signer) *Service {
	return &Service{store: store, signer: signer, cost: bcrypt.DefaultCost}
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	return u, mapErr(err)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.User, error) {
	fields, err := s.fields(ctx, 0, in)
	if err != nil {
		return nil, err
	}

	u := &models.User{Role: defaultRole}
	if v, ok := fields["email"].(string); ok {
		u.Email = &v
	}
	if v, ok := fields["password"].(string); ok {
		u.Password = &v
	}
	if v, ok := fields["role"].(string); ok {
		u.Role = v
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	log.Info().Uint("userId", u.ID).Str("role", u.Role).Msg("User created")
	return u, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.User, error) {
	fields, err := s.fields(ctx, id, in)
	if err != nil {
		return nil, err
	}
	u, err := s.store.UpdateUser(ctx, id, fields)
	return u, mapErr(err)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return mapErr(err)
	}
	log.Info().Uint("userId", id).Msg("User deleted")
	return nil
}

// fields validates in and turns it into column updates, hashing any password.
// self is the user being updated, zero on create.
func (s *Service) fields(ctx context.Context, self uint, in Input) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalid)
		}
		existing, err := s.store.FindUserByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != self:
			return nil, ErrEmailTaken
		case err != nil && !errors.Is(err, database.ErrNotFound):
			return nil, err
		}
		fields["email"] = email
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, fmt.Errorf("%w: password cannot be empty", ErrInvalid)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		fields["password"] = string(hash)
	}
	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		if role == "" {
			return nil, fmt.Errorf("%w: role cannot be empty", ErrInvalid)
		}
		fields["role"] = role
	}
	return fields, nil
}

// Login checks the password and opens a session. The refresh token issued
// here replaces any earlier one for the user.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	u, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.Password == nil {
		return nil, fmt.Errorf("%w: user has no password set", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(in.Password)); err != nil {
		log.Debug().Uint("userId", u.ID).Msg("Password mismatch")
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateUser(ctx, u.ID, map[string]interface{}{"refresh_token": tokens.RefreshToken}); err != nil {
		return nil, err
	}

	log.Info().Uint("userId", u.ID).Msg("User logged in")
	profile := Profile{ID: u.ID, Role: u.Role}
	if u.Email != nil {
		profile.Email = *u.Email
	}
	return &Session{Tokens: *tokens, User: profile}, nil
}

// Refresh exchanges the user's current refresh token for a new pair. A token
// that was already rotated or revoked is rejected.
func (s *Service) Refresh(ctx context.Context, raw string) (*Tokens, error) {
	claims, err := s.signer.ParseRefresh(raw)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	u, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	if u.RefreshToken == nil || *u.RefreshToken != raw {
		return nil, ErrInvalidRefresh
	}

	tokens, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	swapped, err := s.store.SwapRefreshToken(ctx, u.ID, raw, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrInvalidRefresh
	}
	return tokens, nil
}

// Logout revokes the user's refresh token.
func (s *Service) Logout(ctx context.Context, id uint) error {
	if _, err := s.store.UpdateUser(ctx, id, map[string]interface{}{"refresh_token": nil}); err != nil {
		return mapErr(err)
	}
	log.Info().Uint("userId", id).Msg("User logged out")
	return nil
}

func (s *Service) issue(u *models.User) (*Tokens, error) {
	access, err := s.signer.Access(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signer.Refresh(u.ID)
	if err != nil {
		return nil, err
	}
	return &Tokens{Token: access, RefreshToken: refresh}, nil
}

func mapErr(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
