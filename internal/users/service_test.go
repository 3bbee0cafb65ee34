package users

import (
	"context"
	"testing"
	"time"

	"whatsapp-router/internal/auth"
	"whatsapp-router/internal/database/dbtest"
	"whatsapp-router/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s := NewService(dbtest.Store(t), auth.NewSigner("secret", "router", time.Hour))
	s.cost = bcrypt.MinCost
	return s
}

func str(s string) *string { return &s }

func TestCreateHashesPassword(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	u, err := s.Create(ctx, Input{Email: str(" Ops@Example.com "), Password: str("hunter2")})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", *u.Email)
	assert.Equal(t, "user", u.Role)
	require.NotNil(t, u.Password)
	assert.NotEqual(t, "hunter2", *u.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte("hunter2")))

	_, err = s.Create(ctx, Input{Email: str("ops@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = s.Create(ctx, Input{Password: str("")})
	assert.ErrorIs(t, err, ErrInvalid)

	bare, err := s.Create(ctx, Input{Role: str("admin")})
	require.NoError(t, err)
	assert.Nil(t, bare.Email)
	assert.Equal(t, "admin", bare.Role)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	a, err := s.Create(ctx, Input{Email: str("a@example.com")})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Email: str("b@example.com")})
	require.NoError(t, err)

	updated, err := s.Update(ctx, a.ID, Input{Email: str("a@example.com"), Role: str("admin"), Password: str("pw")})
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.Role)
	require.NotNil(t, updated.Password)

	_, err = s.Update(ctx, a.ID, Input{Email: str("b@example.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = s.Update(ctx, 999, Input{Role: str("admin")})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, 999, Input{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	u, err := s.Create(ctx, Input{Email: str("ops@example.com"), Password: str("hunter2"), Role: str("admin")})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Email: str("nopw@example.com")})
	require.NoError(t, err)

	for name, in := range map[string]LoginInput{
		"unknown email":  {Email: "who@example.com", Password: "hunter2"},
		"wrong password": {Email: "ops@example.com", Password: "hunter3"},
		"no password":    {Email: "nopw@example.com", Password: "x"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Login(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}

	session, err := s.Login(ctx, LoginInput{Email: "OPS@example.com", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, Profile{ID: u.ID, Email: "ops@example.com", Role: "admin"}, session.User)

	claims, err := auth.ParseBearer("Bearer "+session.Token, "secret", "router")
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	stored, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, session.RefreshToken, *stored.RefreshToken)
}

func loggedIn(t *testing.T, s *Service) (*models.User, *Session) {
	t.Helper()
	ctx := context.Background()
	u, err := s.Create(ctx, Input{Email: str("ops@example.com"), Password: str("hunter2")})
	require.NoError(t, err)
	session, err := s.Login(ctx, LoginInput{Email: "ops@example.com", Password: "hunter2"})
	require.NoError(t, err)
	return u, session
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, session := loggedIn(t, s)

	next, err := s.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, next.RefreshToken)
	_, err = auth.ParseBearer("Bearer "+next.Token, "secret", "router")
	require.NoError(t, err)

	_, err = s.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "rotated token must not be reusable")

	_, err = s.Refresh(ctx, next.Token)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "access token is not a refresh token")

	_, err = s.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = s.Refresh(ctx, next.RefreshToken)
	assert.NoError(t, err)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	u, session := loggedIn(t, s)

	require.NoError(t, s.Logout(ctx, u.ID))
	_, err := s.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	assert.ErrorIs(t, s.Logout(ctx, 999), ErrNotFound)
}

func TestRefreshForDeletedUser(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	u, session := loggedIn(t, s)

	require.NoError(t, s.Delete(ctx, u.ID))
	_, err := s.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}
