package auth

import (
	"errors"
	"time"

	"whatsapp-router/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	refreshType = "refresh"

	// RefreshTTL is how long a refresh token stays valid.
	RefreshTTL = 7 * 24 * time.Hour
)

var ErrSecretUnset = errors.New("JWT_SECRET is not set")

// Signer issues the HS256 tokens that Middleware accepts.
type Signer struct {
	secret    string
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

func NewSigner(secret, issuer string, accessTTL time.Duration) *Signer {
	return &Signer{secret: secret, issuer: issuer, accessTTL: accessTTL, now: time.Now}
}

// Access signs a token carrying the user's id, email and role.
func (s *Signer) Access(u *models.User) (string, error) {
	claims := Claims{UserID: u.ID, Role: u.Role}
	if u.Email != nil {
		claims.Email = *u.Email
	}
	return s.sign(claims, s.accessTTL)
}

// Refresh signs a refresh token. Each one gets a unique id so rotation
// within the same second still yields a new token.
func (s *Signer) Refresh(userID uint) (string, error) {
	claims := Claims{UserID: userID, Type: refreshType}
	claims.ID = uuid.NewString()
	return s.sign(claims, RefreshTTL)
}

// ParseRefresh validates a refresh token and returns its claims.
func (s *Signer) ParseRefresh(raw string) (*Claims, error) {
	claims, err := parse(raw, s.secret, s.issuer)
	if err != nil {
		return nil, err
	}
	if claims.Type != refreshType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) sign(claims Claims, ttl time.Duration) (string, error) {
	if s.secret == "" {
		return "", ErrSecretUnset
	}
	now := s.now()
	claims.Issuer = s.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
}
