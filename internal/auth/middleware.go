// Package auth guards the operator API. Callers authenticate with a project's
// external API key or with an HS256 bearer token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"whatsapp-router/internal/models"
	"whatsapp-router/internal/projects"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	APIKeyHeader = "X-API-KEY"

	// Context keys set on authenticated requests.
	ProjectKey = "authProject"
	UserIDKey  = "authUserId"
)

type ProjectFinder interface {
	FindByExternalAPIKey(ctx context.Context, key string) (*models.Project, error)
}

// Claims is the token payload issued to dashboard users. Refresh tokens carry
// Type "refresh" and are never accepted as access tokens.
type Claims struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Type   string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Middleware accepts a known project API key, or else a valid bearer token.
// A request that sends an API key is never retried as a token request.
func Middleware(finder ProjectFinder, secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" {
			project, err := finder.FindByExternalAPIKey(c.Request.Context(), key)
			if err != nil {
				if !errors.Is(err, projects.ErrNotFound) {
					log.Error().Err(err).Msg("API key lookup failed")
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			c.Set(ProjectKey, project)
			c.Next()
			return
		}

		claims, err := ParseBearer(c.GetHeader("Authorization"), secret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

var (
	ErrMissingToken = errors.New("token is required")
	ErrInvalidToken = errors.New("token is not valid")
)

// ParseBearer validates an "Authorization: Bearer <jwt>" header value.
func ParseBearer(header, secret, issuer string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrMissingToken
	}
	claims, err := parse(strings.TrimSpace(raw), secret, issuer)
	if err != nil {
		return nil, err
	}
	if claims.Type == refreshType {
		log.Debug().Uint("userId", claims.UserID).Msg("Refresh token presented as bearer")
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parse(raw, secret, issuer string) (*Claims, error) {
	if secret == "" {
		log.Warn().Msg("JWT_SECRET is not set, rejecting bearer token")
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		log.Debug().Err(err).Msg("Bearer token rejected")
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
