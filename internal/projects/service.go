package projects

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsapp-router/internal/database"
	"whatsapp-router/internal/models"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound = errors.New("project not found")
	ErrInvalid  = errors.New("invalid project")
)

const listKey = "projects:all"

// Input carries the writable fields of a project.
type Input struct {
	Name              string `json:"name" binding:"required"`
	APIURL            string `json:"apiUrl"`
	UserNumbersAPIURL string `json:"userNumbersApiUrl"`
	APIKey            string `json:"apiKey"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name              *string `json:"name"`
	APIURL            *string `json:"apiUrl"`
	UserNumbersAPIURL *string `json:"userNumbersApiUrl"`
	APIKey            *string `json:"apiKey"`
}

// Summary is a project with the number of contacts routed to it.
type Summary struct {
	models.Project
	HasExternalAPIKey bool  `json:"hasExternalApiKey"`
	ContactCount      int64 `json:"contactCount"`
}

type Service struct {
	store *database.Store
	cache *cache.Cache
}

func NewService(store *database.Store, ttl time.Duration) *Service {
	return &Service{
		store: store,
		cache: cache.New(ttl, 2*ttl),
	}
}

// ListProjects returns every project ordered by id. The result is cached until
// the TTL expires or a project is written.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	if cached, ok := s.cache.Get(listKey); ok {
		projects := cached.([]models.Project)
		return append([]models.Project(nil), projects...), nil
	}

	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(listKey, projects)
	return append([]models.Project(nil), projects...), nil
}

func (s *Service) ListWithCounts(ctx context.Context) ([]Summary, error) {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountContactsByProject(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(projects))
	for _, p := range projects {
		out = append(out, Summary{
			Project:           p,
			HasExternalAPIKey: p.ExternalAPIKey != nil,
			ContactCount:      counts[p.ID],
		})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	return p, mapErr(err)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	p := &models.Project{
		Name:              strings.TrimSpace(in.Name),
		APIURL:            in.APIURL,
		UserNumbersAPIURL: in.UserNumbersAPIURL,
		APIKey:            in.APIKey,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate()

	log.Info().Uint("projectId", p.ID).Str("name", p.Name).Msg("Project created")
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uint, patch Patch) (*models.Project, error) {
	fields := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		fields["name"] = name
	}
	if patch.APIURL != nil {
		fields["api_url"] = *patch.APIURL
	}
	if patch.UserNumbersAPIURL != nil {
		fields["user_numbers_api_url"] = *patch.UserNumbersAPIURL
	}
	if patch.APIKey != nil {
		fields["api_key"] = *patch.APIKey
	}

	p, err := s.store.UpdateProject(ctx, id, fields)
	if err != nil {
		return nil, mapErr(err)
	}
	s.invalidate()
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return mapErr(err)
	}
	s.invalidate()
	log.Info().Uint("projectId", id).Msg("Project deleted")
	return nil
}

// GenerateAPIKey issues a new external API key for the project, replacing any
// previous one. The key is only ever returned here.
func (s *Service) GenerateAPIKey(ctx context.Context, id uint) (string, error) {
	key, err := NewKey()
	if err != nil {
		return "", err
	}
	if _, err := s.store.UpdateProject(ctx, id, map[string]interface{}{"external_api_key": key}); err != nil {
		return "", mapErr(err)
	}
	s.invalidate()
	log.Info().Uint("projectId", id).Msg("External API key generated")
	return key, nil
}

func (s *Service) RevokeAPIKey(ctx context.Context, id uint) error {
	if _, err := s.store.UpdateProject(ctx, id, map[string]interface{}{"external_api_key": nil}); err != nil {
		return mapErr(err)
	}
	s.invalidate()
	log.Info().Uint("projectId", id).Msg("External API key revoked")
	return nil
}

func (s *Service) FindByExternalAPIKey(ctx context.Context, key string) (*models.Project, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	p, err := s.store.FindProjectByExternalAPIKey(ctx, key)
	return p, mapErr(err)
}

// MatchByHost finds the first project whose apiUrl mentions host, ignoring any port.
func (s *Service) MatchByHost(ctx context.Context, host string) (*models.Project, error) {
	hostname, _, _ := strings.Cut(host, ":")
	if hostname == "" {
		return nil, ErrNotFound
	}
	p, err := s.store.FindProjectByAPIURLFragment(ctx, hostname)
	return p, mapErr(err)
}

func (s *Service) invalidate() {
	s.cache.Delete(listKey)
}

// NewKey returns 32 random bytes hex encoded.
func NewKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func mapErr(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
