package projects

import (
	"context"
	"testing"
	"time"

	"whatsapp-router/internal/database/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	return NewService(dbtest.Store(t), time.Minute)
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.Create(ctx, Input{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	a, err := s.Create(ctx, Input{Name: "Alpha", APIURL: "https://alpha.example.com", UserNumbersAPIURL: "/users"})
	require.NoError(t, err)
	b, err := s.Create(ctx, Input{Name: "Beta"})
	require.NoError(t, err)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.True(t, list[0].CanProbe())
	assert.False(t, list[1].CanProbe())
}

func TestListCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, err := s.Create(ctx, Input{Name: "Alpha"})
	require.NoError(t, err)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	list[0].Name = "mutated by caller"

	again, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", again[0].Name)

	name := "Renamed"
	_, err = s.Update(ctx, p.ID, Patch{Name: &name})
	require.NoError(t, err)

	again, err = s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again[0].Name)

	require.NoError(t, s.Delete(ctx, p.ID))
	again, err = s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMissingProject(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	name := "x"
	_, err = s.Update(ctx, 42, Patch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 42), ErrNotFound)
	_, err = s.GenerateAPIKey(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExternalAPIKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, err := s.Create(ctx, Input{Name: "Alpha"})
	require.NoError(t, err)

	key, err := s.GenerateAPIKey(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, key, 64)

	found, err := s.FindByExternalAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	summaries, err := s.ListWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].HasExternalAPIKey)

	require.NoError(t, s.RevokeAPIKey(ctx, p.ID))
	_, err = s.FindByExternalAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByExternalAPIKey(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatchByHost(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.Create(ctx, Input{Name: "Alpha", APIURL: "https://alpha.example.com/api"})
	require.NoError(t, err)
	beta, err := s.Create(ctx, Input{Name: "Beta", APIURL: "https://beta.example.com"})
	require.NoError(t, err)

	p, err := s.MatchByHost(ctx, "beta.example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, beta.ID, p.ID)

	_, err = s.MatchByHost(ctx, "unknown.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.MatchByHost(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewKeyIsRandom(t *testing.T) {
	a, err := NewKey()
	require.NoError(t, err)
	b, err := NewKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
