package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsapp-router/internal/auth"
	"whatsapp-router/internal/database"
	"whatsapp-router/internal/database/dbtest"
	"whatsapp-router/internal/models"
	"whatsapp-router/internal/outbound"
	"whatsapp-router/internal/projects"
	"whatsapp-router/internal/users"
	"whatsapp-router/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct{ n int }

func (f *fakeTransport) next() (string, error) {
	f.n++
	return fmt.Sprintf("wamid.api.%d", f.n), nil
}

func (f *fakeTransport) SendText(context.Context, string, string, string) (string, error) {
	return f.next()
}

func (f *fakeTransport) SendMedia(context.Context, string, string, string, string, string) (string, error) {
	return f.next()
}

func (f *fakeTransport) SendTemplate(context.Context, string, string, string, []whatsapp.ComponentObj) (string, error) {
	return f.next()
}

type fakeTemplates struct {
	list interface{}
	err  error
}

func (f fakeTemplates) GetTemplates(context.Context) (interface{}, error) {
	return f.list, f.err
}

type server struct {
	store    *database.Store
	projects *projects.Service
	router   *gin.Engine
	token    string
}

const (
	testSecret = "test-secret"
	testIssuer = "router"
)

func newServer(t *testing.T, templates TemplateSource) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := dbtest.Store(t)
	ps := projects.NewService(store, time.Minute)
	d := outbound.NewDispatcher(store, &fakeTransport{}, ps, nil)

	h := Handlers{
		Conversations: NewConversationHandler(d),
		Contacts:      NewContactHandler(d),
		Projects:      NewProjectHandler(ps),
		WhatsApp:      NewWhatsAppHandler(templates),
		Users:         NewUserHandler(users.NewService(store, auth.NewSigner(testSecret, testIssuer, time.Hour))),
	}

	r := gin.New()
	group := r.Group("/api")
	RegisterPublic(group, h)
	Register(group.Group("", auth.Middleware(ps, testSecret, testIssuer)), h)

	operator, err := auth.NewSigner(testSecret, testIssuer, time.Hour).Access(&models.User{ID: 1, Role: "admin"})
	require.NoError(t, err)
	return &server{store: store, projects: ps, router: r, token: operator}
}

func (s *server) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, s.token, method, path, body)
}

// doAs sends the request with token as bearer, or unauthenticated when empty.
func (s *server) doAs(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) conversation(t *testing.T) (*models.Contact, *models.Conversation) {
	t.Helper()
	ctx := context.Background()
	c := &models.Contact{WaID: "447700900123", Name: "Maria"}
	require.NoError(t, s.store.CreateContact(ctx, c))
	conv, err := s.store.UpsertConversation(ctx, c.ID, time.Now(), true)
	require.NoError(t, err)
	require.NoError(t, s.store.CreateMessage(ctx, &models.Message{
		ID: "wamid.in", ConversationID: conv.ID, ContactID: c.ID, Direction: models.DirectionInbound,
		Type: models.MessageTypeText, Status: models.MessageStatusDelivered, Timestamp: time.Now().Add(-time.Minute).UnixMilli(), TextBody: "oi",
	}))
	return c, conv
}

func TestConversationRoutes(t *testing.T) {
	s := newServer(t, fakeTemplates{})
	_, conv := s.conversation(t)

	w := s.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, true, views[0]["isWithin24Hours"])
	assert.EqualValues(t, 1, views[0]["unreadCount"])

	w = s.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", gin.H{"text": "olá", "replyToId": "wamid.in"})
	require.Equal(t, http.StatusOK, w.Code)
	var sent models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.Equal(t, models.DirectionOutbound, sent.Direction)
	require.NotNil(t, sent.ReplyToID)
	assert.Equal(t, "wamid.in", *sent.ReplyToID)

	w = s.do(t, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "wamid.in", msgs[0].ID)
	require.NotNil(t, msgs[1].ReplyTo)
	assert.Equal(t, "oi", msgs[1].ReplyTo.TextBody)

	read, err := s.store.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Zero(t, read.UnreadCount)
}

func TestConversationErrors(t *testing.T) {
	s := newServer(t, fakeTemplates{})
	_, conv := s.conversation(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		code   int
	}{
		{"unknown conversation history", http.MethodGet, "/api/conversations/missing/messages", nil, http.StatusNotFound},
		{"unknown conversation send", http.MethodPost, "/api/conversations/missing/messages", gin.H{"text": "hi"}, http.StatusNotFound},
		{"missing text", http.MethodPost, "/api/conversations/" + conv.ID + "/messages", gin.H{}, http.StatusBadRequest},
		{"unsupported media", http.MethodPost, "/api/conversations/" + conv.ID + "/media", gin.H{"type": "sticker", "link": "https://x/y.webp"}, http.StatusBadRequest},
		{"invite missing fields", http.MethodPost, "/api/conversations/invite", gin.H{"to": "447700900123"}, http.StatusBadRequest},
		{"unknown contact", http.MethodPatch, "/api/contacts/missing/custom-name", gin.H{"customName": "X"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, s.do(t, tt.method, tt.path, tt.body).Code)
		})
	}
}

func TestSendMediaRoute(t *testing.T) {
	s := newServer(t, fakeTemplates{})
	_, conv := s.conversation(t)

	w := s.do(t, http.MethodPost, "/api/conversations/"+conv.ID+"/media", gin.H{"type": "document", "link": "https://cdn.example/boleto.pdf", "filename": "boleto.pdf"})
	require.Equal(t, http.StatusOK, w.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, models.MessageTypeDocument, msg.Type)
	assert.Equal(t, "boleto.pdf", msg.MediaFilename)
}

func TestInviteBindsProjectFromHost(t *testing.T) {
	s := newServer(t, fakeTemplates{})
	ctx := context.Background()
	p, err := s.projects.Create(ctx, projects.Input{Name: "Igreja", APIURL: "https://igreja.example.com/api"})
	require.NoError(t, err)

	body := gin.H{"to": "5511987654321", "name": "Ana", "platform": "Igreja", "platformUrl": "https://igreja.example.com", "login": "ana", "password": "s3cret"}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/invite", &buf)
	req.Host = "igreja.example.com:443"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	c, err := s.store.FindContactByWaID(ctx, "5511987654321")
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.CustomName)
	require.NotNil(t, c.ProjectID)
	assert.Equal(t, p.ID, *c.ProjectID)
}

func TestContactRoutes(t *testing.T) {
	s := newServer(t, fakeTemplates{})

	w := s.do(t, http.MethodGet, "/api/contacts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	c, _ := s.conversation(t)
	w = s.do(t, http.MethodPatch, "/api/contacts/"+c.ID+"/custom-name", gin.H{"customName": "Dona Maria"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Contact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Dona Maria", updated.CustomName)
}

func TestProjectRoutes(t *testing.T) {
	s := newServer(t, fakeTemplates{})

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/projects", gin.H{"apiUrl": "https://a"}).Code)

	w := s.do(t, http.MethodPost, "/api/projects", gin.H{"name": "Alpha", "apiUrl": "https://alpha.example", "userNumbersApiUrl": "/users/exists"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := fmt.Sprintf("/api/projects/%d", created.ID)

	w = s.do(t, http.MethodPut, path, gin.H{"name": "Alpha 2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Alpha 2"`)
	assert.Contains(t, w.Body.String(), "alpha.example")

	w = s.do(t, http.MethodPost, path+"/api-key/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var key struct {
		APIKey string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	assert.Len(t, key.APIKey, 64)
	found, err := s.projects.FindByExternalAPIKey(context.Background(), key.APIKey)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	w = s.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []projects.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].HasExternalAPIKey)
	assert.NotContains(t, w.Body.String(), key.APIKey)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path+"/api-key", nil).Code)
	_, err = s.projects.FindByExternalAPIKey(context.Background(), key.APIKey)
	assert.ErrorIs(t, err, projects.ErrNotFound)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/projects/abc", nil).Code)
}

func TestTemplatesPassthrough(t *testing.T) {
	s := newServer(t, fakeTemplates{list: map[string]interface{}{"data": []interface{}{map[string]interface{}{"name": "access_created"}}}})
	w := s.do(t, http.MethodGet, "/api/whatsapp/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"name":"access_created"}]}`, w.Body.String())

	s = newServer(t, fakeTemplates{err: errors.New("graph down")})
	assert.Equal(t, http.StatusBadGateway, s.do(t, http.MethodGet, "/api/whatsapp/templates", nil).Code)
}
