package app

import (
	"bytes"
	"context"
	"errors"
	"ichat_backend/internal/config"
	"ichat_backend/internal/service"
	"ichat_backend/internal/syncclient"
	"ichat_backend/pkg/database"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}, make([]byte, 64)...)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: "test-secret-test-secret-test-secret", ExpireTime: time.Hour},
		Storage: config.StorageConfig{
			Type:      "local",
			LocalPath: filepath.Join(dir, "uploads"),
		},
		Chat: config.ChatConfig{
			PollInterval:     time.Second,
			MaxUploadMB:      1,
			AllowedFileTypes: []string{"image/png", "image/jpeg"},
			MaxMessageLength: 200,
		},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		RateLimit: config.RateLimitConfig{MaxRequests: 10000, WindowMinutes: 1},
	}
}

func newTestServer(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenSQLite(filepath.Join(dir, "ichat.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := testConfig(dir)
	a := New(cfg, db, nil, service.NewStorageProvider(&cfg.Storage))
	srv := httptest.NewServer(a.Router)
	t.Cleanup(srv.Close)
	return a, srv
}

func registerAndLogin(t *testing.T, baseURL, name, email string) (*syncclient.Client, uint) {
	t.Helper()
	ctx := context.Background()
	c := syncclient.NewClient(baseURL)
	user, err := c.Register(ctx, name, email, "password123")
	require.NoError(t, err)
	_, err = c.Login(ctx, email, "password123")
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c, user.ID
}

func requireStatus(t *testing.T, err error, status int, reason string) {
	t.Helper()
	var apiErr *syncclient.APIError
	require.True(t, errors.As(err, &apiErr), "expected API error, got %v", err)
	assert.Equal(t, status, apiErr.Status)
	if reason != "" {
		assert.Equal(t, reason, apiErr.Reason)
	}
}

func TestAuthRequired(t *testing.T) {
	_, srv := newTestServer(t)
	c := syncclient.NewClient(srv.URL)

	_, err := c.ListConversations(context.Background())
	requireStatus(t, err, http.StatusUnauthorized, "")
	assert.True(t, syncclient.IsUnauthenticated(err))

	c.SetToken("not-a-jwt")
	_, err = c.ListConversations(context.Background())
	assert.True(t, syncclient.IsUnauthenticated(err))
}

func TestRegisterAndLogin(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	registerAndLogin(t, srv.URL, "Alice", "alice@example.com")

	c := syncclient.NewClient(srv.URL)
	_, err := c.Register(ctx, "Alice Again", "ALICE@example.com", "password123")
	requireStatus(t, err, http.StatusConflict, "email_taken")

	_, err = c.Login(ctx, "alice@example.com", "wrong-password")
	requireStatus(t, err, http.StatusUnauthorized, "invalid_credentials")

	_, err = c.Register(ctx, "", "bad-email", "short")
	requireStatus(t, err, http.StatusBadRequest, "")
}

func TestConnectionAndDirectChatFlow(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	alice, aliceID := registerAndLogin(t, srv.URL, "Alice", "alice@example.com")
	bob, bobID := registerAndLogin(t, srv.URL, "Bob", "bob@example.com")
	carol, _ := registerAndLogin(t, srv.URL, "Carol", "carol@example.com")

	_, err := alice.StartDirect(ctx, bobID)
	requireStatus(t, err, http.StatusForbidden, "not_connected")

	found, err := alice.SearchUsers(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bobID, found[0].ID)

	rel, err := alice.RequestConnection(ctx, bobID)
	require.NoError(t, err)
	_, err = bob.RequestConnection(ctx, aliceID)
	requireStatus(t, err, http.StatusConflict, "duplicate_relationship")

	pending, err := bob.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rel.ID, pending[0].ID)

	requireStatus(t, alice.AcceptConnection(ctx, rel.ID), http.StatusNotFound, "request_not_pending")
	require.NoError(t, bob.AcceptConnection(ctx, rel.ID))

	convID, err := alice.StartDirect(ctx, bobID)
	require.NoError(t, err)
	same, err := bob.StartDirect(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, convID, same)

	sent, err := alice.SendMessage(ctx, convID, "hello bob", nil)
	require.NoError(t, err)
	_, err = bob.SendMessage(ctx, convID, "hi alice", nil)
	require.NoError(t, err)

	msgs, err := bob.ListMessages(ctx, convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello bob", msgs[0].Content)
	assert.Equal(t, "Alice", msgs[0].SenderName)

	newer, err := bob.ListMessages(ctx, convID, sent.ID)
	require.NoError(t, err)
	require.Len(t, newer, 1)

	_, err = carol.ListMessages(ctx, convID, 0)
	requireStatus(t, err, http.StatusForbidden, "not_participant")
	_, err = carol.GetConversation(ctx, convID)
	requireStatus(t, err, http.StatusNotFound, "conversation_not_found")

	requireStatus(t, bob.DeleteMessage(ctx, sent.ID), http.StatusNotFound, "message_not_found")
	require.NoError(t, alice.DeleteMessage(ctx, sent.ID))

	list, err := alice.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", list[0].DisplayName)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hi alice", *list[0].LastMessage)
}

func TestGroupFlow(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	alice, aliceID := registerAndLogin(t, srv.URL, "Alice", "alice@example.com")
	bob, bobID := registerAndLogin(t, srv.URL, "Bob", "bob@example.com")
	_, carolID := registerAndLogin(t, srv.URL, "Carol", "carol@example.com")

	conv, err := alice.CreateGroup(ctx, "Team", "weekly", []uint{bobID})
	require.NoError(t, err)
	require.NotNil(t, conv.GroupID)
	groupID := *conv.GroupID

	info, err := bob.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, info.IsGroup)
	assert.False(t, info.IsAdmin)
	assert.Len(t, info.Members, 2)

	added, err := alice.AddMembers(ctx, groupID, conv.ID, []uint{bobID, carolID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, added)

	_, err = bob.AddMembers(ctx, groupID, conv.ID, []uint{carolID})
	requireStatus(t, err, http.StatusForbidden, "not_admin")

	requireStatus(t, alice.RemoveMember(ctx, groupID, conv.ID, aliceID), http.StatusBadRequest, "cannot_remove_self")
	requireStatus(t, bob.RemoveMember(ctx, groupID, conv.ID, aliceID), http.StatusForbidden, "not_admin")
	require.NoError(t, alice.RemoveMember(ctx, groupID, conv.ID, bobID))
	requireStatus(t, alice.RemoveMember(ctx, groupID, conv.ID, bobID), http.StatusNotFound, "not_member")

	_, err = bob.SendMessage(ctx, conv.ID, "still here?", nil)
	requireStatus(t, err, http.StatusForbidden, "not_participant")
}

func TestAttachmentUpload(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := registerAndLogin(t, srv.URL, "Alice", "alice@example.com")
	_, bobID := registerAndLogin(t, srv.URL, "Bob", "bob@example.com")

	conv, err := alice.CreateGroup(ctx, "Pics", "", []uint{bobID})
	require.NoError(t, err)

	_, err = alice.SendMessage(ctx, conv.ID, "", &syncclient.File{Name: "fake.jpg", Reader: strings.NewReader("just some text")})
	requireStatus(t, err, http.StatusBadRequest, "invalid_file_type")

	_, err = alice.SendMessage(ctx, conv.ID, "", nil)
	requireStatus(t, err, http.StatusBadRequest, "empty_message")

	msg, err := alice.SendMessage(ctx, conv.ID, "look", &syncclient.File{Name: "cat.png", Reader: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", msg.FileType)

	msgs, err := alice.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotEmpty(t, msgs[0].FileURL)

	resp, err := http.Get(srv.URL + msgs[0].FileURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pngBytes, body)
}

func TestUploadTooLarge(t *testing.T) {
	_, srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := registerAndLogin(t, srv.URL, "Alice", "alice@example.com")
	_, bobID := registerAndLogin(t, srv.URL, "Bob", "bob@example.com")

	conv, err := alice.CreateGroup(ctx, "Big", "", []uint{bobID})
	require.NoError(t, err)

	// 超过上传上限但仍在表单余量内，由服务层按大小拒绝
	big := make([]byte, 1<<20+512<<10)
	copy(big, pngBytes)
	_, err = alice.SendMessage(ctx, conv.ID, "", &syncclient.File{Name: "big.png", Reader: bytes.NewReader(big)})
	requireStatus(t, err, http.StatusBadRequest, "file_too_large")
}

func TestConfigReloadUpdatesPolicy(t *testing.T) {
	a, _ := newTestServer(t)

	cfg := *a.Config
	cfg.Chat.AllowedFileTypes = []string{"application/pdf"}
	cfg.Chat.MaxUploadMB = 5
	a.applyConfig(&cfg)

	policy := a.services.message.Policy()
	assert.Equal(t, []string{"application/pdf"}, policy.AllowedTypes)
	assert.EqualValues(t, 5<<20, policy.MaxBytes)
}

func TestHealthAndCORS(t *testing.T) {
	a, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	a.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":"disabled"`)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	a.Router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
