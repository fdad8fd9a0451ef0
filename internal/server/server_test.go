package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ynetwork/internal/config"
	"ynetwork/internal/models"
	"ynetwork/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-key-that-is-long-enough-for-hs256"

// Notifications are written by background workers.
const (
	notifyWait = 3 * time.Second
	notifyTick = 20 * time.Millisecond
)

type testServer struct {
	*Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:         testJWTSecret,
		Env:               "test",
		Port:              "0",
		SessionCookieName: "ynet_session",
		NotifyWorkers:     2,
		NotifyQueueSize:   64,
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	s.StartBackground()
	app := s.NewApp()
	s.app = app

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.shutdownFn()
		_ = s.registry.Shutdown(ctx)
		_ = s.notificationSvc.Stop(ctx)
		_ = rdb.Close()
	})

	return &testServer{Server: s, app: app, db: db, mr: mr}
}

// user creates a student and returns it with a valid access token.
func (ts *testServer) user(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	u := testutil.CreateUser(t, ts.db, username)
	return u, ts.token(t, u)
}

func (ts *testServer) admin(t *testing.T) (*models.User, string) {
	t.Helper()
	u := testutil.CreateUser(t, ts.db, "")
	require.NoError(t, ts.db.Model(u).Update("role", models.RoleAdmin).Error)
	u.Role = models.RoleAdmin
	return u, ts.token(t, u)
}

func (ts *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := ts.generateToken(u.ID, u.Username)
	require.NoError(t, err)
	return tok
}

type apiResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r apiResponse) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, dst), string(r.Body))
}

func (r apiResponse) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	r.decode(t, &out)
	return out
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) apiResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return ts.send(t, req)
}

func (ts *testServer) send(t *testing.T, req *http.Request) apiResponse {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: raw}
}
