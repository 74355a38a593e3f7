package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inkpost/internal/config"
	"inkpost/internal/models"
	"inkpost/internal/repository"
	"inkpost/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-123"

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) LoadAll(ctx context.Context) ([]models.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockPostRepository) SaveAll(ctx context.Context, posts []models.Post) error {
	args := m.Called(ctx, posts)
	return args.Error(0)
}

func (m *MockPostRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:            "3388",
		Env:             "test",
		JWTSecret:       testSecret,
		AuthRealm:       "inkpost",
		PublicAPIBase:   "http://api.test",
		DataDir:         t.TempDir(),
		UploadsDir:      t.TempDir(),
		AllowedOrigins:  "*",
		UploadRateLimit: 30,
	}
}

type testEnv struct {
	srv  *Server
	app  *fiber.App
	repo *testutil.PostRepoStub
	cfg  *config.Config
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config), posts ...models.Post) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	repo := testutil.NewPostRepoStub(posts...)
	srv, err := NewServerWithDeps(cfg, repo, nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), repo: repo, cfg: cfg}
}

func newTestEnvWithRepo(t *testing.T, repo repository.PostRepository, rdb *redis.Client) *fiber.App {
	t.Helper()
	srv, err := NewServerWithDeps(testConfig(t), repo, rdb)
	require.NoError(t, err)
	return srv.NewApp()
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, method, path, token, r, fiber.MIMEApplicationJSON)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func adminToken(t *testing.T) string {
	return testutil.AdminToken(t, testSecret, time.Hour)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/health", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, OKResponse{OK: true}, decodeBody[OKResponse](t, resp))

	live := env.do(t, http.MethodGet, "/health/live", "", nil, "")
	assert.Equal(t, http.StatusOK, live.StatusCode)
}

func TestReadinessCheck(t *testing.T) {
	t.Run("store readable", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp := env.do(t, http.MethodGet, "/health/ready", "", nil, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[map[string]any](t, resp)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["store"])
		assert.Equal(t, "unavailable", checks["redis"])
	})

	t.Run("store unreadable", func(t *testing.T) {
		repo := new(MockPostRepository)
		repo.On("Ping", mock.Anything).Return(repository.ErrCorruptDocument)
		app := newTestEnvWithRepo(t, repo, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		repo.AssertExpectations(t)
	})
}

func TestAuthz(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cfg *config.Config)
		token      func(t *testing.T) string
		wantStatus int
		wantMethod string
		wantCode   string
	}{
		{
			name:       "admin jwt",
			token:      adminToken,
			wantStatus: http.StatusOK,
			wantMethod: "jwt",
		},
		{
			name: "non-admin jwt",
			token: func(t *testing.T) string {
				return testutil.MintToken(t, testSecret, jwt.MapClaims{"sub": "bob", "role": "user"})
			},
			wantStatus: http.StatusForbidden,
			wantCode:   models.AuthCodeInsufficientScope,
		},
		{
			name:       "no token",
			token:      func(*testing.T) string { return "" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   models.AuthCodeTokenMissing,
		},
		{
			name:       "expired jwt",
			token:      func(t *testing.T) string { return testutil.AdminToken(t, testSecret, -time.Hour) },
			wantStatus: http.StatusUnauthorized,
			wantCode:   models.AuthCodeTokenExpired,
		},
		{
			name:       "static fallback",
			mutate:     func(cfg *config.Config) { cfg.APIToken = "shared-token" },
			token:      func(*testing.T) string { return "shared-token" },
			wantStatus: http.StatusOK,
			wantMethod: "static",
		},
		{
			name: "insecure dev mode",
			mutate: func(cfg *config.Config) {
				cfg.JWTSecret = ""
				cfg.AllowInsecureWrites = true
			},
			token:      func(*testing.T) string { return "" },
			wantStatus: http.StatusOK,
			wantMethod: "insecure",
		},
		{
			name:       "no credentials configured",
			mutate:     func(cfg *config.Config) { cfg.JWTSecret = "" },
			token:      func(*testing.T) string { return "anything" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   models.AuthCodeRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mutate)
			resp := env.do(t, http.MethodGet, "/api/authz", tt.token(t), nil, "")
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantCode == "" {
				got := decodeBody[AuthzResponse](t, resp)
				assert.True(t, got.OK)
				assert.Equal(t, tt.wantMethod, got.Method)
				return
			}

			challenge := resp.Header.Get(fiber.HeaderWWWAuthenticate)
			assert.Contains(t, challenge, `Bearer realm="inkpost"`)
			assert.Contains(t, challenge, `error="`+tt.wantCode+`"`)

			got := decodeBody[models.AuthErrorResponse](t, resp)
			assert.Equal(t, tt.wantCode, got.Error)
			assert.Equal(t, models.AuthDescription(tt.wantCode), got.ErrorDescription)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", decodeBody[models.ErrorResponse](t, resp).Error)
}

func TestShutdown_WithoutRedis(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.NoError(t, env.srv.Shutdown(context.Background()))
}
