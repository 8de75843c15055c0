package app

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/vidtube/internal/config"
)

func loadTestConfig(t *testing.T, redisAddr string) *config.Config {
	t.Helper()

	host, port, ok := strings.Cut(redisAddr, ":")
	require.True(t, ok)

	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("MEDIA_DRIVER", "memory")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)
	t.Setenv("LOGIN_MAX_ATTEMPTS", "2")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := NewApp(loadTestConfig(t, mr.Addr()), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeAll() })
	return a, mr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApp_MemoryBackends(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Nil(t, a.pool)
	assert.Nil(t, a.producer)
	require.NotNil(t, a.redis)
	assert.Equal(t, ":8000", a.httpServer.Addr)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis"`)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewApp_LoginRateLimitedThroughRedis(t *testing.T) {
	a, _ := newTestApp(t)
	h := a.Handler()

	rec := post(t, h, "/api/v1/users/register",
		`{"username":"neo","email":"neo@matrix.io","password":"secret-pw","avatarRef":"https://cdn.example.com/neo.png"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for i := 0; i < 2; i++ {
		rec = post(t, h, "/api/v1/users/login", `{"username":"neo","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt "+strconv.Itoa(i))
	}

	rec = post(t, h, "/api/v1/users/login", `{"username":"neo","password":"secret-pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestNewApp_RedisDownDisablesLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewApp(loadTestConfig(t, addr), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeAll() })

	assert.Nil(t, a.redis)
}

func TestShutdown_ReleasesResources(t *testing.T) {
	a, _ := newTestApp(t)

	require.NoError(t, a.Shutdown())
	assert.Nil(t, a.redis)
	assert.Nil(t, a.tracerShutdown)
}
