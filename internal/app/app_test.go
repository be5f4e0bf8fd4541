package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace-api/internal/core/config"
	"marketplace-api/internal/transport/http/router"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWT:     config.JWT{Secret: "s", Issuer: "test", AccessTokenTTLMin: 60},
		Session: config.Session{Driver: "memory", TTLHours: 1, SweepMin: 1, Cookie: "sid"},
		DB:      config.DB{Driver: "memory"},
		Storage: config.Storage{Driver: "local", LocalDir: t.TempDir(), PublicBase: "/uploads"},
		Limits:  config.Limits{AuthRPS: 100, AuthBurst: 100},
	}
}

func TestBuildInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Build(ctx, memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	u, created, err := a.Users.EnsureAdmin(ctx, "admin", "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = a.Users.EnsureAdmin(ctx, "admin", "admin@example.com", "adminpass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotEmpty(t, u.ID)

	api := router.NewAPIEngine(a.Deps, a.Registry)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"identifier":"admin","password":"adminpass"}`)))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	admin := router.NewAdminEngine(a.Deps, a.Registry)
	w = httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/v1/users", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuildRejectsMissingRedis(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Session.Driver = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
