package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestReadDefaults(t *testing.T) {
	c, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, 7*24*time.Hour, c.JWT.TTL())
	assert.Equal(t, "redis", c.Session.Driver)
	assert.Equal(t, "sid", c.Session.Cookie)
	assert.Equal(t, 30, c.Cache.StoreListTTLSec)
	assert.NotEmpty(t, c.JWT.Secret)
}

func TestReadFileAndEnv(t *testing.T) {
	p := writeYAML(t, `
app:
  env: development
  http:
    port: 9090
db:
  driver: memory
session:
  driver: memory
cors:
  origins: ["http://localhost:5173"]
`)
	t.Setenv("APP_JWT_SECRET", "from-env")
	c, err := Read(p)
	require.NoError(t, err)
	assert.Equal(t, 9090, c.App.HTTP.Port)
	assert.Equal(t, "memory", c.DB.Driver)
	assert.Equal(t, "from-env", c.JWT.Secret)
	assert.Equal(t, []string{"http://localhost:5173"}, c.CORS.Origins)
}

func TestReadRejectsBadValues(t *testing.T) {
	_, err := Read(writeYAML(t, "db:\n  driver: oracle\n"))
	assert.Error(t, err)

	_, err = Read(writeYAML(t, "app:\n  env: production\n"))
	assert.ErrorContains(t, err, "jwt.secret")
}
