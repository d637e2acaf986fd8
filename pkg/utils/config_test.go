package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv(ConfigPathEnv, "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://headcanongenerator.world", cfg.SiteURL())
	assert.Equal(t, []string{"127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, 30, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Geo.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Geo.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTDuration)
	assert.Contains(t, cfg.Database.Path, filepath.Join(".headcanon", "data.db"))
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  site_url: "https://example.test/"
ratelimit:
  requests: 10
  window: 30s
geo:
  enabled: false
`), 0o644))

	t.Setenv(ConfigPathEnv, path)
	t.Setenv("HEADCANON_RATELIMIT_REQUESTS", "5")
	t.Setenv("HEADCANON_SERVER_TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")
	t.Setenv("HEADCANON_AUTH_JWT_TTL", "2h")
	t.Setenv("HEADCANON_DATABASE_PATH", filepath.Join(dir, "hc.db"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://example.test", cfg.SiteURL())
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.False(t, cfg.Geo.Enabled)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)
	assert.Equal(t, 2*time.Hour, cfg.Auth.JWTDuration)
	assert.Equal(t, filepath.Join(dir, "hc.db"), cfg.Database.Path)
}

func TestLoadConfig_Invalid(t *testing.T) {
	chdirTemp(t)
	t.Setenv(ConfigPathEnv, "")
	t.Setenv("HEADCANON_RATELIMIT_REQUESTS", "0")
	t.Setenv("HEADCANON_SERVER_SITE_URL", "not a url")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratelimit.requests")
	assert.Contains(t, err.Error(), "server.site_url")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"HEADCANON_SERVER_ADDR":     "server.addr",
		"HEADCANON_SERVER_SITE_URL": "server.site_url",
		"HEADCANON_AUTH_JWT_SECRET": "auth.jwt_secret",
		"HEADCANON_GEO_BASE_URL":    "geo.base_url",
		"HEADCANON_CONFIG":          "",
		"HEADCANON_LONELY":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
