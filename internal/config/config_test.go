package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultSendBuffer, cfg.WS.SendBuffer)
	assert.Equal(t, 54*time.Second, cfg.WS.PingPeriod)
	assert.False(t, cfg.Pairing.PairOnNext)
	require.Len(t, cfg.ICE.Servers, 1)
	assert.Equal(t, []string{DefaultSTUNURL}, cfg.ICE.Servers[0].URLs)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeTempFile(t, `
server:
  addr: 127.0.0.1:9000
  static_dir: ./public
  allowed_origins: ["https://example.com"]
  shutdown_timeout: 2s
ws:
  send_buffer: 8
  pong_wait: 30s
  ping_period: 20s
pairing:
  pair_on_next: true
log:
  level: debug
  format: json
ice:
  servers:
    - urls: ["stun:stun.example.com:3478"]
    - urls: ["turn:turn.example.com:3478"]
      username: user
      credential: pass
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "./public", cfg.Server.StaticDir)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 8, cfg.WS.SendBuffer)
	assert.Equal(t, 20*time.Second, cfg.WS.PingPeriod)
	assert.True(t, cfg.Pairing.PairOnNext)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)

	servers := cfg.ICE.WebRTCServers()
	require.Len(t, servers, 2)
	assert.Equal(t, "user", servers[1].Username)
	assert.Equal(t, "pass", servers[1].Credential)
	assert.Nil(t, servers[0].Credential)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_TURN_SECRET", "s3cret")
	path := writeTempFile(t, `
ice:
  servers:
    - urls: ["turns:turn.example.com:5349"]
      username: u
      credential: ${TEST_TURN_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.ICE.Servers[0].Credential)
}

func TestLoadAndValidateEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvPairOnNext, "true")
	t.Setenv(EnvSTUNURLs, "stun:a.example.com, stun:b.example.com")
	t.Setenv(EnvOrigins, "https://a.example.com,https://b.example.com")

	cfg, err := LoadAndValidate("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Pairing.PairOnNext)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	require.Len(t, cfg.ICE.Servers, 1)
	assert.Equal(t, []string{"stun:a.example.com", "stun:b.example.com"}, cfg.ICE.Servers[0].URLs)
}

func TestLoadAndValidateBadEnv(t *testing.T) {
	t.Setenv(EnvPairOnNext, "maybe")

	_, err := LoadAndValidate("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = " " }},
		{"zero send buffer", func(c *Config) { c.WS.SendBuffer = 0 }},
		{"ping after pong", func(c *Config) { c.WS.PingPeriod = c.WS.PongWait }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad ice scheme", func(c *Config) {
			c.ICE.Servers = []ICEServerConfig{{URLs: []string{"http://example.com"}}}
		}},
		{"turn without credential", func(c *Config) {
			c.ICE.Servers = []ICEServerConfig{{URLs: []string{"turn:t.example.com"}, Username: "u"}}
		}},
		{"ice without urls", func(c *Config) {
			c.ICE.Servers = []ICEServerConfig{{URLs: []string{" "}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	open := ServerConfig{}
	assert.True(t, open.OriginAllowed("https://anything.example"))

	wildcard := ServerConfig{AllowedOrigins: []string{"*"}}
	assert.True(t, wildcard.OriginAllowed("https://anything.example"))

	strict := ServerConfig{AllowedOrigins: []string{"https://app.example.com"}}
	assert.True(t, strict.OriginAllowed("https://APP.example.com"))
	assert.True(t, strict.OriginAllowed(""), "non-browser clients send no Origin")
	assert.False(t, strict.OriginAllowed("https://evil.example.com"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROULETTE_TEST_DOTENV=hello\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ROULETTE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "hello", os.Getenv("ROULETTE_TEST_DOTENV"))
}
