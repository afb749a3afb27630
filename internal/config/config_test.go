package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"CONFIG", "SERVER_ADDRESS", "DATABASE_DSN", "PUBLIC_DIR", "DATA_URL", "LOG_LEVEL",
	"TLS_CERT", "TLS_KEY", "PASSWORD_HASH", "NEXT_PUBLIC_PASSWORD_HASH", "SESSION_IDLE_TTL",
	"TRUST_PROXY",
}

// clearEnv unsets every variable Parse reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func isolated(t *testing.T, extra ...string) []string {
	t.Helper()
	dir := t.TempDir()
	return append([]string{
		"-c", filepath.Join(dir, "missing.json"),
		"-env", filepath.Join(dir, "missing.env"),
	}, extra...)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	opts, err := Parse(isolated(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultAddress, opts.Address)
	assert.Equal(t, DefaultPublicDir, opts.PublicDir)
	assert.Equal(t, DefaultDataURL, opts.DataURL)
	assert.Equal(t, DefaultLogLevel, opts.LogLevel)
	assert.Equal(t, DefaultSessionIdleTTL, opts.SessionIdleTTL)
	assert.Empty(t, opts.DatabaseDSN)
	assert.Empty(t, opts.PasswordHash)
	assert.False(t, opts.TLSEnabled())
	assert.False(t, opts.TrustProxy)
}

func TestParse_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{
		"server_address": ":9000",
		"database_dsn": "postgres://localhost/ride",
		"public_dir": "/srv/public",
		"password_hash": "abc",
		"session_idle_ttl": "30m",
		"tls_cert": "server.crt",
		"tls_key": "server.key"
	}`)

	opts, err := Parse([]string{"-c", path, "-env", ""})
	require.NoError(t, err)
	assert.Equal(t, ":9000", opts.Address)
	assert.Equal(t, "postgres://localhost/ride", opts.DatabaseDSN)
	assert.Equal(t, "/srv/public", opts.PublicDir)
	assert.Equal(t, "abc", opts.PasswordHash)
	assert.Equal(t, 30*time.Minute, opts.SessionIdleTTL)
	assert.True(t, opts.TLSEnabled())
}

func TestParse_ConfigFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"server_address": ":7000"}`)
	t.Setenv("CONFIG", path)

	opts, err := Parse([]string{"-env", ""})
	require.NoError(t, err)
	assert.Equal(t, ":7000", opts.Address)
	assert.Equal(t, path, opts.Config)
}

func TestParse_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"server_address": ":9000", "public_dir": "from-file", "data_url": "https://file/x.json"}`)
	t.Setenv("SERVER_ADDRESS", ":8000")
	t.Setenv("PUBLIC_DIR", "from-env")

	opts, err := Parse([]string{"-c", path, "-env", "", "-a", ":7000"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", opts.Address, "flag beats env")
	assert.Equal(t, "from-env", opts.PublicDir, "env beats file")
	assert.Equal(t, "https://file/x.json", opts.DataURL, "file beats default")
}

func TestParse_PasswordHashFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_PASSWORD_HASH", " legacy \n")
	opts, err := Parse(isolated(t))
	require.NoError(t, err)
	assert.Equal(t, "legacy", opts.PasswordHash)

	t.Setenv("PASSWORD_HASH", "current")
	opts, err = Parse(isolated(t))
	require.NoError(t, err)
	assert.Equal(t, "current", opts.PasswordHash)
}

func TestParse_DotEnv(t *testing.T) {
	clearEnv(t)
	envPath := writeFile(t, ".env", "PASSWORD_HASH=fromdotenv\nLOG_LEVEL=debug\n")
	t.Setenv("LOG_LEVEL", "warn")

	opts, err := Parse([]string{"-c", "", "-env", envPath})
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", opts.PasswordHash)
	assert.Equal(t, "warn", opts.LogLevel, ".env does not override the environment")
}

func TestParse_SessionTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_IDLE_TTL", "90m")
	opts, err := Parse(isolated(t))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, opts.SessionIdleTTL)

	opts, err = Parse(isolated(t, "-session-ttl", "5m"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, opts.SessionIdleTTL)
}

func TestParse_TrustProxy(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUST_PROXY", "true")
	opts, err := Parse(isolated(t))
	require.NoError(t, err)
	assert.True(t, opts.TrustProxy)

	opts, err = Parse(isolated(t, "-trust-proxy=false"))
	require.NoError(t, err)
	assert.False(t, opts.TrustProxy, "an explicit flag wins over the environment")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) []string
	}{
		{"unknown flag", func(t *testing.T) []string { return isolated(t, "-nope") }},
		{"bad json", func(t *testing.T) []string {
			return []string{"-c", writeFile(t, "config.json", `{`), "-env", ""}
		}},
		{"bad file ttl", func(t *testing.T) []string {
			return []string{"-c", writeFile(t, "config.json", `{"session_idle_ttl":"soon"}`), "-env", ""}
		}},
		{"bad env ttl", func(t *testing.T) []string {
			t.Setenv("SESSION_IDLE_TTL", "soon")
			return isolated(t)
		}},
		{"bad env trust proxy", func(t *testing.T) []string {
			t.Setenv("TRUST_PROXY", "maybe")
			return isolated(t)
		}},
		{"zero ttl", func(t *testing.T) []string { return isolated(t, "-session-ttl", "0s") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Parse(tt.setup(t))
			assert.Error(t, err)
		})
	}
}
