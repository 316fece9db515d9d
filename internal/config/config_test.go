package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/bookburst/internal/service"
)

// clearEnv blanks every variable FromEnv reads so the host environment
// can't leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_PATH", "JWT_SECRET",
		"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
		"AUTH_DELAY", "CREATE_DELAY", "UPDATE_DELAY", "SEARCH_DELAY",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/bookburst.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, service.DefaultDelays(), cfg.Delays)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL)
	assert.False(t, cfg.GitHubEnabled())

	assert.True(t, cfg.GeneratedSecret)
	assert.Len(t, cfg.JWTSecret, 64)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/books.db")
	t.Setenv("JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_FILE", "logs/bookburst.log")
	t.Setenv("AUTH_DELAY", "0")
	t.Setenv("SEARCH_DELAY", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/books.db", cfg.DBPath)
	assert.Equal(t, "a-very-long-test-secret", cfg.JWTSecret)
	assert.False(t, cfg.GeneratedSecret)
	assert.True(t, cfg.GitHubEnabled())
	assert.Equal(t, "http://localhost:9090/auth/github/callback", cfg.GitHubCallbackURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "logs/bookburst.log", cfg.LogFile)
	assert.Zero(t, cfg.Delays.Auth)
	assert.Equal(t, 250*time.Millisecond, cfg.Delays.Search)
	assert.Equal(t, service.DefaultDelays().Update, cfg.Delays.Update)
}

func TestFromEnv_InvalidValuesNameTheVariable(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "eighty"},
		{"PORT", "70000"},
		{"LOG_LEVEL", "loud"},
		{"LOG_FORMAT", "xml"},
		{"AUTH_DELAY", "soon"},
		{"UPDATE_DELAY", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestFromEnv_GeneratedSecretsDiffer(t *testing.T) {
	clearEnv(t)

	a, err := FromEnv()
	require.NoError(t, err)
	b, err := FromEnv()
	require.NoError(t, err)
	assert.NotEqual(t, a.JWTSecret, b.JWTSecret)
}
