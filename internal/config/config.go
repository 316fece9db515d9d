// Package config loads runtime settings from the environment.
//
// Values may also come from a .env file in the working directory. Real
// environment variables win over the file, and a missing file is fine.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/bookburst/internal/service"
)

// Config holds every setting the server reads at start-up.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs the token cookies. When JWT_SECRET is unset a random
	// secret is generated and GeneratedSecret is true; cookies then stop
	// working across restarts.
	JWTSecret       string
	GeneratedSecret bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	LogLevel  string // debug | info | warn | error
	LogFormat string // text | json
	LogFile   string // optional; rotated daily

	Delays service.Delays
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads .env (best effort) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
// An invalid value fails with an error naming the variable.
func FromEnv() (Config, error) {
	cfg := Config{
		DBPath:             getenv("DB_PATH", "data/bookburst.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getenv("LOG_FORMAT", "text")),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	port, err := strconv.Atoi(getenv("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("config: PORT must be a TCP port number, got %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	cfg.GitHubCallbackURL = getenv("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/auth/github/callback", port))

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("config: LOG_LEVEL must be debug, info, warn or error, got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	defaults := service.DefaultDelays()
	for _, d := range []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"AUTH_DELAY", &cfg.Delays.Auth, defaults.Auth},
		{"CREATE_DELAY", &cfg.Delays.Create, defaults.Create},
		{"UPDATE_DELAY", &cfg.Delays.Update, defaults.Update},
		{"SEARCH_DELAY", &cfg.Delays.Search, defaults.Search},
	} {
		v, err := durationEnv(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, fmt.Errorf("config: generating JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.GeneratedSecret = true
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// durationEnv parses a time.ParseDuration value. A bare "0" means no delay.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative, got %s", key, raw)
	}
	return d, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
