// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/rollcall/internal/constants"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Extractor ExtractorConfig
	Engine    EngineConfig
	Auth      AuthConfig
	Devices   DeviceConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // origins allowed to call the API from a browser
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty selects SQLite
	SQLitePath   string // SQLite file used when URL is empty (default rollcall.db)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// UsePostgres reports whether a PostgreSQL URL was configured.
func (c DatabaseConfig) UsePostgres() bool {
	return c.URL != ""
}

type ExtractorConfig struct {
	URL            string // face embedding service base URL, required to serve
	TimeoutSeconds int
}

type EngineConfig struct {
	CacheTTLSeconds  int
	CooldownSeconds  int
	IndexThreshold   int // sample count above which the approximate index kicks in
	ReviewImageMaxPx int
}

type AuthConfig struct {
	SessionSecret     string // signs session cookies, required to serve
	AdminUsername     string
	AdminPassword     string // plaintext, for development setups
	AdminPasswordHash string // bcrypt hash, takes precedence over AdminPassword
}

type DeviceConfig struct {
	TokenSecret   string // signs kiosk device tokens; empty disables device auth
	TokenTTLHours int
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envList reads a comma separated environment variable into a slice.
func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           os.Getenv("ROLLCALL_HOST"),
			Port:           envInt("ROLLCALL_PORT", 8085),
			AllowedOrigins: envList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			SQLitePath:   envString("SQLITE_PATH", "rollcall.db"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL:            os.Getenv("EXTRACTOR_URL"),
			TimeoutSeconds: envInt("EXTRACTOR_TIMEOUT_SECONDS", constants.DefaultExtractorTimeoutSeconds),
		},
		Engine: EngineConfig{
			CacheTTLSeconds:  envInt("CACHE_TTL_SECONDS", constants.DefaultCacheTTLSeconds),
			CooldownSeconds:  envInt("COOLDOWN_SECONDS", constants.DefaultCooldownSeconds),
			IndexThreshold:   envInt("INDEX_THRESHOLD", constants.DefaultIndexThreshold),
			ReviewImageMaxPx: envInt("REVIEW_IMAGE_MAX_PX", constants.DefaultReviewImageMaxPx),
		},
		Auth: AuthConfig{
			SessionSecret:     os.Getenv("SESSION_SECRET"),
			AdminUsername:     envString("ADMIN_USERNAME", "admin"),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		Devices: DeviceConfig{
			TokenSecret:   os.Getenv("DEVICE_TOKEN_SECRET"),
			TokenTTLHours: envInt("DEVICE_TOKEN_TTL_HOURS", 720),
		},
	}
}
