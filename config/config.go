package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port int
	Host string
	Env  string // "development" or "production"

	// Data directory
	DataDir string

	// Database
	DatabasePath string

	// Session tokens issued by the service
	TokenSecret  string
	TokenTTLDays int

	// OAuth settings
	OAuthClientID     string
	OAuthClientSecret string
	OAuthIssuerURL    string
	OAuthRedirectURI  string

	// Client settings
	ServerURL string

	// Debug settings
	DBLogQueries bool
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global configuration (singleton)
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// load reads configuration from environment variables
func load() *Config {
	dataDir := getEnv("TASKBOARD_DATA_DIR", "./data")

	return &Config{
		// Server
		Port: getEnvInt("PORT", 8090),
		Host: getEnv("HOST", "0.0.0.0"),
		Env:  getEnv("ENV", "development"),

		// Data
		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "taskboard.sqlite"),

		// Tokens
		TokenSecret:  getEnv("TASKBOARD_TOKEN_SECRET", ""),
		TokenTTLDays: getEnvInt("TASKBOARD_TOKEN_TTL_DAYS", 30),

		// OAuth
		OAuthClientID:     getEnv("TASKBOARD_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("TASKBOARD_OAUTH_CLIENT_SECRET", ""),
		OAuthIssuerURL:    getEnv("TASKBOARD_OAUTH_ISSUER_URL", ""),
		OAuthRedirectURI:  getEnv("TASKBOARD_OAUTH_REDIRECT_URI", ""),

		// Client
		ServerURL: getEnv("TASKBOARD_SERVER_URL", "http://127.0.0.1:8090"),

		// Debug
		DBLogQueries: getEnv("DB_LOG_QUERIES", "") == "1",
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
