package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/oauthhub/oauthhub/internal/domain"
	"github.com/oauthhub/oauthhub/internal/oauth"
)

type Config struct {
	AppEnv             string
	DatabaseURL        string
	RedisURL           string
	TokenEncryptionKey string
	CallbackBaseURL    string
	LogLevel           string
	LogFormat          string

	// Platforms holds per-platform client credentials. A platform missing
	// here is treated as not configured and cannot start a flow.
	Platforms map[domain.Platform]oauth.Credentials
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
		CallbackBaseURL:    getEnv("OAUTH_CALLBACK_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		Platforms:          loadPlatformCredentials(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CallbackBaseURL == "" {
		return nil, fmt.Errorf("OAUTH_CALLBACK_BASE_URL is required")
	}
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")

	if cfg.TokenEncryptionKey == "" && cfg.AppEnv != "development" {
		return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY is required outside development")
	}

	return cfg, nil
}

// loadPlatformCredentials reads <PLATFORM>_CLIENT_ID / <PLATFORM>_CLIENT_SECRET
// pairs for every supported platform. Missing pairs are not an error; the
// platform is simply unavailable for connection.
func loadPlatformCredentials() map[domain.Platform]oauth.Credentials {
	creds := make(map[domain.Platform]oauth.Credentials)
	for _, platform := range domain.Platforms() {
		prefix := strings.ToUpper(platform.String())
		clientID := getEnv(prefix+"_CLIENT_ID", "")
		if clientID == "" {
			continue
		}
		creds[platform] = oauth.Credentials{
			ClientID:     clientID,
			ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		}
	}
	return creds
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
