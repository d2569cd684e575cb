package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DoyleJ11/imposter-client/internal/types"
)

// DevAPIURL is where a locally served client finds the backend.
const DevAPIURL = "http://127.0.0.1:8080"

type Config struct {
	APIURL      string
	Origin      string
	Env         string
	LogLevel    string
	HTTPTimeout time.Duration
	HostName    string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("IMPOSTER_HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPOSTER_HTTP_TIMEOUT: %w", err)
	}

	origin := getEnv("IMPOSTER_ORIGIN", "http://localhost")
	cfg := &Config{
		APIURL:      ResolveBaseURL(getEnv("IMPOSTER_API_URL", ""), origin),
		Origin:      origin,
		Env:         getEnv("IMPOSTER_ENV", "dev"),
		LogLevel:    getEnv("IMPOSTER_LOG_LEVEL", ""),
		HTTPTimeout: timeout,
		HostName:    getEnv("IMPOSTER_HOST_NAME", types.DefaultHostName),
	}

	if cfg.HostName == "" {
		return nil, fmt.Errorf("IMPOSTER_HOST_NAME must not be empty")
	}

	return cfg, nil
}

// ResolveBaseURL picks the request/response base address. An explicit value
// wins; loopback origins talk to the local backend; anything else is assumed
// to be served by the backend itself.
func ResolveBaseURL(explicit, origin string) string {
	if explicit != "" {
		return strings.TrimRight(explicit, "/")
	}
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		return DevAPIURL
	}
	return strings.TrimRight(origin, "/")
}

// WebSocketURL turns a base address plus path into a ws:// or wss:// URL.
func WebSocketURL(base, path string) string {
	proto := "ws"
	if strings.HasPrefix(base, "https") {
		proto = "wss"
	}
	host := strings.TrimPrefix(strings.TrimPrefix(base, "https://"), "http://")
	return proto + "://" + strings.TrimRight(host, "/") + path
}

func NewLogger(cfg *Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Env == "dev" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid IMPOSTER_LOG_LEVEL: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
