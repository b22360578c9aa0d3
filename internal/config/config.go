package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds chat-sync configuration loaded from environment.
type Config struct {
	Env          string
	APIBaseURL   string
	WSURL        string
	AuthToken    string
	UserID       string
	UserName     string
	UserRole     string
	MetricsAddr  string
	AMQPURL      string
	AMQPExchange string
	OTLPEndpoint string
	HTTPTimeout  time.Duration
}

// Load parses environment variables into a Config struct.
func Load() (Config, error) {
	cfg := Config{
		Env:          getEnv("APP_ENV", "dev"),
		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8083"), "/"),
		WSURL:        getEnv("WS_URL", "ws://localhost:8083/ws/chat"),
		AuthToken:    strings.TrimSpace(os.Getenv("AUTH_TOKEN")),
		UserID:       strings.TrimSpace(os.Getenv("USER_ID")),
		UserName:     getEnv("USER_NAME", ""),
		UserRole:     getEnv("USER_ROLE", "user"),
		MetricsAddr:  getEnv("METRICS_ADDR", ":9183"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "chat_sync_events"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}
	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("API_BASE_URL is required")
	}
	if cfg.WSURL == "" {
		return Config{}, fmt.Errorf("WS_URL is required")
	}

	timeout, err := parseDuration("HTTP_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}
	cfg.HTTPTimeout = timeout

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}
