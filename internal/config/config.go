package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice conversation service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// DefaultLocale is used for sessions that do not announce one.
	DefaultLocale string
	// PivotLanguage is what travels to the remote assistant.
	PivotLanguage string
	// SpeechMode selects plain or informative reply shaping.
	SpeechMode string
	SpeechRate float64

	AssistantMode    string
	AssistantHTTPURL string
	AssistantAPIKey  string
	AssistantTimeout time.Duration

	TranslateMode    string
	TranslateHTTPURL string

	// DatabaseURL, when set, backs the product catalog with Postgres.
	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("AQUAVOICE_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("AQUAVOICE_METRICS_NAMESPACE", "aquavoice"),
		AllowAnyOrigin:           false,
		DefaultLocale:            envOrDefault("AQUAVOICE_DEFAULT_LOCALE", "en-US"),
		PivotLanguage:            envOrDefault("AQUAVOICE_PIVOT_LANGUAGE", "en"),
		SpeechMode:               envOrDefault("AQUAVOICE_SPEECH_MODE", "informative"),
		SpeechRate:               0,
		AssistantMode:            envOrDefault("AQUAVOICE_ASSISTANT_MODE", "auto"),
		AssistantHTTPURL:         stringsTrimSpace("AQUAVOICE_ASSISTANT_HTTP_URL"),
		AssistantAPIKey:          stringsTrimSpace("AQUAVOICE_ASSISTANT_API_KEY"),
		AssistantTimeout:         45 * time.Second,
		TranslateMode:            envOrDefault("AQUAVOICE_TRANSLATE_MODE", "auto"),
		TranslateHTTPURL:         stringsTrimSpace("AQUAVOICE_TRANSLATE_HTTP_URL"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("AQUAVOICE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("AQUAVOICE_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AssistantTimeout, err = durationFromEnv("AQUAVOICE_ASSISTANT_TIMEOUT", cfg.AssistantTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("AQUAVOICE_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechRate, err = floatFromEnv("AQUAVOICE_SPEECH_RATE", cfg.SpeechRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("AQUAVOICE_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.AssistantTimeout < time.Second {
		return Config{}, fmt.Errorf("AQUAVOICE_ASSISTANT_TIMEOUT must be at least 1s")
	}
	switch cfg.SpeechMode {
	case "plain", "informative":
	default:
		return Config{}, fmt.Errorf("AQUAVOICE_SPEECH_MODE must be plain or informative")
	}
	if cfg.SpeechRate < 0 {
		return Config{}, fmt.Errorf("AQUAVOICE_SPEECH_RATE must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
