package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config carries everything the pipeline needs, built once at process start
// and passed by reference. Components never read the environment themselves.
type Config struct {
	OllamaBaseURL string
	GenModel      string

	RegistryBaseURL string
	RegistryAPIKey  string

	StatePath    string // directory for the file store, or a .db path for SQLite
	SourcesPath  string // optional override for the embedded sources.yaml

	MaxAttempts          int
	ReprocessWindowHours int
	ItemDelay            time.Duration
	FetchTimeout         time.Duration
	MarkupBudget         int
}

// FromEnv builds a Config from the environment. Missing required settings
// are a fatal error for the run.
func FromEnv() (*Config, error) {
	cfg := &Config{
		OllamaBaseURL:        envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
		GenModel:             envOr("AGENT_GEN_MODEL", "llama3.2:latest"),
		RegistryBaseURL:      strings.TrimRight(os.Getenv("REGISTRY_BASE_URL"), "/"),
		RegistryAPIKey:       os.Getenv("REGISTRY_API_KEY"),
		StatePath:            envOr("AGENT_STATE_PATH", ".agent-state"),
		SourcesPath:          os.Getenv("AGENT_SOURCES_PATH"),
		MaxAttempts:          envInt("AGENT_MAX_ATTEMPTS", 3),
		ReprocessWindowHours: envInt("AGENT_REPROCESS_WINDOW_HOURS", 24),
		ItemDelay:            time.Duration(envInt("AGENT_ITEM_DELAY_SECONDS", 2)) * time.Second,
		FetchTimeout:         time.Duration(envInt("AGENT_FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		MarkupBudget:         envInt("AGENT_MARKUP_BUDGET", 12000),
	}

	if cfg.RegistryBaseURL == "" {
		return nil, fmt.Errorf("REGISTRY_BASE_URL is required")
	}
	if cfg.RegistryAPIKey == "" {
		return nil, fmt.Errorf("REGISTRY_API_KEY is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("AGENT_MAX_ATTEMPTS must be >= 1, got %d", cfg.MaxAttempts)
	}

	if err := CheckServiceKey(cfg.RegistryAPIKey, time.Now()); err != nil {
		return nil, fmt.Errorf("registry api key: %w", err)
	}

	return cfg, nil
}

// CheckServiceKey rejects registry keys that are JWTs past their expiry.
// Keys that are not JWT-shaped are accepted as-is; the registry decides.
func CheckServiceKey(key string, now time.Time) error {
	if strings.Count(key, ".") != 2 {
		return nil
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(key, claims); err != nil {
		return nil // opaque token that merely looks dotted
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(now) {
		return fmt.Errorf("service key expired at %s", exp.Format(time.RFC3339))
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
