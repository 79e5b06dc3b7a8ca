// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64         // Maximum request body size in bytes.
	ShutdownTimeout     time.Duration // HTTP drain budget; 0 waits indefinitely.

	// Audit storage. Empty DatabaseURL disables the audit trail.
	DatabaseURL       string
	AuditEnabled      bool
	AuditWriteTimeout time.Duration

	// Provider settings.
	OllamaBaseURL string
	OllamaModel   string
	OllamaTimeout time.Duration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel   string
	MCPEnabled bool
}

// Provider timeout bounds, in seconds.
const (
	defaultProviderTimeoutSeconds = 60
	minProviderTimeoutSeconds     = 1
)

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first one.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		DatabaseURL:   envStr("DATABASE_URL", ""),
		OllamaBaseURL: strings.TrimRight(envStr("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		OllamaModel:   envStr("OLLAMA_MODEL", "llama2"),
		OpenAIAPIKey:  envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL: strings.TrimRight(envStr("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		OpenAIModel:   envStr("OPENAI_MODEL", "gpt-3.5-turbo"),
		OTELEndpoint:  envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:   envStr("OTEL_SERVICE_NAME", "policymesh"),
		LogLevel:      envStr("POLICYMESH_LOG_LEVEL", "info"),
	}

	var err error
	cfg.Port, err = envInt("POLICYMESH_PORT", 8080)
	collect(err)
	cfg.ReadTimeout, err = envDuration("POLICYMESH_READ_TIMEOUT", 30*time.Second)
	collect(err)
	// Cloud completions can take most of a minute.
	cfg.WriteTimeout, err = envDuration("POLICYMESH_WRITE_TIMEOUT", 90*time.Second)
	collect(err)
	var maxBody int
	maxBody, err = envInt("POLICYMESH_MAX_REQUEST_BODY_BYTES", 1*1024*1024)
	collect(err)
	cfg.MaxRequestBodyBytes = int64(maxBody)
	cfg.ShutdownTimeout, err = envDuration("POLICYMESH_SHUTDOWN_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.AuditWriteTimeout, err = envDuration("POLICYMESH_AUDIT_WRITE_TIMEOUT", 5*time.Second)
	collect(err)
	cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	collect(err)
	cfg.MCPEnabled, err = envBool("POLICYMESH_MCP_ENABLED", true)
	collect(err)

	var fallback int
	fallback, err = envInt("PROVIDER_TIMEOUT_SECONDS", defaultProviderTimeoutSeconds)
	collect(err)
	var ollamaSecs, openaiSecs int
	ollamaSecs, err = envInt("OLLAMA_TIMEOUT_SECONDS", fallback)
	collect(err)
	openaiSecs, err = envInt("OPENAI_TIMEOUT_SECONDS", fallback)
	collect(err)
	cfg.OllamaTimeout = providerTimeout(ollamaSecs)
	cfg.OpenAITimeout = providerTimeout(openaiSecs)

	cfg.AuditEnabled = auditEnabled(os.Getenv("AUDIT_ENABLED"), cfg.DatabaseURL)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("POLICYMESH_PORT must be between 1 and 65535"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("POLICYMESH_MAX_REQUEST_BODY_BYTES must be positive"))
	}
	if c.AuditWriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("POLICYMESH_AUDIT_WRITE_TIMEOUT must be positive"))
	}
	for key, raw := range map[string]string{"OLLAMA_BASE_URL": c.OllamaBaseURL, "OPENAI_BASE_URL": c.OpenAIBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s=%q is not an absolute URL", key, raw))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// AuditStorageConfigured reports whether audit records will be persisted.
func (c Config) AuditStorageConfigured() bool {
	return c.AuditEnabled && c.DatabaseURL != ""
}

// WithDatabaseURL returns a copy of c that stores audit events at url,
// re-resolving AUDIT_ENABLED against it.
func (c Config) WithDatabaseURL(url string) Config {
	c.DatabaseURL = url
	c.AuditEnabled = auditEnabled(os.Getenv("AUDIT_ENABLED"), url)
	return c
}

// auditEnabled resolves AUDIT_ENABLED. Explicit false-like and true-like
// values win; anything else enables auditing only when a database is set.
func auditEnabled(raw, databaseURL string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "false", "no":
		return false
	case "1", "true", "yes":
		return true
	}
	return databaseURL != ""
}

func providerTimeout(seconds int) time.Duration {
	if seconds < minProviderTimeoutSeconds {
		seconds = minProviderTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
