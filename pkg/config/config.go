// Package config holds environment-driven settings for the honeypot service.
// All settings can be configured via environment variables or programmatically.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLMProvider defines the backend LLM service type
type LLMProvider string

const (
	ProviderNone       LLMProvider = "none"       // No LLM, templates only
	ProviderOllama     LLMProvider = "ollama"     // Local Ollama server
	ProviderOpenRouter LLMProvider = "openrouter" // OpenRouter (default, has free tier)
	ProviderGroq       LLMProvider = "groq"       // Groq (high-speed inference)
	ProviderOpenAI     LLMProvider = "openai"     // Direct OpenAI API
	ProviderCustom     LLMProvider = "custom"     // Custom OpenAI-compatible endpoint
)

// DefaultAPIKey is the development key for the inbound endpoint.
// Override with HONEYPOT_API_KEY in any real deployment.
const DefaultAPIKey = "honeypot-dev-key"

// Config holds global settings for the honeypot service
type Config struct {
	// === Core Settings ===
	Port           string // HTTP listen port (default: "8080")
	APIKey         string // Required x-api-key value for the inbound endpoint
	CallbackURL    string // Target URL for the finalization report; empty = queue-only
	RetryQueuePath string // Append-only JSONL file for undeliverable callbacks
	LogLevel       string // "debug", "info", "warn", "error"

	// === LLM Provider Configuration ===
	// These settings control naturalization, classification and Layer-2 extraction
	LLMEnabled  bool        // Master kill-switch for all LLM usage
	LLMProvider LLMProvider // Which LLM service to use
	LLMAPIKey   string      // Provider credential; absent forces LLMEnabled=false
	LLMModel    string      // Model identifier
	LLMBaseURL  string      // Custom base URL for self-hosted or custom providers

	// === Session Management ===
	SessionMaxAge   time.Duration // Sessions inactive longer than this are evicted, finalized or not
	IdleTimeout     time.Duration // Criterion D: idle sessions finalize after this
	ReaperInterval  time.Duration // Idle-reaper scan interval
	MaxLLMInFlight  int           // Semaphore size bounding concurrent LLM calls
	CallbackTimeout time.Duration // Per-attempt timeout for callback POSTs
}

// NewDefaultConfig creates a Config with sensible defaults.
// A .env file in the working directory is loaded first if present.
func NewDefaultConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           GetEnv("PORT", "8080"),
		APIKey:         GetEnv("HONEYPOT_API_KEY", DefaultAPIKey),
		CallbackURL:    GetEnv("CALLBACK_URL", ""),
		RetryQueuePath: GetEnv("RETRY_QUEUE_PATH", "callback_retry.jsonl"),
		LogLevel:       strings.ToLower(GetEnv("LOG_LEVEL", "info")),

		LLMEnabled:  GetEnvBool("LLM_ENABLED", true),
		LLMProvider: detectLLMProvider(),
		LLMAPIKey:   GetEnv("LLM_API_KEY", os.Getenv("OPENROUTER_API_KEY")),
		LLMModel:    GetEnv("LLM_MODEL", "meta-llama/llama-3.1-8b-instruct:free"),
		LLMBaseURL:  GetEnv("LLM_BASE_URL", ""),

		SessionMaxAge:   time.Duration(GetEnvInt("SESSION_MAX_AGE_SECONDS", 1800)) * time.Second,
		IdleTimeout:     time.Duration(GetEnvInt("IDLE_TIMEOUT_SECONDS", 60)) * time.Second,
		ReaperInterval:  time.Duration(clampInt(GetEnvInt("REAPER_INTERVAL_SECONDS", 5), 1, 10)) * time.Second,
		MaxLLMInFlight:  clampInt(GetEnvInt("MAX_LLM_CONCURRENT", 8), 1, 64),
		CallbackTimeout: time.Duration(GetEnvInt("CALLBACK_TIMEOUT_SECONDS", 3)) * time.Second,
	}

	// No credential means no LLM, regardless of the flag. Ollama is the
	// exception since local servers do not require a key.
	if cfg.LLMAPIKey == "" && cfg.LLMProvider != ProviderOllama {
		cfg.LLMEnabled = false
	}

	return cfg
}

func detectLLMProvider() LLMProvider {
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		return LLMProvider(p)
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("LLM_API_KEY") != "" {
		return ProviderOpenRouter
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	return ProviderOllama
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing.
// Exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// RequiredSecret defines a required environment variable for startup validation
type RequiredSecret struct {
	Name        string // Environment variable name
	Description string // Human-readable description
	Production  bool   // Required in production only (false = required always)
}

// CriticalSecrets returns the list of secrets required for the service to operate
func CriticalSecrets() []RequiredSecret {
	return []RequiredSecret{
		{Name: "HONEYPOT_API_KEY", Description: "API key for the inbound message endpoint", Production: true},
		{Name: "CALLBACK_URL", Description: "Finalization report target", Production: true},
	}
}

// Validate checks that all required configuration is present.
// In production mode, this returns an error if critical settings are missing.
// In development mode, it logs warnings but allows startup for local testing.
func (c *Config) Validate() error {
	env := strings.ToLower(os.Getenv("HONEYPOT_ENV"))
	isProduction := env == "production" || env == "prod"

	var missing []string
	for _, secret := range CriticalSecrets() {
		if os.Getenv(secret.Name) != "" {
			continue
		}
		if secret.Production && !isProduction {
			log.Printf("[STARTUP] Warning: %s not set (%s)", secret.Name, secret.Description)
			continue
		}
		missing = append(missing, secret.Name+" ("+secret.Description+")")
	}

	if isProduction && c.APIKey == DefaultAPIKey {
		missing = append(missing, "HONEYPOT_API_KEY (default dev key not allowed in production)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}
