// Package config holds the static session configuration: defaults merged
// with the user's dotfile, validated once at startup and immutable after.
package config

import "fmt"

// Config is the one configuration value threaded into the provider
// factory, the orchestrator and the permission engine constructors.
type Config struct {
	// Provider selects the backend: "anthropic", "openai" or "gemini".
	Provider string `json:"provider"`

	// Model is the backend-specific model identifier. Empty selects the
	// adapter's default.
	Model string `json:"model"`

	// BaseURL points the openai backend at a compatible server (vLLM,
	// LocalAI, llama.cpp, Ollama). Empty selects the hosted API.
	BaseURL string `json:"base_url"`

	// GeminiProject and GeminiLocation select Vertex AI for the gemini
	// backend when no API key is set.
	GeminiProject  string `json:"gemini_project"`
	GeminiLocation string `json:"gemini_location"`

	// MaxTurns bounds provider calls per user input; 0 means unlimited.
	MaxTurns int `json:"max_turns"`

	// BashTimeoutSeconds is the wall-clock limit for shell commands.
	BashTimeoutSeconds int `json:"bash_timeout_seconds"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:           "anthropic",
		GeminiLocation:     "us-central1",
		MaxTurns:           50,
		BashTimeoutSeconds: 120,
		LogLevel:           "warn",
	}
}

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"gemini":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate rejects values the session cannot start with.
func (c *Config) Validate() error {
	if !validProviders[c.Provider] {
		return fmt.Errorf("unknown provider %q (available: anthropic, openai, gemini)", c.Provider)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative, got %d", c.MaxTurns)
	}
	if c.BashTimeoutSeconds < 0 {
		return fmt.Errorf("bash_timeout_seconds must not be negative, got %d", c.BashTimeoutSeconds)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("unknown log_level %q (available: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}
