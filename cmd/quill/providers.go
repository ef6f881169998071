package main

import (
	"context"
	"fmt"
	"os"

	"quill/internal/config"
	"quill/internal/provider"
	"quill/internal/provider/anthropic"
	"quill/internal/provider/gemini"
	"quill/internal/provider/openai"
)

// newProvider constructs the configured backend. API keys come from the
// environment, never from the config file.
func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil

	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.BaseURL = cfg.BaseURL
		}), nil

	case "gemini":
		return gemini.New(ctx, func(o *gemini.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = os.Getenv("GEMINI_API_KEY")
			o.Project = cfg.GeminiProject
			if cfg.GeminiLocation != "" {
				o.Location = cfg.GeminiLocation
			}
		})

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
