package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/review-agent/backend/pkg/circuitbreaker"
	"github.com/review-agent/backend/pkg/config"
	"github.com/review-agent/backend/pkg/logger"
)

// NewFromConfig builds the client for the generation and repair profiles.
// Profiles on the same provider share one backend.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, opts ...ClientOption) (*Client, error) {
	backends := map[string]Backend{}
	backendFor := func(provider string) (Backend, error) {
		if b, ok := backends[provider]; ok {
			return b, nil
		}
		var b Backend
		switch provider {
		case "openai":
			b = NewOpenAIBackend(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		case "anthropic":
			b = NewAnthropicBackend(cfg.Anthropic.APIKey)
		case "ollama":
			b = NewOllamaBackend(cfg.Ollama.BaseURL, &http.Client{})
		case "gemini":
			gb, err := NewGeminiBackend(ctx, cfg.Gemini.APIKey)
			if err != nil {
				return nil, err
			}
			b = gb
		default:
			return nil, fmt.Errorf("unsupported completion provider %q", provider)
		}
		backends[provider] = b
		return b, nil
	}

	profiles := map[Profile]ProfileSpec{}
	for name, p := range map[Profile]config.ProfileConfig{
		ProfileGeneration: cfg.Generation,
		ProfileRepair:     cfg.Repair,
	} {
		b, err := backendFor(p.Provider)
		if err != nil {
			return nil, fmt.Errorf("llm.%s: %w", name, err)
		}
		profiles[name] = ProfileSpec{
			Backend:     b,
			Model:       p.Model,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Timeout:     time.Duration(p.TimeoutSec) * time.Second,
		}
	}

	breaker := circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Timeout:          time.Duration(cfg.Breaker.OpenTimeoutSec) * time.Second,
		Logger:           logger.Component("llm"),
	}

	return NewClient(profiles, breaker, opts...), nil
}
