package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/store"
)

// fallbackPairs lists the primary providers that may be swapped for a
// secondary one when the primary cannot be constructed at startup. The
// swap never happens per call.
var fallbackPairs = map[string]string{
	"gemini": "openai",
}

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with timeout, retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, logger *zap.Logger) (Provider, error) {
	base, err := newBaseProvider(ctx, cfg, cfg.Provider)
	if err != nil {
		fb, ok := fallbackPairs[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
		}
		logger.Warn("primary LLM provider failed to initialize, using fallback",
			zap.String("primary", cfg.Provider),
			zap.String("fallback", fb),
			zap.Error(err))

		base, err = newBaseProvider(ctx, cfg, fb)
		if err != nil {
			return nil, fmt.Errorf("initializing %s provider (fallback for %s): %w", fb, cfg.Provider, err)
		}
	}

	// Wrap with middleware: caller → timeout → retry → logging → base
	logged := WithLogging(base, eventRepo, logger)
	retried := WithRetry(logged, cfg.Retry)

	return WithTimeout(retried, cfg.Timeout), nil
}

func newBaseProvider(ctx context.Context, cfg Config, name string) (Provider, error) {
	switch name {
	case "mock":
		return NewDemoProvider(), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		return NewOpenRouterProvider(cfg.OpenRouter)
	case "ark":
		return NewArkProvider(ctx, cfg.Ark)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", name)
	}
}
