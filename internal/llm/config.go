package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "anthropic", "openai", "gemini", "openrouter", "ark", "mock"
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Ark        ArkConfig
	Retry      RetryConfig

	// Timeout bounds a single LLM request including retries. Zero leaves
	// the call bounded only by the caller's context. Default: 0.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-sonnet"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for OpenRouter or compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-exp"
	BaseURL string // Default: "https://openrouter.ai/api/v1"

	// AppURL and AppTitle are sent as OpenRouter attribution headers.
	AppURL   string
	AppTitle string // Default: "orgdiag"
}

// ArkConfig holds Volcengine Ark configuration (served through eino).
type ArkConfig struct {
	APIKey  string
	Model   string // Endpoint or model ID; no default.
	BaseURL string // Default: "https://ark.cn-beijing.volces.com/api/v3"
	Region  string // Default: "cn-beijing"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "gemini",
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.0-flash-exp",
		},
		Ark: ArkConfig{
			BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
			Region:  "cn-beijing",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("ORGDIAG_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}
	if t := os.Getenv("ORGDIAG_LLM_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if k := os.Getenv("ORGDIAG_ANTHROPIC_API_KEY"); k != "" {
		cfg.Anthropic.APIKey = k
	}
	if m := os.Getenv("ORGDIAG_ANTHROPIC_MODEL"); m != "" {
		cfg.Anthropic.Model = m
	}

	if k := os.Getenv("ORGDIAG_OPENAI_API_KEY"); k != "" {
		cfg.OpenAI.APIKey = k
	}
	if m := os.Getenv("ORGDIAG_OPENAI_MODEL"); m != "" {
		cfg.OpenAI.Model = m
	}
	if u := os.Getenv("ORGDIAG_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}

	if k := os.Getenv("ORGDIAG_GEMINI_API_KEY"); k != "" {
		cfg.Gemini.APIKey = k
	}
	if m := os.Getenv("ORGDIAG_GEMINI_MODEL"); m != "" {
		cfg.Gemini.Model = m
	}

	if k := os.Getenv("ORGDIAG_OPENROUTER_API_KEY"); k != "" {
		cfg.OpenRouter.APIKey = k
	}
	if m := os.Getenv("ORGDIAG_OPENROUTER_MODEL"); m != "" {
		cfg.OpenRouter.Model = m
	}
	if u := os.Getenv("ORGDIAG_OPENROUTER_APP_URL"); u != "" {
		cfg.OpenRouter.AppURL = u
	}

	if k := os.Getenv("ORGDIAG_ARK_API_KEY"); k != "" {
		cfg.Ark.APIKey = k
	}
	if m := os.Getenv("ORGDIAG_ARK_MODEL"); m != "" {
		cfg.Ark.Model = m
	}
	if u := os.Getenv("ORGDIAG_ARK_BASE_URL"); u != "" {
		cfg.Ark.BaseURL = u
	}
	if r := os.Getenv("ORGDIAG_ARK_REGION"); r != "" {
		cfg.Ark.Region = r
	}

	return cfg
}

// DiscoverConfig checks standard API key env vars in priority order
// (Gemini → OpenAI → Anthropic → OpenRouter) and returns a Config for the
// first provider whose key is found. Returns (Config{}, false) if none found.
//
// Keys for the other providers are filled in too, so the startup fallback
// in NewProvider has credentials to work with.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()
	cfg.Provider = ""

	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")

	switch {
	case cfg.Gemini.APIKey != "":
		cfg.Provider = "gemini"
	case cfg.OpenAI.APIKey != "":
		cfg.Provider = "openai"
	case cfg.Anthropic.APIKey != "":
		cfg.Provider = "anthropic"
	case cfg.OpenRouter.APIKey != "":
		cfg.Provider = "openrouter"
	default:
		return Config{}, false
	}
	return cfg, true
}

// HasCredentials reports whether any provider-specific key was configured
// through the ORGDIAG_* variables.
func (c Config) HasCredentials() bool {
	return c.Anthropic.APIKey != "" || c.OpenAI.APIKey != "" || c.Gemini.APIKey != "" ||
		c.OpenRouter.APIKey != "" || c.Ark.APIKey != ""
}

// Validate checks that the selected provider has its required API key set.
// A missing key on the primary is tolerated when the provider has a
// startup fallback whose key is present.
func (c Config) Validate() error {
	err := c.validateProvider(c.Provider)
	if err == nil {
		return nil
	}
	if fb, ok := fallbackPairs[c.Provider]; ok && c.validateProvider(fb) == nil {
		return nil
	}
	return err
}

func (c Config) validateProvider(name string) error {
	switch name {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ORGDIAG_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("ORGDIAG_OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("ORGDIAG_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("ORGDIAG_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case "ark":
		if c.Ark.APIKey == "" {
			return fmt.Errorf("ORGDIAG_ARK_API_KEY is required for the ark provider")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("ORGDIAG_ARK_MODEL is required for the ark provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", name)
	}
	return nil
}
