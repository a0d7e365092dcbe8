// Package config composes the process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/abhisek/orgdiag/internal/adapter"
	"github.com/abhisek/orgdiag/internal/llm"
	"github.com/abhisek/orgdiag/internal/store"
)

// DefaultAddr is the HTTP listen address when ORGDIAG_ADDR is unset.
const DefaultAddr = ":8080"

// Config is everything the server and CLI need to start.
type Config struct {
	Addr      string
	DBPath    string
	LLM       llm.Config
	Interview adapter.Config
}

// Load reads ORGDIAG_* variables. When no ORGDIAG_* provider key is set,
// the standard provider key variables are checked instead.
func Load() (Config, error) {
	cfg := Config{
		Addr:      DefaultAddr,
		LLM:       llm.ConfigFromEnv(),
		Interview: adapter.DefaultConfig(),
	}

	if a := os.Getenv("ORGDIAG_ADDR"); a != "" {
		cfg.Addr = a
	}

	if !cfg.LLM.HasCredentials() && os.Getenv("ORGDIAG_LLM_PROVIDER") != "mock" {
		if discovered, ok := llm.DiscoverConfig(); ok {
			discovered.Timeout = cfg.LLM.Timeout
			discovered.Retry = cfg.LLM.Retry
			cfg.LLM = discovered
		}
	}

	if v := os.Getenv("ORGDIAG_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("ORGDIAG_MAX_TOKENS: invalid value %q", v)
		}
		cfg.Interview.MaxTokens = n
	}
	if v := os.Getenv("ORGDIAG_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return Config{}, fmt.Errorf("ORGDIAG_TEMPERATURE: invalid value %q", v)
		}
		cfg.Interview.Temperature = f
	}

	p, err := store.DefaultDBPath()
	if err != nil {
		return Config{}, fmt.Errorf("resolve database path: %w", err)
	}
	cfg.DBPath = p

	return cfg, nil
}
