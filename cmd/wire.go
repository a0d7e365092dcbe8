package cmd

import (
	"context"
	"fmt"

	"github.com/abhisek/orgdiag/internal/adapter"
	"github.com/abhisek/orgdiag/internal/config"
	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/interview"
	"github.com/abhisek/orgdiag/internal/llm"
	"github.com/abhisek/orgdiag/internal/prompt"
	"github.com/abhisek/orgdiag/internal/store"
)

// newOrchestrator selects the interview backend once and wires it with the
// store-backed repositories.
func newOrchestrator(ctx context.Context, st *store.Store, cfg config.Config) (*interview.Orchestrator, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, st.LLMEvents(), logger)
	if err != nil {
		return nil, err
	}
	logger.Info("interview backend selected")

	return interview.NewOrchestrator(
		st.Sessions(),
		prompt.NewAssembler(st.Catalog()),
		adapter.New(provider, cfg.Interview, logger),
		diagnosis.NewFinalizer(st.Diagnostics(), st.Catalog(), st.Companies(), logger),
		logger,
	), nil
}
