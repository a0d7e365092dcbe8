// Package adapter implements protocol.Adapter on top of an llm.Provider.
package adapter

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/llm"
	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/session"
)

// Purpose labels interview calls in the llm event log.
const Purpose = "interview-turn"

// Config holds generation parameters for interview turns.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults. Final reports are long, so the
// token budget is generous.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   4096,
		Temperature: 0.4,
	}
}

// TurnSchema is the llm schema for protocol.StructuredResult. It has
// optional properties, so strict mode stays off.
var TurnSchema = &llm.Schema{
	Name:        protocol.SchemaName,
	Description: protocol.SchemaDescription,
	Definition:  protocol.SchemaDefinition,
}

// LLMAdapter sends interview turns to an llm.Provider.
type LLMAdapter struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

var _ protocol.Adapter = (*LLMAdapter)(nil)

// New creates an adapter over the given provider.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *LLMAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMAdapter{provider: provider, cfg: cfg, logger: logger}
}

// SendMessage implements protocol.Adapter.
func (a *LLMAdapter) SendMessage(ctx context.Context, message string, history []session.Turn, instructionPrompt string) (*protocol.StructuredResult, error) {
	ctx = llm.WithPurpose(ctx, Purpose)

	req := llm.Request{
		System:      instructionPrompt,
		Messages:    buildMessages(history, message),
		Schema:      TurnSchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}

	backend := a.provider.ModelID()
	resp, err := a.provider.Generate(ctx, req)
	if err != nil {
		return nil, a.classify(backend, err)
	}

	result, err := protocol.Decode(resp.Content)
	if err != nil {
		a.logger.Error("interview backend violated contract",
			zap.String("backend", backend),
			zap.Error(err),
			zap.ByteString("raw", resp.Content))
		return nil, &protocol.ContractViolationError{Backend: backend, Raw: string(resp.Content), Err: err}
	}
	return result, nil
}

// classify maps provider errors onto the protocol error taxonomy.
func (a *LLMAdapter) classify(backend string, err error) error {
	var invalid *llm.ErrInvalidResponse
	if errors.As(err, &invalid) {
		a.logger.Error("interview backend returned invalid payload",
			zap.String("backend", backend),
			zap.Error(err),
			zap.ByteString("raw", invalid.Content))
		return &protocol.ContractViolationError{Backend: backend, Raw: string(invalid.Content), Err: err}
	}

	var truncated *llm.ErrMaxTokensExceeded
	if errors.As(err, &truncated) {
		a.logger.Error("interview backend reply truncated",
			zap.String("backend", backend),
			zap.ByteString("raw", truncated.Content))
		return &protocol.ContractViolationError{Backend: backend, Raw: string(truncated.Content), Err: err}
	}

	status := 0
	var rl *llm.ErrRateLimit
	var unavailable *llm.ErrProviderUnavailable
	switch {
	case errors.As(err, &rl):
		status = 429
	case errors.As(err, &unavailable):
		status = unavailable.Status
	}

	a.logger.Warn("interview backend call failed",
		zap.String("backend", backend),
		zap.Int("status", status),
		zap.Error(err))
	return &protocol.ProcessingError{Backend: backend, Status: status, Err: err}
}

// buildMessages converts session history into llm messages and appends the
// new user message.
func buildMessages(history []session.Turn, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == session.RoleModel {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}
