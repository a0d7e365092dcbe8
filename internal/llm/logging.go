package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an event,
// tagged with the interview labels found on the context.
type LoggingProvider struct {
	inner     Provider
	eventRepo store.EventRepo
	logger    *zap.Logger
}

// WithLogging wraps a Provider with event logging. A nil repo only logs.
func WithLogging(p Provider, repo store.EventRepo, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProvider{inner: p, eventRepo: repo, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	labels := LabelsFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	data := store.LLMRequestEventData{
		Provider:    l.inner.ModelID(),
		Model:       l.inner.ModelID(),
		Purpose:     labels.Purpose,
		CompanyID:   labels.CompanyID,
		SessionID:   labels.SessionID,
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: renderTranscript(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}
	if err != nil {
		data.ErrorMessage = err.Error()
		data.ResponseBody = failedContent(err)
		l.logger.Debug("LLM request failed",
			zap.String("model", data.Provider),
			zap.String("purpose", labels.Purpose),
			zap.String("company_id", labels.CompanyID),
			zap.String("session_id", labels.SessionID),
			zap.Int64("latency_ms", data.LatencyMs),
			zap.Error(err))
	}

	if l.eventRepo == nil {
		return resp, err
	}
	// Bookkeeping must not fail or cancel the interview turn.
	if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
		l.logger.Warn("failed to record LLM request event",
			zap.String("session_id", labels.SessionID),
			zap.Error(logErr))
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// failedContent returns whatever the backend sent before the call was
// rejected, so contract violations can be inspected later.
func failedContent(err error) string {
	var invalid *ErrInvalidResponse
	if errors.As(err, &invalid) {
		return string(invalid.Content)
	}
	var truncated *ErrMaxTokensExceeded
	if errors.As(err, &truncated) {
		return string(truncated.Content)
	}
	return ""
}

// renderTranscript renders the request the way an interview reads: the
// protocol instructions, then the participant and interviewer turns. The
// schema is constant per name, so only the name is kept.
func renderTranscript(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[instructions]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		speaker := "participant"
		if m.Role == RoleAssistant {
			speaker = "interviewer"
		}
		fmt.Fprintf(&b, "[%s]\n%s\n\n", speaker, m.Content)
	}

	if req.Schema != nil {
		fmt.Fprintf(&b, "[schema: %s]\n", req.Schema.Name)
	}
	return b.String()
}
