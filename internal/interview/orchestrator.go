// Package interview drives one request/response exchange of the diagnostic
// interview.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/llm"
	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/session"
)

var (
	// ErrNotFound is returned when the session id is unknown.
	ErrNotFound = errors.New("session not found")

	// ErrForbidden is returned when the caller does not own the session.
	ErrForbidden = errors.New("session belongs to another caller")

	// ErrInvalidRequest is returned for requests missing a caller or message.
	ErrInvalidRequest = errors.New("invalid request")
)

// AuthorizationError reports an owner mismatch. It matches ErrForbidden.
type AuthorizationError struct {
	SessionID string
	CallerID  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller %s may not access session %s", e.CallerID, e.SessionID)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

// PromptBuilder produces the protocol instruction prompt.
type PromptBuilder interface {
	Build(ctx context.Context) (string, error)
}

// Finalizer runs the finalization transaction for a terminal result.
type Finalizer interface {
	Finalize(ctx context.Context, in diagnosis.FinalizeInput) (string, error)
}

// AdvanceRequest is one participant message. An empty SessionID starts a
// new interview.
type AdvanceRequest struct {
	SessionID string
	CallerID  string
	Utterance string
}

// AdvanceResult is the orchestrator's answer to one message.
type AdvanceResult struct {
	SessionID    string                 `json:"sessionId"`
	DiagnosticID *string                `json:"diagnosticId"`
	Status       protocol.Status        `json:"status"`
	NextQuestion *protocol.NextQuestion `json:"nextQuestion"`
	Progress     *protocol.Progress     `json:"progress"`
	FinalReport  *string                `json:"finalReport"`
}

// Orchestrator coordinates sessions, prompt assembly, the interview backend
// and finalization.
type Orchestrator struct {
	sessions  session.Repository
	prompts   PromptBuilder
	adapter   protocol.Adapter
	finalizer Finalizer
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. The adapter is chosen once at
// startup and never swapped.
func NewOrchestrator(sessions session.Repository, prompts PromptBuilder, adapter protocol.Adapter, finalizer Finalizer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		sessions:  sessions,
		prompts:   prompts,
		adapter:   adapter,
		finalizer: finalizer,
		logger:    logger,
		now:       time.Now,
	}
}

// Advance runs one exchange. Nothing is persisted unless the backend
// answers with a valid result; on backend failure the session history is
// unchanged and the same utterance can be retried.
//
// Concurrent calls for the same session are not serialized; the last
// persisted write wins.
func (o *Orchestrator) Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error) {
	if strings.TrimSpace(req.CallerID) == "" {
		return nil, fmt.Errorf("%w: missing caller", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Utterance) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidRequest)
	}

	sess, isNew, err := o.loadSession(ctx, req)
	if err != nil {
		return nil, err
	}

	instructions, err := o.prompts.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build instruction prompt: %w", err)
	}

	ctx = llm.WithLabels(ctx, llm.Labels{CompanyID: sess.OwnerID, SessionID: sess.ID})
	result, err := o.adapter.SendMessage(ctx, req.Utterance, sess.Snapshot(), instructions)
	if err != nil {
		return nil, err
	}

	sess.Append(o.now(),
		session.Turn{Role: session.RoleUser, Text: req.Utterance},
		session.Turn{Role: session.RoleModel, Text: result.DisplayText()},
	)
	if isNew {
		err = o.sessions.Create(ctx, sess)
	} else {
		err = o.sessions.Save(ctx, sess)
	}
	if err != nil {
		return nil, fmt.Errorf("persist session %s: %w", sess.ID, err)
	}

	out := &AdvanceResult{
		SessionID:    sess.ID,
		Status:       result.Status,
		NextQuestion: result.NextQuestion,
		Progress:     result.Progress,
		FinalReport:  result.FinalReport,
	}

	if !result.Finalized() {
		o.logger.Debug("interview advanced",
			zap.String("session_id", sess.ID),
			zap.Int("turns", len(sess.History)))
		return out, nil
	}

	diagnosticID, err := o.finalizer.Finalize(ctx, diagnosis.FinalizeInput{
		CompanyID: sess.OwnerID,
		SessionID: sess.ID,
		History:   sess.Snapshot(),
		Result:    result,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize session %s: %w", sess.ID, err)
	}
	out.DiagnosticID = &diagnosticID

	if err := o.sessions.Delete(ctx, sess.ID); err != nil {
		o.logger.Warn("finalized session not deleted",
			zap.String("session_id", sess.ID),
			zap.String("diagnostic_id", diagnosticID),
			zap.Error(err))
	}

	o.logger.Info("interview finalized",
		zap.String("session_id", sess.ID),
		zap.String("diagnostic_id", diagnosticID))
	return out, nil
}

// loadSession returns the session for req, creating an unsaved one when
// the request starts a new interview.
func (o *Orchestrator) loadSession(ctx context.Context, req AdvanceRequest) (*session.Session, bool, error) {
	if req.SessionID == "" {
		return session.New(req.CallerID, o.now()), true, nil
	}

	sess, err := o.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, false, fmt.Errorf("load session %s: %w", req.SessionID, err)
	}
	if sess == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, req.SessionID)
	}
	if !sess.OwnedBy(req.CallerID) {
		return nil, false, &AuthorizationError{SessionID: req.SessionID, CallerID: req.CallerID}
	}
	return sess, false, nil
}
