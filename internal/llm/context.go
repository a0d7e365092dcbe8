package llm

import "context"

type labelsKey struct{}

// Labels tag an LLM call with the interview it serves. LoggingProvider
// stores them with the request event so usage can be traced per company
// and per session.
type Labels struct {
	Purpose   string
	CompanyID string
	SessionID string
}

// WithLabels merges l into the labels already on ctx. Empty fields keep
// the existing value.
func WithLabels(ctx context.Context, l Labels) context.Context {
	cur := LabelsFrom(ctx)
	if l.Purpose != "" {
		cur.Purpose = l.Purpose
	}
	if l.CompanyID != "" {
		cur.CompanyID = l.CompanyID
	}
	if l.SessionID != "" {
		cur.SessionID = l.SessionID
	}
	return context.WithValue(ctx, labelsKey{}, cur)
}

// WithPurpose sets only the purpose label.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return WithLabels(ctx, Labels{Purpose: purpose})
}

// LabelsFrom returns the labels on ctx. Purpose defaults to "unknown".
func LabelsFrom(ctx context.Context) Labels {
	l, _ := ctx.Value(labelsKey{}).(Labels)
	if l.Purpose == "" {
		l.Purpose = "unknown"
	}
	return l
}
