// Package diagnosis turns a finalized interview into durable records: the
// diagnostic report and the company's category and track associations.
package diagnosis

import (
	"context"
	"time"

	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/session"
)

// Record is the durable result of one finalized interview. Records are
// append-only and at most one exists per session.
type Record struct {
	ID          string
	CompanyID   string
	SessionID   string
	History     []session.Turn
	Data        protocol.CollectedData
	FinalReport string
	CreatedAt   time.Time
}

// Repository stores diagnostic records.
type Repository interface {
	// Create inserts a new record. Creating a second record for the same
	// session is an error.
	Create(ctx context.Context, r *Record) error

	// FindByID returns the record or nil when it does not exist.
	FindByID(ctx context.Context, id string) (*Record, error)
}
