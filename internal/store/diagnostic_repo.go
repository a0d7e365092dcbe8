package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/session"
)

const diagnosticsTable = "diagnostic_records"

var diagnosticColumns = []string{
	"id", "company_id", "session_id", "history_json", "data_json", "final_report", "created_at",
}

// DiagnosticRepo implements diagnosis.Repository. The UNIQUE index on
// session_id rejects a second record for the same session.
type DiagnosticRepo struct {
	db *sql.DB
}

var _ diagnosis.Repository = (*DiagnosticRepo)(nil)

func (r *DiagnosticRepo) Create(ctx context.Context, rec *diagnosis.Record) error {
	history, err := json.Marshal(nonNilTurns(rec.History))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encode collected data: %w", err)
	}

	query, args := builder.Insert(diagnosticsTable).
		Columns(diagnosticColumns...).
		Values(rec.ID, rec.CompanyID, rec.SessionID, string(history), string(data), rec.FinalReport, toMillis(rec.CreatedAt)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert diagnostic record: %w", err)
	}
	return nil
}

func (r *DiagnosticRepo) FindByID(ctx context.Context, id string) (*diagnosis.Record, error) {
	return r.findOne(ctx, entsql.EQ("id", id))
}

// FindBySession returns the record created from the given session, or nil.
func (r *DiagnosticRepo) FindBySession(ctx context.Context, sessionID string) (*diagnosis.Record, error) {
	return r.findOne(ctx, entsql.EQ("session_id", sessionID))
}

// ListByCompany returns a company's records, newest first.
func (r *DiagnosticRepo) ListByCompany(ctx context.Context, companyID string) ([]diagnosis.Record, error) {
	query, args := builder.Select(diagnosticColumns...).
		From(builder.Table(diagnosticsTable)).
		Where(entsql.EQ("company_id", companyID)).
		OrderBy(entsql.Desc("created_at")).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diagnostic records: %w", err)
	}
	defer rows.Close()

	var out []diagnosis.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *DiagnosticRepo) findOne(ctx context.Context, pred *entsql.Predicate) (*diagnosis.Record, error) {
	query, args := builder.Select(diagnosticColumns...).
		From(builder.Table(diagnosticsTable)).
		Where(pred).
		Query()

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func scanRecord(row rowScanner) (*diagnosis.Record, error) {
	var (
		rec           diagnosis.Record
		history, data string
		created       int64
	)
	if err := row.Scan(&rec.ID, &rec.CompanyID, &rec.SessionID, &history, &data, &rec.FinalReport, &created); err != nil {
		return nil, err
	}
	rec.History = []session.Turn{}
	if err := json.Unmarshal([]byte(history), &rec.History); err != nil {
		return nil, fmt.Errorf("decode history of record %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return nil, fmt.Errorf("decode collected data of record %s: %w", rec.ID, err)
	}
	rec.CreatedAt = fromMillis(created)
	return &rec, nil
}
