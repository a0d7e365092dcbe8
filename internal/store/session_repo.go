package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/orgdiag/internal/session"
)

const sessionsTable = "sessions"

// SessionRepo implements session.Repository.
type SessionRepo struct {
	db *sql.DB
}

var _ session.Repository = (*SessionRepo)(nil)

func (r *SessionRepo) Create(ctx context.Context, s *session.Session) error {
	history, err := json.Marshal(nonNilTurns(s.History))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query, args := builder.Insert(sessionsTable).
		Columns("id", "owner_id", "history_json", "created_at", "updated_at").
		Values(s.ID, s.OwnerID, string(history), toMillis(s.CreatedAt), toMillis(s.UpdatedAt)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

func (r *SessionRepo) FindByID(ctx context.Context, id string) (*session.Session, error) {
	query, args := builder.Select("id", "owner_id", "history_json", "created_at", "updated_at").
		From(builder.Table(sessionsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		s                  session.Session
		history            string
		created, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.OwnerID, &history, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(history), &s.History); err != nil {
		return nil, fmt.Errorf("decode history of session %s: %w", id, err)
	}
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

// Save overwrites the stored history. Concurrent writers are not detected;
// the last save wins.
func (r *SessionRepo) Save(ctx context.Context, s *session.Session) error {
	history, err := json.Marshal(nonNilTurns(s.History))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	query, args := builder.Update(sessionsTable).
		Set("history_json", string(history)).
		Set("updated_at", toMillis(s.UpdatedAt)).
		Where(entsql.EQ("id", s.ID)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: %w", s.ID, sql.ErrNoRows)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	query, args := builder.Delete(sessionsTable).
		Where(entsql.EQ("id", id)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func nonNilTurns(t []session.Turn) []session.Turn {
	if t == nil {
		return []session.Turn{}
	}
	return t
}
