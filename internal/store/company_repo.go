package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/orgdiag/internal/company"
)

const (
	companiesTable         = "companies"
	companyCategoriesTable = "company_categories"
	companyTracksTable     = "company_tracks"
)

// CompanyRepo implements company.Repository.
//
// Associations are written with INSERT ... ON CONFLICT DO NOTHING, so
// saving the same association twice never duplicates it and a save never
// removes associations written by another request.
type CompanyRepo struct {
	db *sql.DB
}

var _ company.Repository = (*CompanyRepo)(nil)

func (r *CompanyRepo) FindByID(ctx context.Context, id string) (*company.Company, error) {
	query, args := builder.Select("id", "name", "created_at", "updated_at").
		From(builder.Table(companiesTable)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		c                  company.Company
		created, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.Name, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load company %s: %w", id, err)
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updatedAt)

	if c.Categories, err = r.categories(ctx, id); err != nil {
		return nil, err
	}
	if c.Tracks, err = r.tracks(ctx, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save upserts the company row and adds its associations in one
// transaction.
func (r *CompanyRepo) Save(ctx context.Context, c *company.Company) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query, args := builder.Insert(companiesTable).
		Columns("id", "name", "created_at", "updated_at").
		Values(c.ID, c.Name, toMillis(c.CreatedAt), toMillis(c.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Set("name", c.Name)
				u.Set("updated_at", toMillis(c.UpdatedAt))
			}),
		).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert company %s: %w", c.ID, err)
	}

	for _, a := range c.Categories {
		query, args := builder.Insert(companyCategoriesTable).
			Columns("company_id", "category", "reason", "created_at").
			Values(c.ID, a.Category, a.Reason, toMillis(addedAt(a.AddedAt, now))).
			OnConflict(entsql.ConflictColumns("company_id", "category"), entsql.DoNothing()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("add category %q: %w", a.Category, err)
		}
	}

	for _, a := range c.Tracks {
		query, args := builder.Insert(companyTracksTable).
			Columns("company_id", "track_id", "origin", "reason", "created_at").
			Values(c.ID, a.TrackID, a.Origin, a.Reason, toMillis(addedAt(a.AddedAt, now))).
			OnConflict(entsql.ConflictColumns("company_id", "track_id"), entsql.DoNothing()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("add track %s: %w", a.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit company %s: %w", c.ID, err)
	}
	return nil
}

func (r *CompanyRepo) categories(ctx context.Context, companyID string) ([]company.CategoryAssociation, error) {
	query, args := builder.Select("category", "reason", "created_at").
		From(builder.Table(companyCategoriesTable)).
		Where(entsql.EQ("company_id", companyID)).
		OrderBy("created_at", "category").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load categories of %s: %w", companyID, err)
	}
	defer rows.Close()

	var out []company.CategoryAssociation
	for rows.Next() {
		var (
			a  company.CategoryAssociation
			ts int64
		)
		if err := rows.Scan(&a.Category, &a.Reason, &ts); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		a.AddedAt = fromMillis(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *CompanyRepo) tracks(ctx context.Context, companyID string) ([]company.TrackAssociation, error) {
	query, args := builder.Select("track_id", "origin", "reason", "created_at").
		From(builder.Table(companyTracksTable)).
		Where(entsql.EQ("company_id", companyID)).
		OrderBy("created_at", "track_id").
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load tracks of %s: %w", companyID, err)
	}
	defer rows.Close()

	var out []company.TrackAssociation
	for rows.Next() {
		var (
			a  company.TrackAssociation
			ts int64
		)
		if err := rows.Scan(&a.TrackID, &a.Origin, &a.Reason, &ts); err != nil {
			return nil, fmt.Errorf("scan track association: %w", err)
		}
		a.AddedAt = fromMillis(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

func addedAt(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
