package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/orgdiag/internal/catalog"
)

const tracksTable = "tracks"

var trackColumns = []string{
	"id", "name", "category", "level", "duration", "description",
	"areas_json", "tags_json", "objectives_json", "metadata_json", "active",
}

// CatalogRepo implements catalog.Repository and the seeding operations used
// by the CLI.
type CatalogRepo struct {
	db *sql.DB
}

var _ catalog.Repository = (*CatalogRepo)(nil)

// FindActive returns active tracks ordered by category and name.
func (r *CatalogRepo) FindActive(ctx context.Context) ([]catalog.Track, error) {
	return r.list(ctx, entsql.EQ("active", true))
}

// List returns every track, active or not.
func (r *CatalogRepo) List(ctx context.Context) ([]catalog.Track, error) {
	return r.list(ctx, nil)
}

// FindByName returns the active track with exactly this name, or nil.
func (r *CatalogRepo) FindByName(ctx context.Context, name string) (*catalog.Track, error) {
	query, args := builder.Select(trackColumns...).
		From(builder.Table(tracksTable)).
		Where(entsql.And(entsql.EQ("name", name), entsql.EQ("active", true))).
		Query()

	t, err := scanTrack(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find track %q: %w", name, err)
	}
	return t, nil
}

// Upsert inserts the track or updates the existing track with the same
// name. The stored id is written back to t.
func (r *CatalogRepo) Upsert(ctx context.Context, t *catalog.Track) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	areas, tags, objectives, metadata, err := encodeTrackLists(t)
	if err != nil {
		return err
	}
	now := toMillis(time.Now())

	query, args := builder.Insert(tracksTable).
		Columns(append(trackColumns, "created_at", "updated_at")...).
		Values(t.ID, t.Name, t.Category, t.Level, t.Duration, t.Description,
			areas, tags, objectives, metadata, t.Active, now, now).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Set("category", t.Category)
				u.Set("level", t.Level)
				u.Set("duration", t.Duration)
				u.Set("description", t.Description)
				u.Set("areas_json", areas)
				u.Set("tags_json", tags)
				u.Set("objectives_json", objectives)
				u.Set("metadata_json", metadata)
				u.Set("active", t.Active)
				u.Set("updated_at", now)
			}),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert track %q: %w", t.Name, err)
	}

	idQuery, idArgs := builder.Select("id").
		From(builder.Table(tracksTable)).
		Where(entsql.EQ("name", t.Name)).
		Query()
	if err := r.db.QueryRowContext(ctx, idQuery, idArgs...).Scan(&t.ID); err != nil {
		return fmt.Errorf("read id of track %q: %w", t.Name, err)
	}
	return nil
}

func (r *CatalogRepo) list(ctx context.Context, pred *entsql.Predicate) ([]catalog.Track, error) {
	sel := builder.Select(trackColumns...).
		From(builder.Table(tracksTable)).
		OrderBy("category", "name")
	if pred != nil {
		sel.Where(pred)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []catalog.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func encodeTrackLists(t *catalog.Track) (areas, tags, objectives, metadata string, err error) {
	enc := func(v any) string {
		if err != nil {
			return ""
		}
		var b []byte
		b, err = json.Marshal(v)
		return string(b)
	}
	areas = enc(nonNilStrings(t.Areas))
	tags = enc(nonNilStrings(t.Tags))
	objectives = enc(nonNilStrings(t.Objectives))
	metadata = enc(t.Metadata)
	if err != nil {
		err = fmt.Errorf("encode track %q: %w", t.Name, err)
	}
	return
}

func scanTrack(row rowScanner) (*catalog.Track, error) {
	var (
		t                                 catalog.Track
		areas, tags, objectives, metadata string
	)
	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Level, &t.Duration, &t.Description,
		&areas, &tags, &objectives, &metadata, &t.Active)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst any
	}{
		{areas, &t.Areas}, {tags, &t.Tags}, {objectives, &t.Objectives}, {metadata, &t.Metadata},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode track %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
