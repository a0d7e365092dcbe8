// Package company models the company profile and the category and track
// associations a finalized diagnostic adds to it.
package company

import (
	"context"
	"time"
)

// OriginAIDerived marks associations created from a diagnostic interview.
const OriginAIDerived = "AI-derived"

// CategoryAssociation links a company to a track category.
type CategoryAssociation struct {
	Category string
	Reason   string
	AddedAt  time.Time
}

// TrackAssociation links a company to a catalog track.
type TrackAssociation struct {
	TrackID string
	Origin  string
	Reason  string
	AddedAt time.Time
}

// Company is the profile mutated by finalization. Categories are unique by
// category value and Tracks by track id.
type Company struct {
	ID         string
	Name       string
	Categories []CategoryAssociation
	Tracks     []TrackAssociation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository loads and saves company profiles.
type Repository interface {
	// FindByID returns the company or nil when it does not exist.
	FindByID(ctx context.Context, id string) (*Company, error)

	// Save persists the company and any associations it holds. Existing
	// associations are left untouched.
	Save(ctx context.Context, c *Company) error
}

// HasCategory reports whether the category is already associated.
func (c *Company) HasCategory(category string) bool {
	for _, a := range c.Categories {
		if a.Category == category {
			return true
		}
	}
	return false
}

// HasTrack reports whether the track is already associated.
func (c *Company) HasTrack(trackID string) bool {
	for _, a := range c.Tracks {
		if a.TrackID == trackID {
			return true
		}
	}
	return false
}

// MergeCategories adds the categories not yet associated and returns the
// ones it added. Blank and repeated inputs are ignored.
func (c *Company) MergeCategories(categories []string, reason string, now time.Time) []string {
	var added []string
	for _, cat := range categories {
		if cat == "" || c.HasCategory(cat) {
			continue
		}
		c.Categories = append(c.Categories, CategoryAssociation{Category: cat, Reason: reason, AddedAt: now})
		added = append(added, cat)
	}
	if len(added) > 0 {
		c.UpdatedAt = now
	}
	return added
}

// MergeTracks adds the tracks not yet associated and returns the ids it
// added.
func (c *Company) MergeTracks(trackIDs []string, origin, reason string, now time.Time) []string {
	var added []string
	for _, id := range trackIDs {
		if id == "" || c.HasTrack(id) {
			continue
		}
		c.Tracks = append(c.Tracks, TrackAssociation{TrackID: id, Origin: origin, Reason: reason, AddedAt: now})
		added = append(added, id)
	}
	if len(added) > 0 {
		c.UpdatedAt = now
	}
	return added
}
