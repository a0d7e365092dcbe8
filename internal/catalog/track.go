// Package catalog describes the learning tracks a diagnostic may recommend.
package catalog

import (
	"context"
	"sort"
)

// Track is a recommendable learning module.
type Track struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Level       string   `yaml:"level"`
	Duration    string   `yaml:"duration"`
	Description string   `yaml:"description"`
	Areas       []string `yaml:"areas"`
	Tags        []string `yaml:"tags"`
	Objectives  []string `yaml:"objectives"`
	Metadata    Metadata `yaml:"metadata"`
	Active      bool     `yaml:"-"`
}

// Metadata carries the optional descriptive lists shown to the interviewer.
type Metadata struct {
	ProblemsSolved []string `yaml:"problems_solved" json:"problemsSolved,omitempty"`
	Competencies   []string `yaml:"competencies" json:"competencies,omitempty"`
}

// Repository is the read side of the track catalog.
type Repository interface {
	// FindActive returns every active track.
	FindActive(ctx context.Context) ([]Track, error)

	// FindByName returns the active track whose name matches exactly, or
	// nil when there is none.
	FindByName(ctx context.Context, name string) (*Track, error)
}

// CategoryOrder is the fixed presentation order of track categories.
// Categories not listed here follow in alphabetical order.
var CategoryOrder = []string{
	"Liderança",
	"Gestão de Pessoas",
	"Comunicação",
	"Produtividade",
	"Vendas",
	"Atendimento ao Cliente",
	"Inovação",
	"Saúde e Bem-estar",
}

// Group is the set of tracks sharing a category.
type Group struct {
	Category string
	Tracks   []Track
}

// GroupByCategory buckets tracks by category following CategoryOrder.
// Tracks keep their relative order inside a group.
func GroupByCategory(tracks []Track) []Group {
	buckets := make(map[string][]Track)
	for _, t := range tracks {
		buckets[t.Category] = append(buckets[t.Category], t)
	}

	var groups []Group
	for _, cat := range CategoryOrder {
		if ts, ok := buckets[cat]; ok {
			groups = append(groups, Group{Category: cat, Tracks: ts})
			delete(buckets, cat)
		}
	}

	rest := make([]string, 0, len(buckets))
	for cat := range buckets {
		rest = append(rest, cat)
	}
	sort.Strings(rest)
	for _, cat := range rest {
		groups = append(groups, Group{Category: cat, Tracks: buckets[cat]})
	}
	return groups
}
