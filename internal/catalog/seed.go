package catalog

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk layout of a catalog seed.
type seedFile struct {
	Tracks []seedTrack `yaml:"tracks"`
}

// seedTrack mirrors Track but lets Active default to true when omitted.
type seedTrack struct {
	Track  `yaml:",inline"`
	Active *bool `yaml:"active"`
}

// LoadSeed parses a YAML catalog seed. Tracks without an explicit
// `active: false` are imported as active.
func LoadSeed(r io.Reader) ([]Track, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}

	seen := make(map[string]bool, len(f.Tracks))
	tracks := make([]Track, 0, len(f.Tracks))
	for i, st := range f.Tracks {
		t := st.Track
		t.Name = strings.TrimSpace(t.Name)
		t.Category = strings.TrimSpace(t.Category)
		t.Active = st.Active == nil || *st.Active

		if t.Name == "" {
			return nil, fmt.Errorf("track %d: name is required", i+1)
		}
		if t.Category == "" {
			return nil, fmt.Errorf("track %q: category is required", t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("track %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		tracks = append(tracks, t)
	}
	return tracks, nil
}
