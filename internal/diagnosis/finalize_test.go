package diagnosis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/orgdiag/internal/catalog"
	"github.com/abhisek/orgdiag/internal/company"
	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/session"
)

type memRecords struct {
	records map[string]*Record
	err     error
}

func (m *memRecords) Create(_ context.Context, r *Record) error {
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = make(map[string]*Record)
	}
	m.records[r.ID] = r
	return nil
}

func (m *memRecords) FindByID(_ context.Context, id string) (*Record, error) {
	return m.records[id], nil
}

type memCatalog struct {
	tracks []catalog.Track
	err    error
}

func (m *memCatalog) FindActive(context.Context) ([]catalog.Track, error) { return m.tracks, m.err }

func (m *memCatalog) FindByName(_ context.Context, name string) (*catalog.Track, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, t := range m.tracks {
		if t.Active && t.Name == name {
			return &t, nil
		}
	}
	return nil, nil
}

type memCompanies struct {
	companies map[string]*company.Company
	saves     int
	saveErr   error
}

func (m *memCompanies) FindByID(_ context.Context, id string) (*company.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Categories = append([]company.CategoryAssociation(nil), c.Categories...)
	cp.Tracks = append([]company.TrackAssociation(nil), c.Tracks...)
	return &cp, nil
}

func (m *memCompanies) Save(_ context.Context, c *company.Company) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.companies[c.ID] = c
	return nil
}

func finalized(data protocol.CollectedData) *protocol.StructuredResult {
	report := "# Relatório"
	return &protocol.StructuredResult{Status: protocol.StatusFinalized, CollectedData: data, FinalReport: &report}
}

func leadershipCatalog() *memCatalog {
	return &memCatalog{tracks: []catalog.Track{
		{ID: "trk-lid", Name: "Liderança Transformadora", Category: "Liderança", Active: true},
		{ID: "trk-old", Name: "Vendas Antigas", Category: "Vendas", Active: false},
	}}
}

func newFixture(cat *memCatalog) (*Finalizer, *memRecords, *memCompanies) {
	records := &memRecords{}
	companies := &memCompanies{companies: map[string]*company.Company{"acme": {ID: "acme", Name: "Acme"}}}
	f := NewFinalizer(records, cat, companies, zap.NewNop())
	f.now = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }
	return f, records, companies
}

func TestFinalize_AssociatesResolvedTrack(t *testing.T) {
	f, records, companies := newFixture(leadershipCatalog())
	history := []session.Turn{{Role: session.RoleUser, Text: "ok"}}

	id, err := f.Finalize(context.Background(), FinalizeInput{
		CompanyID: "acme",
		SessionID: "sess-1",
		History:   history,
		Result: finalized(protocol.CollectedData{
			RecommendedTracks: []protocol.RecommendedTrack{{TrackName: "Liderança Transformadora", Category: "Liderança"}},
		}),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec := records.records[id]
	require.NotNil(t, rec)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "# Relatório", rec.FinalReport)
	assert.Equal(t, history, rec.History)

	c := companies.companies["acme"]
	require.Len(t, c.Categories, 1)
	assert.Equal(t, "Liderança", c.Categories[0].Category)
	assert.Equal(t, CategoryReason, c.Categories[0].Reason)
	require.Len(t, c.Tracks, 1)
	assert.Equal(t, "trk-lid", c.Tracks[0].TrackID)
	assert.Equal(t, "AI-derived", c.Tracks[0].Origin)
	assert.Equal(t, TrackReason, c.Tracks[0].Reason)
}

func TestFinalize_UnknownTrackStillCreatesRecord(t *testing.T) {
	f, records, companies := newFixture(leadershipCatalog())

	id, err := f.Finalize(context.Background(), FinalizeInput{
		CompanyID: "acme",
		SessionID: "sess-1",
		Result: finalized(protocol.CollectedData{
			RecommendedTracks: []protocol.RecommendedTrack{
				{TrackName: "Trilha Inventada", Category: "Inovação"},
				{TrackName: "Vendas Antigas", Category: "Vendas"},
			},
		}),
	})
	require.NoError(t, err)
	assert.Contains(t, records.records, id)
	assert.Empty(t, companies.companies["acme"].Tracks)
	assert.Empty(t, companies.companies["acme"].Categories)
	assert.Zero(t, companies.saves)
}

func TestFinalize_RecordFailureIsFatal(t *testing.T) {
	f, records, companies := newFixture(leadershipCatalog())
	records.err = errors.New("disk full")

	id, err := f.Finalize(context.Background(), FinalizeInput{
		CompanyID: "acme",
		Result: finalized(protocol.CollectedData{
			CategoriesToAssociate: []string{"Liderança"},
		}),
	})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.Zero(t, companies.saves, "associations must not run without a record")
}

func TestFinalize_AssociationFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f, records, companies := newFixture(leadershipCatalog())
	f.logger = zap.New(core)
	companies.saveErr = errors.New("locked")

	id, err := f.Finalize(context.Background(), FinalizeInput{
		CompanyID: "acme",
		Result:    finalized(protocol.CollectedData{CategoriesToAssociate: []string{"Liderança"}}),
	})
	require.NoError(t, err)
	assert.Contains(t, records.records, id)
	assert.Equal(t, 1, logs.FilterMessage("company associations not updated").Len())
}

func TestFinalize_RejectsUnfinalizedResult(t *testing.T) {
	f, records, _ := newFixture(leadershipCatalog())
	_, err := f.Finalize(context.Background(), FinalizeInput{
		CompanyID: "acme",
		Result:    &protocol.StructuredResult{Status: protocol.StatusInProgress},
	})
	require.Error(t, err)
	assert.Empty(t, records.records)
}

func TestAssociate_Idempotent(t *testing.T) {
	f, _, companies := newFixture(leadershipCatalog())
	data := protocol.CollectedData{
		CategoriesToAssociate: []string{"Liderança", "Comunicação"},
		RecommendedTracks:     []protocol.RecommendedTrack{{TrackName: "Liderança Transformadora"}},
	}

	first, err := f.associate(context.Background(), "acme", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Liderança", "Comunicação"}, first.AddedCategories)
	assert.Equal(t, []string{"trk-lid"}, first.AddedTracks)

	second, err := f.associate(context.Background(), "acme", data)
	require.NoError(t, err)
	assert.Empty(t, second.AddedCategories)
	assert.Empty(t, second.AddedTracks)

	c := companies.companies["acme"]
	assert.Len(t, c.Categories, 2)
	assert.Len(t, c.Tracks, 1)
	assert.Equal(t, 1, companies.saves)
}

func TestAssociate_LookupErrorIsWarning(t *testing.T) {
	f, _, _ := newFixture(&memCatalog{err: errors.New("db closed")})

	_, err := f.associate(context.Background(), "acme", protocol.CollectedData{
		RecommendedTracks: []protocol.RecommendedTrack{{TrackName: "X"}},
	})
	var w *AssociationWarning
	require.ErrorAs(t, err, &w)
	assert.Equal(t, "acme", w.CompanyID)
}

func TestAssociate_MissingCompanyIsWarning(t *testing.T) {
	f, _, _ := newFixture(leadershipCatalog())

	_, err := f.associate(context.Background(), "ghost", protocol.CollectedData{
		CategoriesToAssociate: []string{"Liderança"},
	})
	var w *AssociationWarning
	require.ErrorAs(t, err, &w)
	assert.ErrorIs(t, err, errCompanyNotFound)
}

func TestUnionCategories(t *testing.T) {
	got := unionCategories(
		[]string{"Vendas", "", "Liderança", "Vendas"},
		[]catalog.Track{{Category: "Liderança"}, {Category: "Comunicação"}},
	)
	assert.Equal(t, []string{"Vendas", "Liderança", "Comunicação"}, got)
}
