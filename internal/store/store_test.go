package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/orgdiag/internal/catalog"
	"github.com/abhisek/orgdiag/internal/company"
	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestDefaultDBPath_Env(t *testing.T) {
	want := filepath.Join(t.TempDir(), "nested", "orgdiag.db")
	t.Setenv("ORGDIAG_DB", want)

	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.DirExists(t, filepath.Dir(want))
}

func TestDefaultDBPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORGDIAG_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "orgdiag", "orgdiag.db"), got)
}

func TestSequenceCounter_Monotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		n, err := s.seq.Next(ctx)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	repo := s.Sessions()
	ctx := context.Background()

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	sess := session.New("acme", now)
	sess.Append(now, session.Turn{Role: session.RoleUser, Text: "olá"}, session.Turn{Role: session.RoleModel, Text: "Qual o setor?"})
	require.NoError(t, repo.Create(ctx, sess))

	got, err := repo.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.OwnerID)
	assert.Equal(t, sess.History, got.History)
	assert.True(t, now.Equal(got.CreatedAt))

	later := now.Add(time.Minute)
	got.Append(later, session.Turn{Role: session.RoleUser, Text: "Varejo"}, session.Turn{Role: session.RoleModel, Text: "Quantos colaboradores?"})
	require.NoError(t, repo.Save(ctx, got))

	again, err := repo.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, again.History, 4)
	assert.True(t, later.Equal(again.UpdatedAt))

	require.NoError(t, repo.Delete(ctx, sess.ID))
	require.NoError(t, repo.Delete(ctx, sess.ID), "deleting twice is not an error")
	gone, err := repo.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSessionRepo_SaveMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.Sessions().Save(context.Background(), session.New("acme", time.Now()))
	assert.Error(t, err)
}

func TestDiagnosticRepo_CreateOncePerSession(t *testing.T) {
	s := openTestStore(t)
	repo := s.Diagnostics()
	ctx := context.Background()

	rec := &diagnosis.Record{
		ID:        "diag-1",
		CompanyID: "acme",
		SessionID: "sess-1",
		History:   []session.Turn{{Role: session.RoleUser, Text: "oi"}},
		Data: protocol.CollectedData{
			Problems:              []protocol.Problem{{Name: "Turnover", Impact: 4, Severity: protocol.SeveritySevere, Evidence: []string{"saídas"}}},
			CategoriesToAssociate: []string{"Liderança"},
		},
		FinalReport: "# Relatório",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	dup := *rec
	dup.ID = "diag-2"
	assert.Error(t, repo.Create(ctx, &dup), "second record for the same session")

	got, err := repo.FindByID(ctx, "diag-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Data, got.Data)
	assert.Equal(t, rec.History, got.History)
	assert.Equal(t, "# Relatório", got.FinalReport)

	bySession, err := repo.FindBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "diag-1", bySession.ID)

	list, err := repo.ListByCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	none, err := repo.FindByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCatalogRepo_UpsertAndFind(t *testing.T) {
	s := openTestStore(t)
	repo := s.Catalog()
	ctx := context.Background()

	lid := &catalog.Track{
		Name: "Liderança Transformadora", Category: "Liderança", Level: "Intermediário",
		Objectives: []string{"Feedback"}, Metadata: catalog.Metadata{Competencies: []string{"Empatia"}},
		Active: true,
	}
	require.NoError(t, repo.Upsert(ctx, lid))
	require.NotEmpty(t, lid.ID)
	firstID := lid.ID

	inactive := &catalog.Track{Name: "Vendas Antigas", Category: "Vendas", Active: false}
	require.NoError(t, repo.Upsert(ctx, inactive))

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, []string{"Feedback"}, active[0].Objectives)
	assert.Equal(t, []string{"Empatia"}, active[0].Metadata.Competencies)
	assert.Empty(t, active[0].Areas)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := repo.FindByName(ctx, "Liderança Transformadora")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, firstID, got.ID)

	none, err := repo.FindByName(ctx, "Vendas Antigas")
	require.NoError(t, err)
	assert.Nil(t, none, "inactive tracks do not resolve")

	none, err = repo.FindByName(ctx, "liderança transformadora")
	require.NoError(t, err)
	assert.Nil(t, none, "names match exactly")

	update := &catalog.Track{Name: "Liderança Transformadora", Category: "Liderança", Level: "Avançado", Active: true}
	require.NoError(t, repo.Upsert(ctx, update))
	assert.Equal(t, firstID, update.ID, "upsert keeps the original id")

	got, err = repo.FindByName(ctx, "Liderança Transformadora")
	require.NoError(t, err)
	assert.Equal(t, "Avançado", got.Level)
}

func TestCompanyRepo_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	repo := s.Companies()
	ctx := context.Background()

	missing, err := repo.FindByID(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Save(ctx, &company.Company{ID: "acme", Name: "Acme"}))

	c, err := repo.FindByID(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Acme", c.Name)
	assert.Empty(t, c.Categories)

	now := time.Now()
	c.MergeCategories([]string{"Liderança"}, "r", now)
	c.MergeTracks([]string{"trk-1"}, company.OriginAIDerived, "r", now)
	require.NoError(t, repo.Save(ctx, c))

	c, err = repo.FindByID(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, c.Categories, 1)
	require.Len(t, c.Tracks, 1)
	assert.Equal(t, company.OriginAIDerived, c.Tracks[0].Origin)
}

func TestCompanyRepo_SaveIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	repo := s.Companies()
	ctx := context.Background()

	now := time.Now()
	c := &company.Company{ID: "acme", Name: "Acme"}
	c.MergeCategories([]string{"Liderança", "Vendas"}, "r", now)
	c.MergeTracks([]string{"trk-1"}, company.OriginAIDerived, "r", now)

	require.NoError(t, repo.Save(ctx, c))
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.FindByID(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, got.Categories, 2)
	assert.Len(t, got.Tracks, 1)
}

func TestCompanyRepo_StaleSaveKeepsConcurrentAdditions(t *testing.T) {
	s := openTestStore(t)
	repo := s.Companies()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &company.Company{ID: "acme", Name: "Acme"}))

	a, err := repo.FindByID(ctx, "acme")
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, "acme")
	require.NoError(t, err)

	a.MergeCategories([]string{"Liderança"}, "r", time.Now())
	b.MergeCategories([]string{"Vendas"}, "r", time.Now())
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	got, err := repo.FindByID(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, got.Categories, 2)
}

func TestLLMEventRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.LLMEvents()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "interview-turn", InputTokens: 100, OutputTokens: 50, LatencyMs: 200, Success: true, RequestBody: "[system]\n...", ResponseBody: `{"status":"in_progress"}`},
		{Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "interview-turn", InputTokens: 120, OutputTokens: 70, LatencyMs: 400, Success: true},
		{Provider: "gemini", Model: "gemini-2.5-flash", Purpose: "interview-turn", LatencyMs: 30, Success: false, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	list, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].Sequence, list[1].Sequence, "newest first")
	assert.False(t, list[0].Success)
	assert.Equal(t, "rate limited", list[0].ErrorMessage)

	filtered, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "other"})
	require.NoError(t, err)
	assert.Empty(t, filtered)

	first, err := repo.GetLLMEvent(ctx, list[1].ID-1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, `{"status":"in_progress"}`, first.ResponseBody)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 1)
	assert.Equal(t, 3, byPurpose[0].Calls)
	assert.Equal(t, 220, byPurpose[0].InputTokens)
	assert.Equal(t, int64(210), byPurpose[0].AvgLatencyMs)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, 2, byModel[0].Calls, "failed calls are excluded from cost")
	assert.Equal(t, 120, byModel[0].OutputTokens)
}

func TestLLMEventRepo_CompanyLabels(t *testing.T) {
	s := openTestStore(t)
	repo := s.LLMEvents()
	ctx := context.Background()

	for _, e := range []LLMRequestEventData{
		{Provider: "ark", Model: "doubao-seed-1.6", Purpose: "interview-turn", CompanyID: "acme", SessionID: "s1", InputTokens: 10, OutputTokens: 5, Success: true},
		{Provider: "ark", Model: "doubao-seed-1.6", Purpose: "interview-turn", CompanyID: "acme", SessionID: "s1", Success: false, ErrorMessage: "timeout"},
		{Provider: "ark", Model: "doubao-seed-1.6", Purpose: "interview-turn", CompanyID: "acme", SessionID: "s2", InputTokens: 20, OutputTokens: 8, Success: true},
		{Provider: "ark", Model: "doubao-seed-1.6", Purpose: "interview-turn", CompanyID: "globex", SessionID: "s3", InputTokens: 1, OutputTokens: 1, Success: true},
		{Provider: "ark", Model: "doubao-seed-1.6", Purpose: "unknown", Success: true},
	} {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	acme, err := repo.QueryLLMEvents(ctx, QueryOpts{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, acme, 3)
	assert.Equal(t, "s2", acme[0].SessionID)

	s1, err := repo.QueryLLMEvents(ctx, QueryOpts{CompanyID: "acme", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, s1, 2)

	usage, err := repo.LLMUsageByCompany(ctx)
	require.NoError(t, err)
	require.Len(t, usage, 2, "unlabelled calls are not attributed")
	assert.Equal(t, CompanyUsage{CompanyID: "acme", Sessions: 2, Calls: 3, Failures: 1, InputTokens: 30, OutputTokens: 13}, usage[0])
	assert.Equal(t, "globex", usage[1].CompanyID)
}
