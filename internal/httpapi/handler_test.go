package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/adapter"
	"github.com/abhisek/orgdiag/internal/catalog"
	"github.com/abhisek/orgdiag/internal/company"
	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/interview"
	"github.com/abhisek/orgdiag/internal/llm"
	"github.com/abhisek/orgdiag/internal/prompt"
	"github.com/abhisek/orgdiag/internal/protocol"
	"github.com/abhisek/orgdiag/internal/store"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"foo": "bar"}`, w.Body.String())
}

type stubAdvancer struct {
	err error
	got interview.AdvanceRequest
}

func (s *stubAdvancer) Advance(_ context.Context, req interview.AdvanceRequest) (*interview.AdvanceResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &interview.AdvanceResult{SessionID: "sess-1", Status: protocol.StatusInProgress}, nil
}

type noRecords struct{}

func (noRecords) FindByID(context.Context, string) (*diagnosis.Record, error) { return nil, nil }

func post(t *testing.T, h http.Handler, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/diagnostic/messages", strings.NewReader(body))
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPostMessage_PassesRequest(t *testing.T) {
	adv := &stubAdvancer{}
	h := NewRouter(NewHandler(adv, noRecords{}, zap.NewNop()))

	w := post(t, h, "acme", `{"sessionId": "sess-1", "message": "olá"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, interview.AdvanceRequest{SessionID: "sess-1", CallerID: "acme", Utterance: "olá"}, adv.got)

	w = post(t, h, "acme", `{"sessionId": null, "message": "olá"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, adv.got.SessionID)
}

func TestPostMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: empty message", interview.ErrInvalidRequest), http.StatusBadRequest},
		{"forbidden", &interview.AuthorizationError{SessionID: "s", CallerID: "c"}, http.StatusForbidden},
		{"not found", fmt.Errorf("%w: s", interview.ErrNotFound), http.StatusNotFound},
		{"processing", &protocol.ProcessingError{Backend: "mock", Status: 503, Err: errors.New("down")}, http.StatusBadGateway},
		{"contract", &protocol.ContractViolationError{Backend: "mock", Err: errors.New("bad")}, http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(NewHandler(&stubAdvancer{err: tt.err}, noRecords{}, zap.NewNop()))
			w := post(t, h, "acme", `{"message": "x"}`)
			assert.Equal(t, tt.want, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, tt.err.Error(), body["details"])
		})
	}
}

func TestPostMessage_BadBody(t *testing.T) {
	h := NewRouter(NewHandler(&stubAdvancer{}, noRecords{}, zap.NewNop()))
	w := post(t, h, "acme", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessage_EmptySessionIDRejected(t *testing.T) {
	adv := &stubAdvancer{}
	h := NewRouter(NewHandler(adv, noRecords{}, zap.NewNop()))

	for _, body := range []string{`{"sessionId": "", "message": "olá"}`, `{"sessionId": "  ", "message": "olá"}`} {
		w := post(t, h, "acme", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, adv.got.CallerID, "advance must not run")

	w := post(t, h, "acme", `{"message": "olá"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, adv.got.SessionID)
}

func TestHealth(t *testing.T) {
	h := NewRouter(NewHandler(&stubAdvancer{}, noRecords{}, zap.NewNop()))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

const finalReply = `{
	"status": "finalized",
	"nextQuestion": null,
	"progress": {"currentStep": 6, "totalSteps": 6, "stepTitle": "Relatório"},
	"collectedData": {
		"problems": [],
		"recommendedTracks": [{"problem": "Engajamento", "trackName": "Liderança Transformadora",
			"category": "Liderança", "level": "Intermediário", "duration": "8h", "rationale": "r",
			"expectedImpact": "e", "priority": "high", "severity": "medium"}],
		"categoriesToAssociate": []
	},
	"finalReport": "# Relatório final"
}`

const questionReply = `{
	"status": "in_progress",
	"nextQuestion": {"text": "Qual o setor?", "answerType": "free_text", "options": null},
	"progress": {"currentStep": 1, "totalSteps": 6, "stepTitle": "Contexto"},
	"collectedData": {"problems": [], "recommendedTracks": [], "categoriesToAssociate": []},
	"finalReport": null
}`

// TestInterviewEndToEnd runs a two-turn interview against the SQLite store
// and a scripted backend.
func TestInterviewEndToEnd(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	track := &catalog.Track{Name: "Liderança Transformadora", Category: "Liderança", Active: true}
	require.NoError(t, st.Catalog().Upsert(ctx, track))
	require.NoError(t, st.Companies().Save(ctx, &company.Company{ID: "acme", Name: "Acme"}))

	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(questionReply)},
		llm.MockResponse{Content: json.RawMessage(finalReply)},
	)
	provider := llm.WithLogging(mock, st.LLMEvents(), zap.NewNop())
	orch := interview.NewOrchestrator(
		st.Sessions(),
		prompt.NewAssembler(st.Catalog()),
		adapter.New(provider, adapter.DefaultConfig(), zap.NewNop()),
		diagnosis.NewFinalizer(st.Diagnostics(), st.Catalog(), st.Companies(), zap.NewNop()),
		zap.NewNop(),
	)
	h := NewRouter(NewHandler(orch, st.Diagnostics(), zap.NewNop()))

	w := post(t, h, "acme", `{"sessionId": null, "message": "olá"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	sessionID := first["sessionId"].(string)
	assert.Nil(t, first["diagnosticId"])
	assert.Equal(t, "in_progress", first["status"])
	assert.Contains(t, mock.Calls[0].System, "Trilha: Liderança Transformadora")

	w = post(t, h, "other-company", fmt.Sprintf(`{"sessionId": %q, "message": "x"}`, sessionID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = post(t, h, "acme", fmt.Sprintf(`{"sessionId": %q, "message": "sim"}`, sessionID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, "finalized", second["status"])
	assert.Equal(t, "# Relatório final", second["finalReport"])
	diagnosticID := second["diagnosticId"].(string)

	sess, err := st.Sessions().FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, sess, "finalized session is deleted")

	c, err := st.Companies().FindByID(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, c.Categories, 1)
	assert.Equal(t, "Liderança", c.Categories[0].Category)
	require.Len(t, c.Tracks, 1)
	assert.Equal(t, track.ID, c.Tracks[0].TrackID)

	req := httptest.NewRequest(http.MethodGet, "/api/diagnostics/"+diagnosticID, nil)
	req.Header.Set(CallerHeader, "acme")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Relatório final")

	req = httptest.NewRequest(http.MethodGet, "/api/diagnostics/"+diagnosticID, nil)
	req.Header.Set(CallerHeader, "other-company")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	events, err := st.LLMEvents().QueryLLMEvents(ctx, store.QueryOpts{Purpose: adapter.Purpose})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
