package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/adapter"
	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/interview"
	"github.com/abhisek/orgdiag/internal/llm"
	"github.com/abhisek/orgdiag/internal/prompt"
	"github.com/abhisek/orgdiag/internal/store"
)

func testOrchestrator(t *testing.T, replies ...string) (*interview.Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := llm.NewMockProvider()
	for _, r := range replies {
		mock.AddResponse(llm.MockResponse{Content: json.RawMessage(r)})
	}
	orch := interview.NewOrchestrator(
		st.Sessions(),
		prompt.NewAssembler(st.Catalog()),
		adapter.New(mock, adapter.DefaultConfig(), zap.NewNop()),
		diagnosis.NewFinalizer(st.Diagnostics(), st.Catalog(), st.Companies(), zap.NewNop()),
		zap.NewNop(),
	)
	return orch, st
}

func TestRunInterview_UntilFinalized(t *testing.T) {
	orch, st := testOrchestrator(t,
		`{"status":"in_progress","nextQuestion":{"text":"Qual o setor?","answerType":"single_select","options":["Varejo","Indústria"]},
		  "progress":{"currentStep":1,"totalSteps":6,"stepTitle":"Contexto"},
		  "collectedData":{"problems":[],"recommendedTracks":[],"categoriesToAssociate":[]},"finalReport":null}`,
		`{"status":"finalized","nextQuestion":null,"progress":null,
		  "collectedData":{"problems":[],"recommendedTracks":[],"categoriesToAssociate":[]},"finalReport":"# Relatório"}`,
	)

	var out bytes.Buffer
	err := runInterview(context.Background(), orch, "acme", "", strings.NewReader("olá\n\nVarejo\n"), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "[1/6] Contexto")
	assert.Contains(t, text, "2. Indústria")
	assert.Contains(t, text, "# Relatório")
	assert.Contains(t, text, "Diagnostic saved:")

	records, err := st.Diagnostics().ListByCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunInterview_BackendFailureKeepsGoing(t *testing.T) {
	orch, _ := testOrchestrator(t, `not json`)

	var out bytes.Buffer
	err := runInterview(context.Background(), orch, "acme", "", strings.NewReader("olá\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Tente novamente")
}
