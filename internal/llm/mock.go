package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// errMockExhausted is returned once a MockProvider has no canned replies left.
var errMockExhausted = errors.New("mock provider has no canned replies left")

// MockResponse is a canned reply for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider replays canned replies in FIFO order and records every
// request, for tests that script an interview turn by turn.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned replies.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned reply. An exhausted queue is reported
// as an unavailable backend so callers see a processing failure.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		return nil, &ErrProviderUnavailable{Err: errMockExhausted}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}
	return mockResponse(resp.Content, resp.Usage), nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned reply to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// DemoProvider plays a fixed short interview so the service can be run
// without backend credentials (ORGDIAG_LLM_PROVIDER=mock). The reply is
// chosen by how many participant messages the request carries, so any
// number of concurrent sessions each walk the same script. Requests past
// the end of the script receive the final report.
type DemoProvider struct{}

// NewDemoProvider returns the scripted demo backend.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{}
}

func (DemoProvider) Generate(_ context.Context, req Request) (*Response, error) {
	turn := -1
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			turn++
		}
	}
	if turn < 0 {
		return nil, &ErrInvalidResponse{Err: errors.New("demo interview needs a participant message")}
	}
	turn = min(turn, len(demoScript)-1)

	content := json.RawMessage(demoScript[turn])
	return mockResponse(content, Usage{}), nil
}

// ModelID returns "mock".
func (DemoProvider) ModelID() string {
	return "mock"
}

func mockResponse(content json.RawMessage, usage Usage) *Response {
	return &Response{
		Content:    content,
		Usage:      usage,
		Model:      "mock",
		StopReason: "end",
	}
}

var demoScript = []string{
	`{"status":"in_progress",
	  "nextQuestion":{"text":"Quantos colaboradores a empresa tem hoje?","answerType":"number","options":null,"placeholder":"Ex.: 120"},
	  "progress":{"currentStep":1,"totalSteps":4,"stepTitle":"Contexto da empresa"},
	  "collectedData":{"problems":[],"recommendedTracks":[],"categoriesToAssociate":[]},
	  "finalReport":null}`,
	`{"status":"in_progress",
	  "nextQuestion":{"text":"Qual destes desafios mais afeta a equipe?","answerType":"single_select",
	    "options":["Comunicação entre áreas","Engajamento das lideranças","Produtividade","Atendimento ao cliente"]},
	  "progress":{"currentStep":2,"totalSteps":4,"stepTitle":"Desafios"},
	  "collectedData":{"problems":[],"recommendedTracks":[],"categoriesToAssociate":[]},
	  "finalReport":null}`,
	`{"status":"in_progress",
	  "nextQuestion":{"text":"Os dados acima estão corretos?","answerType":"yes_no","options":null},
	  "progress":{"currentStep":3,"totalSteps":4,"stepTitle":"Confirmação"},
	  "collectedData":{"problems":[{"name":"Engajamento das lideranças","impact":4,"frequency":3,"reach":4,
	    "rootCause":"Lideranças sem rotina de acompanhamento","evidence":["Relato do participante"],"severity":"medium"}],
	    "recommendedTracks":[],"categoriesToAssociate":["Liderança"]},
	  "finalReport":null,
	  "summary":"Resumo: o principal desafio relatado é o engajamento das lideranças."}`,
	`{"status":"finalized","nextQuestion":null,
	  "progress":{"currentStep":4,"totalSteps":4,"stepTitle":"Relatório"},
	  "collectedData":{"problems":[{"name":"Engajamento das lideranças","impact":4,"frequency":3,"reach":4,
	    "rootCause":"Lideranças sem rotina de acompanhamento","evidence":["Relato do participante"],"severity":"medium"}],
	    "recommendedTracks":[{"problem":"Engajamento das lideranças","trackName":"Liderança Transformadora",
	      "category":"Liderança","level":"Intermediário","duration":"8h","rationale":"Fortalece a rotina de acompanhamento das equipes",
	      "expectedImpact":"Lideranças mais presentes","priority":"high","severity":"medium"}],
	    "categoriesToAssociate":["Liderança"]},
	  "finalReport":"# Diagnóstico (demonstração)\n\nPrincipal problema: engajamento das lideranças.\n\nTrilha recomendada: Liderança Transformadora."}`,
}
