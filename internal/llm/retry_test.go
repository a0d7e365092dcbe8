package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// turnReply is a minimal interview turn as a backend would return it.
var turnReply = json.RawMessage(`{"status":"in_progress","nextQuestion":{"text":"Quantos colaboradores a empresa tem?","answerType":"number","options":null}}`)

// turnSchema is the part of the interview turn contract turnReply satisfies.
func turnSchema() *Schema {
	return &Schema{
		Name: "test-interview-turn",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{"type": "string", "enum": []any{"in_progress", "finalized"}},
				"nextQuestion": map[string]any{
					"type":     "object",
					"required": []any{"text", "answerType"},
				},
			},
			"required": []any{"status"},
		},
	}
}

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestClassifyRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retryClass
	}{
		{"canceled", context.Canceled, retryNever},
		{"deadline", context.DeadlineExceeded, retryNever},
		{"truncated", &ErrMaxTokensExceeded{}, retryNever},
		{"invalid", &ErrInvalidResponse{Err: errors.New("schema")}, retryOnce},
		{"empty", &ErrEmptyResponse{Model: "gemini-2.5-flash"}, retryOnce},
		{"rate limit", &ErrRateLimit{Err: errors.New("429")}, retryBackoff},
		{"server error", &ErrProviderUnavailable{Status: 503, Err: errors.New("overloaded")}, retryBackoff},
		{"no status", &ErrProviderUnavailable{Err: errors.New("dial tcp")}, retryBackoff},
		{"bad key", &ErrProviderUnavailable{Status: 401, Err: errors.New("unauthorized")}, retryNever},
		{"unknown model", &ErrProviderUnavailable{Status: 404, Err: errors.New("not found")}, retryNever},
		{"request timeout", &ErrProviderUnavailable{Status: 408, Err: errors.New("timeout")}, retryBackoff},
		{"network", errors.New("connection reset by peer"), retryBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRetry(tt.err); got != tt.want {
				t.Errorf("classifyRetry(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_Attempts(t *testing.T) {
	down := MockResponse{Err: &ErrProviderUnavailable{Status: 503, Err: errors.New("down")}}
	ok := MockResponse{Content: turnReply}
	empty := MockResponse{Err: &ErrEmptyResponse{Model: "mock"}}
	invalid := MockResponse{Err: &ErrInvalidResponse{Content: json.RawMessage(`Claro!`), Err: errors.New("invalid JSON")}}

	tests := []struct {
		name      string
		responses []MockResponse
		wantErr   bool
		wantCalls int
	}{
		{"first attempt", []MockResponse{ok}, false, 1},
		{"transient then success", []MockResponse{down, ok}, false, 2},
		{"all attempts fail", []MockResponse{down, down, down}, true, 3},
		{"empty reply sampled again", []MockResponse{empty, ok}, false, 2},
		{"empty reply twice", []MockResponse{empty, empty, ok}, true, 2},
		{"invalid reply twice", []MockResponse{invalid, invalid, ok}, true, 2},
		{"truncated not retried", []MockResponse{{Err: &ErrMaxTokensExceeded{Content: json.RawMessage(`{"status":`)}}, ok}, true, 1},
		{"rejected key not retried", []MockResponse{{Err: &ErrProviderUnavailable{Status: 401, Err: errors.New("unauthorized")}}, ok}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.responses...)
			resp, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && string(resp.Content) != string(turnReply) {
				t.Errorf("unexpected content: %s", resp.Content)
			}
			if got := mock.CallCount(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Content: turnReply},
	)
	p := WithRetry(mock, retryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestRetry_BackoffHonoursRetryAfter(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{InitialWait: time.Second, MaxWait: 4 * time.Second, Multiplier: 2}}

	if got := r.backoff(0, &ErrRateLimit{RetryAfter: 7 * time.Second}); got != 7*time.Second {
		t.Errorf("backoff with RetryAfter = %v, want 7s", got)
	}
	// Attempt 5 would be 32s without the cap; jitter stays within 20%.
	if got := r.backoff(5, errors.New("x")); got < 3200*time.Millisecond || got > 4800*time.Millisecond {
		t.Errorf("capped backoff = %v, want 4s ±20%%", got)
	}
}
