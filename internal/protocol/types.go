// Package protocol defines the contract between the interview orchestrator
// and the backend that conducts the diagnostic interview.
package protocol

import (
	"context"

	"github.com/abhisek/orgdiag/internal/session"
)

// Status is the interview state reported by the backend each turn.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusFinalized  Status = "finalized"
)

// AnswerType tells the presentation layer which input widget to render.
type AnswerType string

const (
	AnswerFreeText       AnswerType = "free_text"
	AnswerNumber         AnswerType = "number"
	AnswerMultipleChoice AnswerType = "multiple_choice"
	AnswerSingleSelect   AnswerType = "single_select"
	AnswerYesNo          AnswerType = "yes_no"
)

// Severity grades a diagnosed problem.
type Severity string

const (
	SeverityLight  Severity = "light"
	SeverityMedium Severity = "medium"
	SeveritySevere Severity = "severe"
)

// Priority ranks a track recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// FallbackAcknowledgement is the model turn recorded when a reply carries
// no report, summary or question text.
const FallbackAcknowledgement = "Entendido. Vamos continuar."

// NextQuestion is the question the interviewer wants answered next.
type NextQuestion struct {
	Text        string     `json:"text"`
	AnswerType  AnswerType `json:"answerType"`
	Options     []string   `json:"options"`
	Placeholder string     `json:"placeholder,omitempty"`
}

// Progress locates the current question within the protocol.
type Progress struct {
	CurrentStep int    `json:"currentStep"`
	TotalSteps  int    `json:"totalSteps"`
	StepTitle   string `json:"stepTitle"`
}

// Problem is one organizational problem identified during the interview.
// Impact, Frequency and Reach are scored 0..5.
type Problem struct {
	Name      string   `json:"name"`
	Impact    int      `json:"impact"`
	Frequency int      `json:"frequency"`
	Reach     int      `json:"reach"`
	RootCause string   `json:"rootCause"`
	Evidence  []string `json:"evidence"`
	Severity  Severity `json:"severity"`
}

// RecommendedTrack links a problem to a catalog track by name.
type RecommendedTrack struct {
	Problem        string   `json:"problem"`
	TrackName      string   `json:"trackName"`
	Category       string   `json:"category"`
	Level          string   `json:"level"`
	Duration       string   `json:"duration"`
	Rationale      string   `json:"rationale"`
	ExpectedImpact string   `json:"expectedImpact"`
	Priority       Priority `json:"priority"`
	Severity       Severity `json:"severity"`
}

// CollectedData is the structured finding accumulated over the interview.
type CollectedData struct {
	Problems              []Problem          `json:"problems"`
	RecommendedTracks     []RecommendedTrack `json:"recommendedTracks"`
	CategoriesToAssociate []string           `json:"categoriesToAssociate"`
}

// StructuredResult is the machine-parseable reply the backend must return
// every turn. FinalReport is set exactly when Status is finalized and
// NextQuestion exactly when Status is in_progress.
type StructuredResult struct {
	Status        Status        `json:"status"`
	NextQuestion  *NextQuestion `json:"nextQuestion"`
	Progress      *Progress     `json:"progress"`
	CollectedData CollectedData `json:"collectedData"`
	FinalReport   *string       `json:"finalReport"`

	// Summary is an optional confirmation text the backend may send
	// before asking the participant to confirm collected answers.
	Summary *string `json:"summary,omitempty"`
}

// Finalized reports whether the interview reached its terminal state.
func (r *StructuredResult) Finalized() bool {
	return r.Status == StatusFinalized
}

// DisplayText returns the text recorded as the model's turn in history.
// Priority: final report, summary, next question, fixed acknowledgement.
func (r *StructuredResult) DisplayText() string {
	if r.FinalReport != nil && *r.FinalReport != "" {
		return *r.FinalReport
	}
	if r.Summary != nil && *r.Summary != "" {
		return *r.Summary
	}
	if r.NextQuestion != nil && r.NextQuestion.Text != "" {
		return r.NextQuestion.Text
	}
	return FallbackAcknowledgement
}

// Adapter conducts one exchange with an interview backend.
type Adapter interface {
	// SendMessage sends the participant's message together with the prior
	// history and the protocol instructions, and returns the decoded reply.
	// Transport failures are *ProcessingError; unusable replies are
	// *ContractViolationError.
	SendMessage(ctx context.Context, message string, history []session.Turn, instructionPrompt string) (*StructuredResult, error)
}
