package model

import "time"

// TestType identifies what kind of subject a test evaluates.
type TestType string

const (
	// TestTypeProduct evaluates a product description.
	TestTypeProduct TestType = "product"
	// TestTypeMessage evaluates marketing copy or messaging.
	TestTypeMessage TestType = "message"
	// TestTypeJourney evaluates a customer journey description.
	TestTypeJourney TestType = "journey"
)

// TestStatus is the lifecycle state of a test.
//
// Transitions are monotonic:
//
//	draft → running → completed
//	                → failed
//
// completed and failed are terminal. No transition ever returns a test
// to draft or running.
type TestStatus string

const (
	// StatusDraft is the initial state. No persona runs have been attempted.
	StatusDraft TestStatus = "draft"
	// StatusRunning means runner tasks have been dispatched.
	StatusRunning TestStatus = "running"
	// StatusCompleted means all persona runs were attempted and at least
	// one succeeded.
	StatusCompleted TestStatus = "completed"
	// StatusFailed means every persona run failed, a precondition was
	// violated, or the run was cancelled.
	StatusFailed TestStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s TestStatus) CanTransitionTo(next TestStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		// Terminal states admit nothing.
		return false
	}
}

// Failure reasons recorded on a test that ends in StatusFailed.
const (
	// FailureCancelled marks a run stopped by an explicit Cancel.
	FailureCancelled = "cancelled"
	// FailureAllPersonasFailed marks a run where no persona succeeded.
	FailureAllPersonasFailed = "all persona runs failed"
)

// TargetAudience describes who a test is aimed at. The matcher scores
// personas against it; its dimensions are echoed back in every
// evaluation's targetAudienceAlignment block.
type TargetAudience struct {
	AgeMin     int      `json:"age_min" yaml:"age_min"`
	AgeMax     int      `json:"age_max" yaml:"age_max"`
	Location   string   `json:"location" yaml:"location"`
	Income     string   `json:"income" yaml:"income"`
	Interests  []string `json:"interests" yaml:"interests"`
	PainPoints []string `json:"pain_points" yaml:"pain_points"`
	Needs      []string `json:"needs" yaml:"needs"`
}

// TestSettings holds per-test execution knobs.
type TestSettings struct {
	// MaxIterations caps evaluation rounds per persona. The current
	// engine runs a single round; the field is persisted for forward
	// compatibility with multi-round sessions.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// ResponseFormat names the structured output contract requested
	// from the model (currently always "structured_json").
	ResponseFormat string `json:"response_format" yaml:"response_format"`

	// InteractionStyle steers the tone of the simulated respondent
	// (e.g. "candid", "detailed").
	InteractionStyle string `json:"interaction_style" yaml:"interaction_style"`
}

// SessionInfo carries simulation-session metadata attached to a test.
type SessionInfo struct {
	WorldID   string `json:"world_id,omitempty" yaml:"world_id,omitempty"`
	StepCount int    `json:"step_count,omitempty" yaml:"step_count,omitempty"`
	CacheRef  string `json:"cache_ref,omitempty" yaml:"cache_ref,omitempty"`
}

// UsageSummary is the aggregate spend for one test run, derived from
// the ledger at terminal transition.
type UsageSummary struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Calls            int     `json:"calls"`
	Cost             float64 `json:"cost"`
}

// Test is one unit of evaluation work over a set of personas.
//
// INVARIANTS:
//   - len(Results) never exceeds len(PersonaIDs).
//   - Results[i].PersonaID == PersonaIDs[i] once a run has finished.
//   - Status transitions are monotonic (see TestStatus).
//
// The orchestrator owns a Test for the duration of a run. The storage
// collaborator persists it at creation, at Start, and at the terminal
// transition.
type Test struct {
	ID         string         `json:"id" yaml:"id"`
	Type       TestType       `json:"type" yaml:"type"`
	Language   string         `json:"language" yaml:"language"` // BCP-47 tag
	Status     TestStatus     `json:"status" yaml:"status"`
	Objective  string         `json:"objective" yaml:"objective"`
	PersonaIDs []string       `json:"persona_ids" yaml:"persona_ids"`
	Audience   TargetAudience `json:"audience" yaml:"audience"`
	Settings   TestSettings   `json:"settings" yaml:"settings"`
	Results    []PersonaResult `json:"results,omitempty" yaml:"results,omitempty"`
	// FailureReason is set only when Status is failed.
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	Usage      UsageSummary   `json:"usage" yaml:"usage"`
	Session    SessionInfo    `json:"session" yaml:"session"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// SucceededCount returns how many persona results carry no error marker.
func (t *Test) SucceededCount() int {
	n := 0
	for _, r := range t.Results {
		if !r.Failed() {
			n++
		}
	}
	return n
}
