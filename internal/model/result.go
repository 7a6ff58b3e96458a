package model

// TokenUsage is the token count reported by the provider for one or
// more LLM calls.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add accumulates another call's usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Error kinds a PersonaResult can carry. They mirror the engine's
// failure taxonomy at the granularity a caller needs to tell failure
// classes apart.
const (
	ErrKindValidation = "VALIDATION"
	ErrKindProvider   = "PROVIDER"
	ErrKindTimeout    = "TIMEOUT"
	ErrKindCancelled  = "CANCELLED"
)

// PersonaResult is the outcome of one runner invocation. Created once
// per persona per test run and never mutated afterwards; owned by the
// test's result list.
//
// Usage covers every LLM call made for the persona, including failed
// retries. Evaluation is nil exactly when the run failed.
type PersonaResult struct {
	PersonaID  string             `json:"persona_id"`
	Evaluation *EvaluationPayload `json:"evaluation,omitempty"`
	Hints      AlignmentHints     `json:"alignment_hints"`
	Usage      TokenUsage         `json:"usage"`

	// ErrorKind and Error are the failure marker. Empty on success.
	// ErrorKind is one of the engine's error codes ("VALIDATION",
	// "PROVIDER", "TIMEOUT", "CANCELLED").
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the persona run ended in failure.
func (r PersonaResult) Failed() bool {
	return r.Error != "" || r.ErrorKind != ""
}

// AlignmentHints are the matcher's short natural-language notes on how
// a persona lines up with the target audience, one per dimension. They
// steer the prompt and are echoed into the result for traceability.
type AlignmentHints struct {
	Age       string `json:"age"`
	Location  string `json:"location"`
	Income    string `json:"income"`
	Interests string `json:"interests"`
	PainPoint string `json:"pain_points"`
}
