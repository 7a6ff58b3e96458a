// Package llm defines the capability boundary to the model provider.
//
// The orchestration core never assumes a particular invocation
// mechanism; it only depends on the Client contract: a prompt and a
// structured-output schema go in, raw JSON and token usage come out,
// and failures arrive as typed provider errors the runner can classify
// as retryable or not.
package llm

import (
	"context"
	"encoding/json"

	"github.com/synthpanel/synthpanel/internal/model"
)

// Request is one structured-generation call.
type Request struct {
	// Model names the model to invoke; it is also the pricing key.
	Model string

	// System is the persona framing ("You are Maria, 34, a nurse…").
	System string

	// Prompt is the evaluation task, including the subject under test
	// and any corrective instruction appended on retry.
	Prompt string

	// Schema is the JSON Schema the response must conform to.
	Schema json.RawMessage
}

// Response is the provider's reply to a structured-generation call.
type Response struct {
	// Raw is the model's JSON output, unvalidated.
	Raw json.RawMessage

	// Usage is the provider-reported token count for this single call.
	Usage model.TokenUsage
}

// Client is the LLM capability. The deadline travels in ctx; a call
// that exceeds it must return a Timeout-kind ProviderError.
//
// Implementations must be safe for concurrent use: the orchestrator
// shares one client across all runner tasks.
type Client interface {
	GenerateStructuredResponse(ctx context.Context, req Request) (Response, error)
}
