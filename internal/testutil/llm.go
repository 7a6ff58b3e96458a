// Package testutil provides deterministic fakes and fixtures shared by
// the engine's test suites.
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/synthpanel/synthpanel/internal/llm"
	"github.com/synthpanel/synthpanel/internal/model"
)

func tokenUsage(prompt, completion int) model.TokenUsage {
	return model.TokenUsage{PromptTokens: prompt, CompletionTokens: completion}
}

// Call records one invocation of the scripted client.
type Call struct {
	Model  string
	System string
	Prompt string
}

// ScriptedClient is a deterministic llm.Client. It pops scripted steps
// in FIFO order and keeps returning the final step once the script is
// exhausted, so a single-step script behaves like a constant provider.
//
// Thread-safe: runner tasks call it from parallel goroutines.
type ScriptedClient struct {
	mu    sync.Mutex
	steps []scriptedStep
	idx   int
	calls []Call
}

type scriptedStep struct {
	resp llm.Response
	err  error
}

// NewScriptedClient creates an empty script. Use Respond and Fail to
// append steps.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// Respond appends a successful step returning raw JSON with the given
// token usage.
func (c *ScriptedClient) Respond(raw string, promptTokens, completionTokens int) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, scriptedStep{
		resp: llm.Response{
			Raw: json.RawMessage(raw),
			Usage: tokenUsage(promptTokens, completionTokens),
		},
	})
	return c
}

// Fail appends a failing step. Usage may still be non-zero (a provider
// can bill a call that then errors).
func (c *ScriptedClient) Fail(err error, promptTokens, completionTokens int) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, scriptedStep{
		resp: llm.Response{Usage: tokenUsage(promptTokens, completionTokens)},
		err:  err,
	})
	return c
}

// GenerateStructuredResponse implements llm.Client.
func (c *ScriptedClient) GenerateStructuredResponse(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{Model: req.Model, System: req.System, Prompt: req.Prompt})

	if len(c.steps) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrUnavailable, "scripted client has no steps", nil)
	}
	step := c.steps[c.idx]
	if c.idx < len(c.steps)-1 {
		c.idx++
	}
	return step.resp, step.err
}

// Calls returns a copy of every recorded invocation.
func (c *ScriptedClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times the client was invoked.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
