// Package harness runs end-to-end panel scenarios for conformance
// testing.
//
// A scenario declares a test, its personas, and a scripted provider.
// Run drives the scenario through the real engine against a fresh
// in-memory database and produces a deterministic trace: fixed IDs,
// fixed clock, integer pricing, and a concurrency of one unless the
// scenario says otherwise. Traces are compared against golden files,
// so any change to lifecycle, ordering, failure isolation, or
// accounting behavior shows up as a diff.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/synthpanel/synthpanel/internal/engine"
	"github.com/synthpanel/synthpanel/internal/ledger"
	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/pricing"
	"github.com/synthpanel/synthpanel/internal/runner"
	"github.com/synthpanel/synthpanel/internal/store"
	"github.com/synthpanel/synthpanel/internal/testutil"
)

// Step is one scripted provider response. A step with Err set fails
// the call; token counts are reported either way, like a real provider
// that bills a failed call.
type Step struct {
	Raw              string
	Err              error
	PromptTokens     int
	CompletionTokens int
}

// Scenario is one end-to-end panel run. The script is consumed in FIFO
// order and its last step repeats once exhausted, so a single step acts
// as a constant provider.
type Scenario struct {
	Name        string
	Test        *model.Test
	Personas    []model.Persona
	Script      []Step
	Concurrency int
}

// Trace is the deterministic record of a scenario run.
type Trace struct {
	TestID        string           `json:"test_id"`
	Status        model.TestStatus `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	Results       []TraceResult    `json:"results"`
	Usage         TraceUsage       `json:"usage"`
}

// TraceResult is one persona's outcome in the trace.
type TraceResult struct {
	PersonaID        string `json:"persona_id"`
	Outcome          string `json:"outcome"` // "ok" or the error kind
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// TraceUsage is the scenario's aggregate spend. The harness prices
// every token at one dollar so costs stay integral and exact.
type TraceUsage struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// Run executes a scenario against a fresh in-memory database and
// returns its trace.
func Run(scenario *Scenario) (*Trace, error) {
	if scenario.Test == nil {
		return nil, fmt.Errorf("scenario %q has no test", scenario.Name)
	}
	if len(scenario.Personas) == 0 {
		return nil, fmt.Errorf("scenario %q has no personas", scenario.Name)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	// One dollar per token keeps every cost an exact integer.
	table := pricing.New(nil, pricing.Price{PromptPerMillion: 1e6, CompletionPerMillion: 1e6})
	led := ledger.New(table,
		ledger.WithClock(clock),
		ledger.WithIDGenerator(sequentialIDs("usage")),
	)

	client := testutil.NewScriptedClient()
	for _, step := range scenario.Script {
		if step.Err != nil {
			client.Fail(step.Err, step.PromptTokens, step.CompletionTokens)
		} else {
			client.Respond(step.Raw, step.PromptTokens, step.CompletionTokens)
		}
	}

	rnr := runner.New(client, led, "panel-test-model",
		runner.WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)

	concurrency := scenario.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}
	eng := engine.New(st, rnr, led,
		engine.WithConcurrency(concurrency),
		engine.WithIDGenerator(engine.NewFixedGenerator(scenario.Name)),
		engine.WithClock(clock),
	)

	ctx := context.Background()
	for _, p := range scenario.Personas {
		if err := st.SavePersona(ctx, p); err != nil {
			return nil, fmt.Errorf("seed persona %s: %w", p.ID, err)
		}
	}

	test := scenario.Test
	if len(test.PersonaIDs) == 0 {
		for _, p := range scenario.Personas {
			test.PersonaIDs = append(test.PersonaIDs, p.ID)
		}
	}
	if err := eng.CreateTest(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	result, err := eng.Start(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("start test: %w", err)
	}

	return buildTrace(result), nil
}

func buildTrace(t *model.Test) *Trace {
	trace := &Trace{
		TestID:        t.ID,
		Status:        t.Status,
		FailureReason: t.FailureReason,
		Results:       make([]TraceResult, 0, len(t.Results)),
		Usage: TraceUsage{
			Calls:            t.Usage.Calls,
			PromptTokens:     t.Usage.PromptTokens,
			CompletionTokens: t.Usage.CompletionTokens,
			Cost:             t.Usage.Cost,
		},
	}
	for _, r := range t.Results {
		outcome := "ok"
		if r.Failed() {
			outcome = r.ErrorKind
		}
		trace.Results = append(trace.Results, TraceResult{
			PersonaID:        r.PersonaID,
			Outcome:          outcome,
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
		})
	}
	return trace
}

// sequentialIDs returns a generator producing prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
