// Package runner drives a single persona through one evaluation round.
//
// One Run call composes the evaluation prompt from persona attributes,
// the test objective, and the matcher's alignment hints; invokes the
// LLM capability requesting the fixed structured schema; validates the
// raw payload; and produces a PersonaResult. Validation failures are
// retried a small bounded number of times with a corrective
// instruction appended to the prompt; retryable provider failures are
// retried with exponential backoff.
//
// Failure isolation: a runner never aborts the whole test. When every
// retry is exhausted the result comes back marked failed with the
// error recorded, and sibling runs are unaffected.
//
// Accounting: every LLM call — successful or not, including wasted
// retries — is recorded in the ledger with its reported token counts
// before Run returns. Partial spend is real spend.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/synthpanel/synthpanel/internal/ledger"
	"github.com/synthpanel/synthpanel/internal/llm"
	"github.com/synthpanel/synthpanel/internal/match"
	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/schema"
)

// Defaults for the retry and deadline budget.
const (
	DefaultValidationRetries = 2
	DefaultProviderRetries   = 2
	DefaultCallTimeout       = 2 * time.Minute
	DefaultBackoffBase       = 500 * time.Millisecond
)

// Runner executes persona simulations against one model.
type Runner struct {
	client llm.Client
	ledger *ledger.Ledger
	model  string

	callTimeout       time.Duration
	validationRetries int
	providerRetries   int
	backoffBase       time.Duration

	// sleep is replaced in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithCallTimeout sets the per-call deadline for LLM invocations.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Runner) { r.callTimeout = d }
}

// WithValidationRetries sets how many times a call is repeated after a
// schema validation failure.
func WithValidationRetries(n int) Option {
	return func(r *Runner) { r.validationRetries = n }
}

// WithProviderRetries sets how many times a retryable provider failure
// is repeated per attempt.
func WithProviderRetries(n int) Option {
	return func(r *Runner) { r.providerRetries = n }
}

// WithBackoffBase sets the initial backoff delay for provider retries.
// The delay doubles on each subsequent retry.
func WithBackoffBase(d time.Duration) Option {
	return func(r *Runner) { r.backoffBase = d }
}

// WithSleeper overrides the backoff sleep. Used by tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// New creates a Runner that invokes the given model through client and
// records every call in led.
func New(client llm.Client, led *ledger.Ledger, modelName string, opts ...Option) *Runner {
	r := &Runner{
		client:            client,
		ledger:            led,
		model:             modelName,
		callTimeout:       DefaultCallTimeout,
		validationRetries: DefaultValidationRetries,
		providerRetries:   DefaultProviderRetries,
		backoffBase:       DefaultBackoffBase,
		sleep:             sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives one persona through one evaluation round.
//
// The returned PersonaResult always carries the persona ID, the
// alignment hints, and the accumulated token usage of every call made,
// wasted retries included. On failure the result's error marker is set
// and the error is also returned for the caller's logging; the caller
// must treat it as contained, never as fatal to sibling runs.
func (r *Runner) Run(ctx context.Context, test *model.Test, persona model.Persona) (model.PersonaResult, error) {
	hints := match.Score(persona, test.Audience)
	result := model.PersonaResult{
		PersonaID: persona.ID,
		Hints:     hints,
	}

	system := composeSystem(persona)
	basePrompt := composePrompt(test, persona, hints)
	evalSchema := schema.JSONSchema()

	corrective := ""
	var lastErr error

	for attempt := 0; attempt <= r.validationRetries; attempt++ {
		prompt := basePrompt
		if corrective != "" {
			prompt = prompt + "\n\n" + corrective
		}

		resp, err := r.generate(ctx, test, persona, llm.Request{
			Model:  r.model,
			System: system,
			Prompt: prompt,
			Schema: evalSchema,
		}, &result.Usage)
		if err != nil {
			markFailure(&result, err)
			return result, err
		}

		payload, err := schema.Validate(resp.Raw)
		if err == nil {
			result.Evaluation = payload
			return result, nil
		}

		lastErr = err
		slog.Warn("evaluation payload failed validation",
			"test_id", test.ID,
			"persona_id", persona.ID,
			"attempt", attempt+1,
			"error", err,
		)
		corrective = correctiveInstruction(err)
	}

	// Validation retries exhausted. The run is failed but contained.
	markFailure(&result, lastErr)
	return result, lastErr
}

// generate performs one logical LLM call including provider-level
// retries with backoff. Every physical call is recorded in the ledger
// before generate returns, with whatever token counts the provider
// reported (zero for transport failures).
func (r *Runner) generate(ctx context.Context, test *model.Test, persona model.Persona, req llm.Request, usage *model.TokenUsage) (llm.Response, error) {
	var lastErr error

	for try := 0; try <= r.providerRetries; try++ {
		if err := ctx.Err(); err != nil {
			return llm.Response{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		start := time.Now()
		resp, err := r.client.GenerateStructuredResponse(callCtx, req)
		latency := time.Since(start)
		cancel()

		// Accounting happens before any control-flow decision so
		// aborted and failed calls are still charged.
		r.ledger.Record(model.UsageRecord{
			TestID:           test.ID,
			PersonaID:        persona.ID,
			Model:            req.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			LatencyMS:        latency.Milliseconds(),
		})
		usage.Add(resp.Usage)

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			return llm.Response{}, err
		}
		if !llm.IsRetryable(err) || try == r.providerRetries {
			return llm.Response{}, err
		}

		delay := r.backoffBase << uint(try)
		slog.Warn("provider call failed, backing off",
			"test_id", test.ID,
			"persona_id", persona.ID,
			"try", try+1,
			"delay", delay,
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return llm.Response{}, err
		}
	}

	return llm.Response{}, lastErr
}

// markFailure stamps the result's error marker from the terminal error.
func markFailure(result *model.PersonaResult, err error) {
	if err == nil {
		return
	}
	result.Error = err.Error()
	switch {
	case errors.Is(err, context.Canceled):
		result.ErrorKind = model.ErrKindCancelled
	case schema.IsValidationError(err):
		result.ErrorKind = model.ErrKindValidation
	default:
		if pe, ok := llm.AsProviderError(err); ok && pe.Kind == llm.ErrTimeout {
			result.ErrorKind = model.ErrKindTimeout
		} else if errors.Is(err, context.DeadlineExceeded) {
			result.ErrorKind = model.ErrKindTimeout
		} else {
			result.ErrorKind = model.ErrKindProvider
		}
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
