package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/synthpanel/synthpanel/internal/ledger"
	"github.com/synthpanel/synthpanel/internal/model"
)

// DefaultConcurrency bounds simultaneous runner tasks. The default
// reflects typical provider rate limits; raise it for local models.
const DefaultConcurrency = 4

// Storage is the persistence collaborator. The engine treats it as an
// injected interface and writes a test exactly once at Start and once
// at the terminal transition.
type Storage interface {
	LoadTest(ctx context.Context, id string) (*model.Test, error)
	LoadPersonas(ctx context.Context, ids []string) ([]model.Persona, error)
	SaveTest(ctx context.Context, t *model.Test) error

	// SaveUsageRecords persists a finished run's ledger entries so
	// spend reporting survives the process. Best-effort from the
	// engine's point of view.
	SaveUsageRecords(ctx context.Context, recs []model.UsageRecord) error
}

// PersonaRunner executes one persona simulation. Implemented by
// runner.Runner; faked in tests.
type PersonaRunner interface {
	Run(ctx context.Context, t *model.Test, p model.Persona) (model.PersonaResult, error)
}

// Engine owns the test state machine.
//
// Thread-safety model:
//   - Start: one call per test; concurrent Starts for different tests
//     are fine.
//   - Cancel / Status: safe from any goroutine.
//
// INVARIANTS:
//   - Result slice published to storage is always full length and in
//     persona-list order.
//   - Status transitions are monotonic; terminal states are never left.
type Engine struct {
	storage Storage
	runner  PersonaRunner
	ledger  *ledger.Ledger

	concurrency int
	idGen       IDGenerator
	now         func() time.Time

	mu     sync.Mutex
	active map[string]*activeRun
}

// activeRun tracks one in-flight Start call, for Cancel and Status.
type activeRun struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency sets the bounded worker pool size.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithIDGenerator overrides test ID generation. Used by tests.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) { e.idGen = gen }
}

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(storage Storage, personaRunner PersonaRunner, led *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		storage:     storage,
		runner:      personaRunner,
		ledger:      led,
		concurrency: DefaultConcurrency,
		idGen:       UUIDv7Generator{},
		now:         time.Now,
		active:      make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTest assigns an ID and timestamps to a draft definition and
// persists it. The test starts its life in draft.
func (e *Engine) CreateTest(ctx context.Context, t *model.Test) error {
	if t.ID == "" {
		t.ID = e.idGen.Generate()
	}
	t.Status = model.StatusDraft
	t.CreatedAt = e.now()
	t.UpdatedAt = t.CreatedAt
	if err := e.storage.SaveTest(ctx, t); err != nil {
		return fmt.Errorf("save draft test: %w", err)
	}
	return nil
}

// Start transitions a draft test to running, fans out one runner task
// per persona under the bounded pool, waits for all of them, and
// persists the terminal test record.
//
// Preconditions (rejected with PreconditionError, no side effects):
// the test must be in draft, must reference at least one persona, and
// every referenced persona must exist.
//
// Terminal rule: completed when at least one persona run succeeded;
// failed when all runs failed or the run was cancelled. Per-persona
// failures never abort sibling runs.
func (e *Engine) Start(ctx context.Context, testID string) (*model.Test, error) {
	t, err := e.storage.LoadTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", testID, err)
	}

	if t.Status != model.StatusDraft {
		return nil, newPrecondition(CodeNotDraft, testID,
			fmt.Sprintf("cannot start test in status %q", t.Status))
	}
	if len(t.PersonaIDs) == 0 {
		return nil, newPrecondition(CodeNoPersonas, testID, "test has no personas")
	}

	personas, err := e.storage.LoadPersonas(ctx, t.PersonaIDs)
	if err != nil {
		return nil, fmt.Errorf("load personas for test %s: %w", testID, err)
	}
	if len(personas) != len(t.PersonaIDs) {
		return nil, newPrecondition(CodeUnknownPersona, testID,
			fmt.Sprintf("test references %d personas, storage returned %d", len(t.PersonaIDs), len(personas)))
	}

	// draft → running, persisted before any task is dispatched.
	t.Status = model.StatusRunning
	t.UpdatedAt = e.now()
	if err := e.storage.SaveTest(ctx, t); err != nil {
		return nil, fmt.Errorf("persist running transition: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &activeRun{cancel: cancel}
	e.mu.Lock()
	e.active[testID] = run
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, testID)
		e.mu.Unlock()
	}()

	slog.Info("test started",
		"test_id", t.ID,
		"type", t.Type,
		"personas", len(personas),
		"concurrency", e.concurrency,
	)

	results := e.fanOut(runCtx, t, personas)

	e.mu.Lock()
	wasCancelled := run.cancelled
	e.mu.Unlock()

	return e.finish(ctx, t, results, wasCancelled)
}

// fanOut dispatches one runner task per persona under the semaphore
// and slots results by persona index.
func (e *Engine) fanOut(ctx context.Context, t *model.Test, personas []model.Persona) []model.PersonaResult {
	results := make([]model.PersonaResult, len(personas))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, p := range personas {
		// Cooperative cancellation: stop dispatching once cancelled.
		// Undispatched personas still get a slotted result so the
		// list stays full length and in order.
		if ctx.Err() != nil {
			results[i] = cancelledResult(p.ID)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, persona model.Persona) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := e.runner.Run(ctx, t, persona)
			if err != nil {
				// Contained: the failure lives in the result marker.
				slog.Warn("persona run failed",
					"test_id", t.ID,
					"persona_id", persona.ID,
					"kind", res.ErrorKind,
					"error", err,
				)
			}
			if res.PersonaID == "" {
				res.PersonaID = persona.ID
			}
			results[idx] = res
		}(i, p)
	}

	wg.Wait()
	return results
}

// finish computes the terminal status, attaches results and the usage
// summary, and persists the final record in one SaveTest call.
func (e *Engine) finish(ctx context.Context, t *model.Test, results []model.PersonaResult, cancelled bool) (*model.Test, error) {
	t.Results = results

	sum := e.ledger.Summarize(ledger.Filter{TestID: t.ID})
	t.Usage = model.UsageSummary{
		PromptTokens:     sum.Totals.PromptTokens,
		CompletionTokens: sum.Totals.CompletionTokens,
		Calls:            sum.Totals.Calls,
		Cost:             sum.Totals.Cost,
	}

	succeeded := t.SucceededCount()
	switch {
	case cancelled:
		t.Status = model.StatusFailed
		t.FailureReason = model.FailureCancelled
	case succeeded == 0:
		t.Status = model.StatusFailed
		t.FailureReason = model.FailureAllPersonasFailed
	default:
		t.Status = model.StatusCompleted
		t.FailureReason = ""
	}
	t.UpdatedAt = e.now()

	// Terminal persistence uses the caller's context, not the run
	// context: a cancelled run must still write its failed record.
	if err := e.storage.SaveTest(ctx, t); err != nil {
		return nil, fmt.Errorf("persist terminal transition: %w", err)
	}

	// Accounting flush is best-effort and never fails the run.
	recs := e.ledger.Records(ledger.Filter{TestID: t.ID})
	if err := e.storage.SaveUsageRecords(ctx, recs); err != nil {
		slog.Error("failed to persist usage records",
			"test_id", t.ID,
			"records", len(recs),
			"error", err,
		)
	}

	slog.Info("test finished",
		"test_id", t.ID,
		"status", t.Status,
		"succeeded", succeeded,
		"failed", len(results)-succeeded,
		"cost", t.Usage.Cost,
	)
	return t, nil
}

// Cancel requests cooperative cancellation of a running test. Accepted
// only while the test is running. New tasks stop being dispatched;
// in-flight provider calls are aborted through their context; the test
// then transitions to failed with a cancellation marker.
func (e *Engine) Cancel(testID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.active[testID]
	if !ok {
		return newPrecondition(CodeNotRunning, testID, "test is not running")
	}
	run.cancelled = true
	run.cancel()
	slog.Info("test cancellation requested", "test_id", testID)
	return nil
}

// Status returns the persisted snapshot of a test. While a run is in
// flight the snapshot shows status running with no partial results;
// results become visible only atomically at the terminal transition.
func (e *Engine) Status(ctx context.Context, testID string) (*model.Test, error) {
	t, err := e.storage.LoadTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", testID, err)
	}
	return t, nil
}

// cancelledResult is the slotted marker for a persona that was never
// dispatched because the run was cancelled first.
func cancelledResult(personaID string) model.PersonaResult {
	return model.PersonaResult{
		PersonaID: personaID,
		ErrorKind: model.ErrKindCancelled,
		Error:     "run cancelled before dispatch",
	}
}
