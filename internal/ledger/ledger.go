// Package ledger is the append-only usage accounting store.
//
// Every LLM call made by a runner — successful, failed, or aborted —
// is recorded here with its reported token counts and derived cost.
// The ledger is the sole writer of usage records; all cost summaries
// are computed from the raw records on demand, never stored
// independently, so they can always be recomputed.
//
// Concurrency model: runner tasks record from parallel goroutines.
// Appends take an exclusive lock, summaries take a shared lock, so
// Record never loses updates and Summarize always observes a
// consistent snapshot (never a torn one).
//
// Recording is best-effort by contract: Record returns nothing and
// never fails the caller's run. Faults (nil ledger misuse aside, the
// in-memory append path cannot fail) are reported to the structured
// log, not surfaced as test failures.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/pricing"
)

// Ledger is an in-memory append-only list of usage records.
type Ledger struct {
	prices *pricing.Table

	newID func() string
	now   func() time.Time

	mu      sync.RWMutex
	records []model.UsageRecord
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator overrides record ID generation. Used by tests to get
// deterministic IDs.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger that prices records with the given table.
func New(prices *pricing.Table, opts ...Option) *Ledger {
	l := &Ledger{
		prices: prices,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one usage entry. Safe for concurrent callers.
//
// The ledger fills in ID, Timestamp, and Cost when the caller left
// them zero; everything else is stored as given. Record never fails:
// accounting must not block a simulation.
func (l *Ledger) Record(rec model.UsageRecord) {
	if rec.ID == "" {
		rec.ID = l.newID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	if rec.Cost == 0 {
		rec.Cost = l.prices.Cost(rec.Model, model.TokenUsage{
			PromptTokens:     rec.PromptTokens,
			CompletionTokens: rec.CompletionTokens,
		})
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Filter selects usage records for Summarize and Records. Zero values
// match everything.
type Filter struct {
	TestID    string
	PersonaID string
	Model     string
	Since     time.Time
	Until     time.Time
}

func (f Filter) matches(rec model.UsageRecord) bool {
	if f.TestID != "" && rec.TestID != f.TestID {
		return false
	}
	if f.PersonaID != "" && rec.PersonaID != f.PersonaID {
		return false
	}
	if f.Model != "" && rec.Model != f.Model {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Summarize aggregates all matching records into a CostSummary.
// May run concurrently with writers; the shared lock guarantees the
// summary reflects a consistent snapshot.
func (l *Ledger) Summarize(f Filter) model.CostSummary {
	now := l.now()

	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum model.CostSummary
	for _, rec := range l.records {
		if f.matches(rec) {
			sum.Accumulate(rec, now)
		}
	}
	if sum.ByModel == nil {
		sum.ByModel = map[string]model.ModelUsage{}
	}
	if sum.ByTest == nil {
		sum.ByTest = map[string]model.ModelUsage{}
	}
	return sum
}

// Records returns a copy of all matching records in append order.
// Used to flush a finished test's spend to durable storage.
func (l *Ledger) Records(f Filter) []model.UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.UsageRecord, 0)
	for _, rec := range l.records {
		if f.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the total number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
