package model

import "time"

// UsageRecord is one ledger entry per LLM call, successful or not.
//
// Records are append-only: never updated, never deleted. Cost is
// derived from the pricing table at record time; summaries recompute
// aggregates from the raw records rather than storing them separately.
type UsageRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	TestID           string    `json:"test_id"`
	PersonaID        string    `json:"persona_id"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cost             float64   `json:"cost"`
	LatencyMS        int64     `json:"latency_ms"`
}

// ModelUsage is one aggregation bucket inside a CostSummary.
type ModelUsage struct {
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// add accumulates one record into the bucket.
func (m *ModelUsage) add(rec UsageRecord) {
	m.Calls++
	m.PromptTokens += rec.PromptTokens
	m.CompletionTokens += rec.CompletionTokens
	m.Cost += rec.Cost
}

// TimeBuckets breaks usage down by fixed trailing windows relative to
// the summary's reference time.
type TimeBuckets struct {
	Last24h ModelUsage `json:"last_24h"`
	Last7d  ModelUsage `json:"last_7d"`
	Last30d ModelUsage `json:"last_30d"`
}

// CostSummary is a read-only aggregation over usage records. It is
// derived on demand and is not a separate source of truth.
type CostSummary struct {
	Totals  ModelUsage            `json:"totals"`
	ByModel map[string]ModelUsage `json:"by_model"`
	ByTest  map[string]ModelUsage `json:"by_test"`
	Buckets TimeBuckets           `json:"buckets"`
}

// Accumulate folds one record into every matching aggregate. now is
// the reference time for the trailing windows.
func (s *CostSummary) Accumulate(rec UsageRecord, now time.Time) {
	if s.ByModel == nil {
		s.ByModel = make(map[string]ModelUsage)
	}
	if s.ByTest == nil {
		s.ByTest = make(map[string]ModelUsage)
	}

	s.Totals.add(rec)

	m := s.ByModel[rec.Model]
	m.add(rec)
	s.ByModel[rec.Model] = m

	t := s.ByTest[rec.TestID]
	t.add(rec)
	s.ByTest[rec.TestID] = t

	age := now.Sub(rec.Timestamp)
	if age <= 24*time.Hour {
		s.Buckets.Last24h.add(rec)
	}
	if age <= 7*24*time.Hour {
		s.Buckets.Last7d.add(rec)
	}
	if age <= 30*24*time.Hour {
		s.Buckets.Last30d.add(rec)
	}
}
