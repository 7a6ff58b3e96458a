package store

import (
	"context"
	"fmt"
	"time"

	"github.com/synthpanel/synthpanel/internal/model"
)

// SaveTest upserts a test record. The whole row is written in one
// statement, so a concurrent reader sees either the previous record or
// the new one, never a partially updated result list.
//
// Lifecycle legality (monotonic status) is the engine's concern; the
// store persists whatever terminal record the engine hands it.
func (s *Store) SaveTest(ctx context.Context, t *model.Test) error {
	personaIDs, err := marshalJSON(t.PersonaIDs)
	if err != nil {
		return fmt.Errorf("save test: persona ids: %w", err)
	}
	audience, err := marshalJSON(t.Audience)
	if err != nil {
		return fmt.Errorf("save test: audience: %w", err)
	}
	settings, err := marshalJSON(t.Settings)
	if err != nil {
		return fmt.Errorf("save test: settings: %w", err)
	}
	results, err := marshalJSON(resultsOrEmpty(t.Results))
	if err != nil {
		return fmt.Errorf("save test: results: %w", err)
	}
	usage, err := marshalJSON(t.Usage)
	if err != nil {
		return fmt.Errorf("save test: usage: %w", err)
	}
	session, err := marshalJSON(t.Session)
	if err != nil {
		return fmt.Errorf("save test: session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tests
		(id, type, language, status, objective, persona_ids, audience, settings, results, failure_reason, usage, session, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			language = excluded.language,
			status = excluded.status,
			objective = excluded.objective,
			persona_ids = excluded.persona_ids,
			audience = excluded.audience,
			settings = excluded.settings,
			results = excluded.results,
			failure_reason = excluded.failure_reason,
			usage = excluded.usage,
			session = excluded.session,
			updated_at = excluded.updated_at
	`,
		t.ID,
		string(t.Type),
		t.Language,
		string(t.Status),
		t.Objective,
		personaIDs,
		audience,
		settings,
		results,
		t.FailureReason,
		usage,
		session,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save test %s: %w", t.ID, err)
	}

	return nil
}

// SavePersona upserts a persona profile.
func (s *Store) SavePersona(ctx context.Context, p model.Persona) error {
	data, err := marshalJSON(p)
	if err != nil {
		return fmt.Errorf("save persona: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personas (id, name, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data
	`, p.ID, p.Name, data)
	if err != nil {
		return fmt.Errorf("save persona %s: %w", p.ID, err)
	}

	return nil
}

// SaveUsageRecords appends flushed ledger entries. Inserts are
// idempotent on record ID: flushing the same run twice does not double
// the reported spend.
func (s *Store) SaveUsageRecords(ctx context.Context, recs []model.UsageRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save usage records: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_records
		(id, ts, test_id, persona_id, model, prompt_tokens, completion_tokens, cost, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("save usage records: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		_, err := stmt.ExecContext(ctx,
			rec.ID,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.TestID,
			rec.PersonaID,
			rec.Model,
			rec.PromptTokens,
			rec.CompletionTokens,
			rec.Cost,
			rec.LatencyMS,
		)
		if err != nil {
			return fmt.Errorf("save usage record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save usage records: commit: %w", err)
	}
	return nil
}

// resultsOrEmpty keeps the results column a JSON array even when the
// slice is nil.
func resultsOrEmpty(results []model.PersonaResult) []model.PersonaResult {
	if results == nil {
		return []model.PersonaResult{}
	}
	return results
}
