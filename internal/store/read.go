package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/synthpanel/synthpanel/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// LoadTest returns one test by ID, including its persisted results.
func (s *Store) LoadTest(ctx context.Context, id string) (*model.Test, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, language, status, objective, persona_ids, audience, settings, results, failure_reason, usage, session, created_at, updated_at
		FROM tests
		WHERE id = ?
	`, id)

	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", id, err)
	}
	return t, nil
}

// LoadPersonas returns the personas for the given IDs, in the order
// the IDs were given. Missing personas are simply absent from the
// result; the engine treats a count mismatch as a precondition
// failure.
func (s *Store) LoadPersonas(ctx context.Context, ids []string) ([]model.Persona, error) {
	if len(ids) == 0 {
		return []model.Persona{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM personas WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Persona, len(ids))
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		var p model.Persona
		if err := unmarshalJSON(data, &p); err != nil {
			return nil, fmt.Errorf("decode persona: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personas: %w", err)
	}

	// Preserve request order.
	out := make([]model.Persona, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// LoadUsageRecords returns persisted usage records matching the query,
// ordered by timestamp then ID for deterministic reports.
func (s *Store) LoadUsageRecords(ctx context.Context, q UsageQuery) ([]model.UsageRecord, error) {
	query, args := buildUsageSQL(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	records := []model.UsageRecord{}
	for rows.Next() {
		var rec model.UsageRecord
		var ts string
		if err := rows.Scan(
			&rec.ID, &ts, &rec.TestID, &rec.PersonaID, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.Cost, &rec.LatencyMS,
		); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse usage record timestamp %q: %w", ts, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage records: %w", err)
	}

	return records, nil
}

// ListTests returns all test IDs with their status, newest first.
func (s *Store) ListTests(ctx context.Context) ([]model.Test, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, language, status, objective, persona_ids, audience, settings, results, failure_reason, usage, session, created_at, updated_at
		FROM tests
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		tests = append(tests, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return tests, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanTest.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (*model.Test, error) {
	var (
		t                  model.Test
		typ, status        string
		personaIDs         string
		audience, settings string
		results            string
		usage, session     string
		createdAt          string
		updatedAt          string
	)

	err := row.Scan(
		&t.ID, &typ, &t.Language, &status, &t.Objective,
		&personaIDs, &audience, &settings, &results, &t.FailureReason,
		&usage, &session, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = model.TestType(typ)
	t.Status = model.TestStatus(status)

	if err := unmarshalJSON(personaIDs, &t.PersonaIDs); err != nil {
		return nil, fmt.Errorf("decode persona ids: %w", err)
	}
	if err := unmarshalJSON(audience, &t.Audience); err != nil {
		return nil, fmt.Errorf("decode audience: %w", err)
	}
	if err := unmarshalJSON(settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := unmarshalJSON(results, &t.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if err := unmarshalJSON(usage, &t.Usage); err != nil {
		return nil, fmt.Errorf("decode usage: %w", err)
	}
	if err := unmarshalJSON(session, &t.Session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}

	return &t, nil
}
