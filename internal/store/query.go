package store

import (
	"strings"
	"time"
)

// UsageQuery narrows a usage-record report. Zero values match
// everything.
type UsageQuery struct {
	TestID    string
	PersonaID string
	Model     string
	Since     time.Time
	Until     time.Time
}

// buildUsageSQL compiles a UsageQuery into parameterized SQL.
//
// All values are bound through placeholders, never interpolated, and
// every query carries an ORDER BY with an ID tiebreaker so reports are
// deterministic across runs.
func buildUsageSQL(q UsageQuery) (string, []any) {
	sql := `
		SELECT id, ts, test_id, persona_id, model, prompt_tokens, completion_tokens, cost, latency_ms
		FROM usage_records
	`

	var conds []string
	var params []any
	if q.TestID != "" {
		conds = append(conds, "test_id = ?")
		params = append(params, q.TestID)
	}
	if q.PersonaID != "" {
		conds = append(conds, "persona_id = ?")
		params = append(params, q.PersonaID)
	}
	if q.Model != "" {
		conds = append(conds, "model = ?")
		params = append(params, q.Model)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "ts >= ?")
		params = append(params, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if !q.Until.IsZero() {
		conds = append(conds, "ts <= ?")
		params = append(params, q.Until.UTC().Format(time.RFC3339Nano))
	}
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}

	sql += " ORDER BY ts ASC, id ASC"
	return sql, params
}
