package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthpanel/synthpanel/internal/llm"
	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/testutil"
)

func personas(ids ...string) []model.Persona {
	out := make([]model.Persona, 0, len(ids))
	for _, id := range ids {
		out = append(out, testutil.SamplePersona(id))
	}
	return out
}

// TestScenario_AllSucceed pins the happy-path trace: completed status,
// ordered results, exact spend.
func TestScenario_AllSucceed(t *testing.T) {
	trace := RunWithGolden(t, &Scenario{
		Name:     "all_succeed",
		Test:     testutil.SampleTest(""),
		Personas: personas("p1", "p2", "p3"),
		Script: []Step{
			{Raw: string(testutil.ValidEvaluationJSON()), PromptTokens: 100, CompletionTokens: 40},
		},
	})

	assert.Equal(t, model.StatusCompleted, trace.Status)
	assert.Equal(t, 3, trace.Usage.Calls)
}

// TestScenario_ProviderRejectsAll pins the all-failed trace: one
// non-retryable call per persona, failed status with its reason.
func TestScenario_ProviderRejectsAll(t *testing.T) {
	trace := RunWithGolden(t, &Scenario{
		Name:     "provider_rejects_all",
		Test:     testutil.SampleTest(""),
		Personas: personas("p1", "p2"),
		Script: []Step{
			{Err: llm.NewError(llm.ErrInvalidRequest, "bad request", nil)},
		},
	})

	assert.Equal(t, model.StatusFailed, trace.Status)
	assert.Equal(t, model.FailureAllPersonasFailed, trace.FailureReason)
}

// TestScenario_SchemaRejected pins the validation-retry trace: three
// charged attempts, then a contained validation failure.
func TestScenario_SchemaRejected(t *testing.T) {
	trace := RunWithGolden(t, &Scenario{
		Name:     "schema_rejected",
		Test:     testutil.SampleTest(""),
		Personas: personas("p1"),
		Script: []Step{
			{Raw: `{"oops": true}`, PromptTokens: 100, CompletionTokens: 40},
		},
	})

	require.Len(t, trace.Results, 1)
	assert.Equal(t, model.ErrKindValidation, trace.Results[0].Outcome)
	assert.Equal(t, 3, trace.Usage.Calls)
}

// TestScenario_PartialFailure pins failure isolation: the first
// persona exhausts its provider retries, the second succeeds, and the
// test still completes.
func TestScenario_PartialFailure(t *testing.T) {
	down := llm.NewError(llm.ErrUnavailable, "down", nil)
	trace := RunWithGolden(t, &Scenario{
		Name:     "partial_failure",
		Test:     testutil.SampleTest(""),
		Personas: personas("p1", "p2"),
		Script: []Step{
			{Err: down},
			{Err: down},
			{Err: down},
			{Raw: string(testutil.ValidEvaluationJSON()), PromptTokens: 100, CompletionTokens: 40},
		},
	})

	assert.Equal(t, model.StatusCompleted, trace.Status)
	require.Len(t, trace.Results, 2)
	assert.Equal(t, model.ErrKindProvider, trace.Results[0].Outcome)
	assert.Equal(t, "ok", trace.Results[1].Outcome)
}

// TestRun_RejectsEmptyScenarios tests input validation.
func TestRun_RejectsEmptyScenarios(t *testing.T) {
	_, err := Run(&Scenario{Name: "no_test", Personas: personas("p1")})
	require.Error(t, err)

	_, err = Run(&Scenario{Name: "no_personas", Test: testutil.SampleTest("")})
	require.Error(t, err)
}
