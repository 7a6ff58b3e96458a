package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthpanel/synthpanel/internal/model"
	"github.com/synthpanel/synthpanel/internal/testutil"
)

const panelYAML = `
test:
  type: product
  language: pt-BR
  objective: "A meal-planning app that builds weekly grocery lists from family recipes."
  audience:
    age_min: 25
    age_max: 45
    location: "São Paulo"
    interests: ["cooking"]
    pain_points: ["no free time"]
  settings:
    interaction_style: candid
personas:
  - name: "Maria Oliveira"
    age: 34
    occupation: nurse
    location: "São Paulo"
    interests: ["cooking", "running"]
    challenges: ["no free time"]
  - name: "João Santos"
    age: 41
    occupation: teacher
    location: "São Paulo"
    interests: ["reading"]
`

func writePanel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(panelYAML), 0o644))
	return path
}

// fakeChatServer serves the Ollama-style chat endpoint with a constant
// valid evaluation.
func fakeChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": string(testutil.ValidEvaluationJSON())},
			"prompt_eval_count": 100,
			"eval_count":        40,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestRunCommand_EndToEnd drives a two-persona panel through the full
// stack against a fake provider and checks the persisted outcome.
func TestRunCommand_EndToEnd(t *testing.T) {
	srv := fakeChatServer(t)
	dbPath := filepath.Join(t.TempDir(), "panel.db")

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--base-url", srv.URL, writePanel(t)})

	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, string(model.StatusCompleted), data["status"])
	assert.NotEmpty(t, data["id"])

	results := data["results"].([]any)
	require.Len(t, results, 2)

	usage := data["usage"].(map[string]any)
	assert.Equal(t, float64(2), usage["calls"])
	assert.Equal(t, float64(200), usage["prompt_tokens"])
}

// TestRunCommand_ProviderRejectsEverything tests the failed terminal
// state and exit code when no persona run can succeed.
func TestRunCommand_ProviderRejectsEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	dbPath := filepath.Join(t.TempDir(), "panel.db")

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--base-url", srv.URL, writePanel(t)})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, string(model.StatusFailed))
	assert.Contains(t, out, model.FailureAllPersonasFailed)
	assert.Contains(t, out, "FAILED (PROVIDER)")
}

// TestRunCommand_MissingPanelFile tests the command-error exit code.
func TestRunCommand_MissingPanelFile(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", filepath.Join(t.TempDir(), "panel.db"), filepath.Join(t.TempDir(), "nope.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// TestLoadRunInput tests ID filling and defaulting on panel files.
func TestLoadRunInput(t *testing.T) {
	input, err := loadRunInput(writePanel(t))
	require.NoError(t, err)

	require.Len(t, input.Personas, 2)
	assert.NotEmpty(t, input.Personas[0].ID)
	assert.NotEmpty(t, input.Personas[1].ID)
	assert.NotEqual(t, input.Personas[0].ID, input.Personas[1].ID)

	assert.Equal(t, []string{input.Personas[0].ID, input.Personas[1].ID}, input.Test.PersonaIDs)
	assert.Equal(t, model.TestTypeProduct, input.Test.Type)
	assert.Equal(t, "pt-BR", input.Test.Language)
}

// TestLoadRunInput_NoPersonas tests rejection of empty panels.
func TestLoadRunInput_NoPersonas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test:\n  objective: x\n"), 0o644))

	_, err := loadRunInput(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no personas")
}
