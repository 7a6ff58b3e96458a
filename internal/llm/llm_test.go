package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassifyStatus tests the status-to-taxonomy mapping.
func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusRequestTimeout, ErrTimeout},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusBadRequest, ErrInvalidRequest},
		{http.StatusNotFound, ErrInvalidRequest},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
		{http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tc := range tests {
		pe := classifyStatus(tc.status, []byte("detail"))
		assert.Equal(t, tc.kind, pe.Kind, "status %d", tc.status)
		assert.Contains(t, pe.Message, "detail")
	}
}

// TestProviderError_Retryable tests the retry taxonomy: only invalid
// requests are final.
func TestProviderError_Retryable(t *testing.T) {
	assert.True(t, NewError(ErrRateLimited, "", nil).Retryable())
	assert.True(t, NewError(ErrTimeout, "", nil).Retryable())
	assert.True(t, NewError(ErrUnavailable, "", nil).Retryable())
	assert.False(t, NewError(ErrInvalidRequest, "", nil).Retryable())

	assert.True(t, IsRetryable(NewError(ErrUnavailable, "", nil)))
	assert.False(t, IsRetryable(NewError(ErrInvalidRequest, "", nil)))
	assert.False(t, IsRetryable(assert.AnError))
	assert.False(t, IsRetryable(nil))
}

// TestHTTPClient_GenerateStructuredResponse tests the happy path
// against a fake chat endpoint: request shape, schema passthrough, and
// usage extraction.
func TestHTTPClient_GenerateStructuredResponse(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"model":             "gpt-4o-mini",
			"message":           map[string]string{"role": "assistant", "content": `{"answer":"ok"}`},
			"prompt_eval_count": 120,
			"eval_count":        45,
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	resp, err := client.GenerateStructuredResponse(context.Background(), Request{
		Model:  "gpt-4o-mini",
		System: "you are a persona",
		Prompt: "react to this product",
		Schema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"answer":"ok"}`, string(resp.Raw))
	assert.Equal(t, 120, resp.Usage.PromptTokens)
	assert.Equal(t, 45, resp.Usage.CompletionTokens)

	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	assert.Equal(t, map[string]any{"type": "object"}, gotBody["format"])

	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

// TestHTTPClient_ErrorStatuses tests that failing statuses come back as
// classified provider errors.
func TestHTTPClient_ErrorStatuses(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", status)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)

	_, err := client.GenerateStructuredResponse(context.Background(), Request{Model: "m", Prompt: "p"})
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrRateLimited, pe.Kind)
	assert.Contains(t, pe.Message, "quota exceeded")

	status = http.StatusBadRequest
	_, err = client.GenerateStructuredResponse(context.Background(), Request{Model: "m", Prompt: "p"})
	pe, ok = AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidRequest, pe.Kind)
	assert.False(t, pe.Retryable())
}

// TestHTTPClient_DeadlineBecomesTimeout tests that a context deadline
// maps onto the timeout kind.
func TestHTTPClient_DeadlineBecomesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and
		// cancels the request context when the client disconnects.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GenerateStructuredResponse(ctx, Request{Model: "m", Prompt: "p"})
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrTimeout, pe.Kind)
}

// TestHTTPClient_ConnectionRefused tests that an unreachable provider
// is classified unavailable.
func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // free the port, keep the URL

	client := NewHTTPClient(srv.URL)
	_, err := client.GenerateStructuredResponse(context.Background(), Request{Model: "m", Prompt: "p"})
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrUnavailable, pe.Kind)
}

// TestNewHTTPClient_DefaultBaseURL tests the local default.
func TestNewHTTPClient_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", NewHTTPClient("").BaseURL)
	assert.Equal(t, "http://example.test", NewHTTPClient("http://example.test").BaseURL)
}
