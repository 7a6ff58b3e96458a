package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/synthpanel/synthpanel/internal/model"
)

const defaultBaseURL = "http://localhost:11434"

// HTTPClient speaks the Ollama-style /api/chat REST protocol with a
// structured-output format field. Any endpoint implementing that
// contract works; the engine only sees the Client interface.
//
// The per-call deadline is carried by the request context, not by the
// embedded http.Client, so each runner invocation controls its own
// timeout.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPClient returns a client for the given base URL, defaulting to
// the local Ollama address when empty.
func NewHTTPClient(baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  &http.Client{},
	}
}

// chatRequest is the JSON body sent to /api/chat.
type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the JSON body returned by /api/chat (non-streaming).
type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// GenerateStructuredResponse implements Client over HTTP.
func (c *HTTPClient) GenerateStructuredResponse(ctx context.Context, req Request) (Response, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   false,
		Format:   req.Schema,
	})
	if err != nil {
		return Response{}, NewError(ErrInvalidRequest, "marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, NewError(ErrInvalidRequest, "build chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return Response{}, NewError(ErrTimeout, "chat request exceeded deadline", err)
		}
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		return Response{}, NewError(ErrUnavailable, "chat request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, NewError(ErrUnavailable, "read chat response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, classifyStatus(resp.StatusCode, respBody)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return Response{}, NewError(ErrUnavailable, "decode chat response", err)
	}

	return Response{
		Raw: json.RawMessage(chat.Message.Content),
		Usage: model.TokenUsage{
			PromptTokens:     chat.PromptEvalCount,
			CompletionTokens: chat.EvalCount,
		},
	}, nil
}

// classifyStatus maps an HTTP status to the provider error taxonomy.
func classifyStatus(status int, body []byte) *ProviderError {
	msg := fmt.Sprintf("provider returned %d: %s", status, truncate(body, 200))
	switch {
	case status == http.StatusTooManyRequests:
		return NewError(ErrRateLimited, msg, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(ErrTimeout, msg, nil)
	case status >= 400 && status < 500:
		return NewError(ErrInvalidRequest, msg, nil)
	default:
		return NewError(ErrUnavailable, msg, nil)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
