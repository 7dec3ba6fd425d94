// Copyright 2025 Smarter
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider base URLs. GoogleAI and MetaAI expose OpenAI-compatible
// chat-completion endpoints, so the same client serves all three.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	GoogleAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	MetaAIBaseURL   = "https://api.llama.com/compat/v1"
)

// DefaultTimeout is the default HTTP timeout for one completion call.
const DefaultTimeout = 120 * time.Second

// Client issues one synchronous chat-completion call. Implementations must
// be safe for concurrent use.
type Client interface {
	// ChatCompletion performs one chat-completion round trip. The context
	// is used for cancellation and deadline propagation.
	ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// HTTPDoer is the subset of *http.Client the HTTP client needs; it exists
// so tests can substitute a fake transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient is the OpenAI-wire-compatible Client implementation.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// Config configures an HTTPClient.
type Config struct {
	BaseURL string        // Required: provider endpoint root
	APIKey  string        // Required: bearer token
	Timeout time.Duration // Optional: HTTP timeout (default 120s)
}

// NewHTTPClient creates a chat-completion client for an OpenAI-compatible
// endpoint.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm client base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm client API key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPDoer substitutes the transport. Intended for tests.
func (c *HTTPClient) SetHTTPDoer(d HTTPDoer) {
	c.client = d
}

// ChatCompletion implements Client.
func (c *HTTPClient) ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &APIError{Message: err.Error(), Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, parseAPIError(resp.StatusCode, raw)
	}

	var completion ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	return &completion, nil
}

// APIError is an error response from a provider endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Cause      error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm API error (status %d, code %q): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("llm API error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsRateLimitError reports whether the provider throttled the request.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether the credentials were rejected.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// parseAPIError decodes the OpenAI-style error envelope.
func parseAPIError(statusCode int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return &APIError{StatusCode: statusCode, Message: string(body)}
	}
	return &APIError{
		StatusCode: statusCode,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
}
