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
	"errors"
	"io"
	"net/http"
	"testing"
)

// fakeDoer returns a canned HTTP response and records the request.
type fakeDoer struct {
	status   int
	body     string
	lastReq  *http.Request
	lastBody []byte
	err      error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		f.lastBody, _ = io.ReadAll(req.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Header:     make(http.Header),
	}, nil
}

func newTestClient(t *testing.T, doer *fakeDoer) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(Config{BaseURL: OpenAIBaseURL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	client.SetHTTPDoer(doer)
	return client
}

func TestNewHTTPClient_Validation(t *testing.T) {
	if _, err := NewHTTPClient(Config{APIKey: "k"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewHTTPClient(Config{BaseURL: OpenAIBaseURL}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestChatCompletion_Success(t *testing.T) {
	doer := &fakeDoer{
		status: http.StatusOK,
		body: `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1714000000,
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`,
	}
	client := newTestClient(t, doer)

	resp, err := client.ChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if resp.FirstMessage().Content != "hi" {
		t.Errorf("content = %q, want %q", resp.FirstMessage().Content, "hi")
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("total tokens = %d, want 12", resp.Usage.TotalTokens)
	}
	if resp.HasToolCalls() {
		t.Error("HasToolCalls() = true for a plain text response")
	}

	if got := doer.lastReq.URL.String(); got != OpenAIBaseURL+"/chat/completions" {
		t.Errorf("request URL = %q", got)
	}
	if got := doer.lastReq.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got)
	}

	var sent ChatCompletionRequest
	if err := json.Unmarshal(doer.lastBody, &sent); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if sent.Model != "gpt-4" {
		t.Errorf("sent model = %q", sent.Model)
	}
}

func TestChatCompletion_ToolCalls(t *testing.T) {
	doer := &fakeDoer{
		status: http.StatusOK,
		body: `{
			"id": "chatcmpl-2",
			"choices": [{"index": 0, "message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "smarter_plugin_0000000042", "arguments": "{\"inquiry_type\": \"sales\"}"}}]
			}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 5, "total_tokens": 10}
		}`,
	}
	client := newTestClient(t, doer)

	resp, err := client.ChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: RoleUser, Content: "gobstopper price"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if !resp.HasToolCalls() {
		t.Fatal("HasToolCalls() = false, want true")
	}
	call := resp.FirstMessage().ToolCalls[0]
	if call.Function.Name != "smarter_plugin_0000000042" {
		t.Errorf("function name = %q", call.Function.Name)
	}

	args, err := call.Function.ParseArguments()
	if err != nil {
		t.Fatalf("ParseArguments: %v", err)
	}
	if args["inquiry_type"] != "sales" {
		t.Errorf("inquiry_type = %v, want sales", args["inquiry_type"])
	}
}

func TestChatCompletion_APIError(t *testing.T) {
	doer := &fakeDoer{
		status: http.StatusTooManyRequests,
		body:   `{"error": {"message": "rate limited", "type": "requests", "code": "rate_limit_exceeded"}}`,
	}
	client := newTestClient(t, doer)

	_, err := client.ChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !apiErr.IsRateLimitError() {
		t.Error("IsRateLimitError() = false")
	}
	if apiErr.Code != "rate_limit_exceeded" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestChatCompletion_TransportError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("connection refused")}
	client := newTestClient(t, doer)

	_, err := client.ChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt-4"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
}

func TestParseArguments_Malformed(t *testing.T) {
	fc := FunctionCall{Name: "f", Arguments: "{not json"}
	if _, err := fc.ParseArguments(); err == nil {
		t.Error("expected error for malformed arguments")
	}

	fc = FunctionCall{Name: "f"}
	args, err := fc.ParseArguments()
	if err != nil {
		t.Fatalf("empty arguments should parse: %v", err)
	}
	if len(args) != 0 {
		t.Errorf("expected empty map, got %v", args)
	}
}

func TestUsage_Add(t *testing.T) {
	a := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	b := Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}
	sum := a.Add(b)
	if sum.PromptTokens != 13 || sum.CompletionTokens != 7 || sum.TotalTokens != 20 {
		t.Errorf("Add() = %+v", sum)
	}
}

func TestNewToolSchema_Defaults(t *testing.T) {
	schema := NewToolSchema("get_current_weather", "current weather", ParameterSchema{})
	if schema.Type != "function" {
		t.Errorf("Type = %q, want function", schema.Type)
	}
	if schema.Function.Parameters.Type != "object" {
		t.Errorf("Parameters.Type = %q, want object", schema.Function.Parameters.Type)
	}
	if schema.Function.Parameters.Properties == nil {
		t.Error("Properties should never be nil (wire contract)")
	}
	if schema.Function.Parameters.Required == nil {
		t.Error("Required should never be nil (wire contract)")
	}
}
