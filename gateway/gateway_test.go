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

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"smarter/platform/orchestrator"
	"smarter/platform/orchestrator/llm"
	"smarter/platform/orchestrator/providers"
	"smarter/platform/orchestrator/session"
	"smarter/platform/plugins/repository"
)

const pluginYAML = `
apiVersion: smarter.sh/v1
kind: StaticPlugin
metadata:
  name: sales-faq
  pluginClass: static
  description: answers to common sales inquiries
  tags: [sales]
spec:
  selector:
    directive: searchTerms
    searchTerms: [sales]
  data:
    staticData:
      sales:
        contact: sales@example.com
`

type scriptedClient struct {
	responses []*llm.ChatCompletionResponse
	errs      []error
	calls     []*llm.ChatCompletionRequest
}

func (c *scriptedClient) ChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	i := len(c.calls)
	c.calls = append(c.calls, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		return nil, fmt.Errorf("unexpected call %d", i+1)
	}
	return c.responses[i], nil
}

func assistantResponse(content string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		ID:     "resp-1",
		Object: "chat.completion",
		Model:  "gpt-4",
		Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: llm.Usage{TotalTokens: 10},
	}
}

type testEnv struct {
	server *Server
	client *scriptedClient
	store  *session.RedisStore
	repo   *repository.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	client := &scriptedClient{}
	factory := func(provider string) (*orchestrator.Orchestrator, error) {
		return orchestrator.New(provider, client, orchestrator.Defaults{
			Model:       "gpt-4",
			SystemRole:  "You are a helpful assistant.",
			Temperature: 0.5,
			MaxTokens:   256,
		}), nil
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	store := session.NewRedisStoreWithClient(redisClient)

	repo := repository.New(repository.NewMemoryStore())
	server := New(Config{
		Registry:     providers.New(factory),
		Plugins:      repo,
		Materializer: repository.NewMaterializer(nil),
		Sessions:     store,
	})
	return &testEnv{server: server, client: client, store: store, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set(HeaderAccountNumber, "acct-1")
	req.Header.Set(HeaderUsername, "admin")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestPluginCRUD(t *testing.T) {
	env := newTestEnv(t)

	// Create.
	w := env.do(t, "POST", "/api/v1/plugins", pluginYAML)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Status *struct {
			ID            int64  `json:"id"`
			AccountNumber string `json:"accountNumber"`
			Username      string `json:"username"`
		} `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status == nil || created.Status.ID == 0 {
		t.Fatalf("missing status block: %s", w.Body.String())
	}
	if created.Status.AccountNumber != "acct-1" || created.Status.Username != "admin" {
		t.Errorf("status = %+v", created.Status)
	}

	// Get.
	w = env.do(t, "GET", "/api/v1/plugins/sales-faq", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// List.
	w = env.do(t, "GET", "/api/v1/plugins?tags=sales", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed []json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("list len = %d, want 1", len(listed))
	}

	// Clone.
	w = env.do(t, "POST", "/api/v1/plugins/sales-faq/clone", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("clone status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "sales-faq (copy)") {
		t.Errorf("clone body = %s", w.Body.String())
	}

	// Delete.
	w = env.do(t, "DELETE", "/api/v1/plugins/sales-faq", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = env.do(t, "GET", "/api/v1/plugins/sales-faq", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestCreatePlugin_InvalidManifest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/plugins", "apiVersion: smarter.sh/v1\nkind: StaticPlugin\n")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ConfigurationError") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMissingAccountHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/plugins", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestChat_UnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/chat/anthropic",
		`{"session_key":"sess-1","messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	for _, name := range providers.ValidProviders() {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("body %s does not list %q", w.Body.String(), name)
		}
	}
}

func TestChat_TurnAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.client.responses = []*llm.ChatCompletionResponse{assistantResponse("Hello!")}

	w := env.do(t, "POST", "/api/v1/chat/openai",
		`{"session_key":"sess-1","messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result struct {
		Choices  []llm.Choice `json:"choices"`
		Metadata struct {
			Provider string `json:"provider"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Choices) != 1 || result.Choices[0].Message.Content != "Hello!" {
		t.Errorf("choices = %+v", result.Choices)
	}
	if result.Metadata.Provider != "openai" {
		t.Errorf("provider = %q", result.Metadata.Provider)
	}

	// The turn was recorded: user message plus assistant answer.
	history, err := env.store.History(context.Background(), "acct-1", "sess-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}

	// A second turn replays the history into the prompt.
	env.client.responses = append(env.client.responses, assistantResponse("Again!"))
	w = env.do(t, "POST", "/api/v1/chat/openai",
		`{"session_key":"sess-1","messages":[{"role":"user","content":"and again"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("second status = %d", w.Code)
	}
	secondCall := env.client.calls[1]
	// system + 2 history + 1 new inbound
	if len(secondCall.Messages) != 4 {
		t.Errorf("second call messages = %d, want 4", len(secondCall.Messages))
	}
}

func TestChat_FailureEnvelopePassthrough(t *testing.T) {
	env := newTestEnv(t)
	env.client.errs = []error{&llm.APIError{StatusCode: 500, Message: "down"}}

	w := env.do(t, "POST", "/api/v1/chat/openai",
		`{"session_key":"sess-1","messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "errorClass") {
		t.Errorf("body = %s", w.Body.String())
	}

	// Failed turns leave no history.
	history, _ := env.store.History(context.Background(), "acct-1", "sess-1")
	if len(history) != 0 {
		t.Errorf("history len = %d, want 0", len(history))
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
