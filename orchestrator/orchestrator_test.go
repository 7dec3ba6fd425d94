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

package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
	"smarter/platform/plugins/static"
)

// scriptedClient replays canned completions (or errors) in call order and
// records every request it receives.
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

func textResponse(id, content string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		ID:     id,
		Object: "chat.completion",
		Model:  "gpt-4",
		Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func toolCallResponse(function, arguments string) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{
		ID:     "first",
		Object: "chat.completion",
		Model:  "gpt-4",
		Choices: []llm.Choice{{
			Message: llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: llm.FunctionCall{
						Name:      function,
						Arguments: arguments,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
		Usage: llm.Usage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
	}
}

func salesPlugin(t *testing.T, id int64) base.PluginRuntime {
	t.Helper()
	m := &manifest.Manifest{
		APIVersion: manifest.APIVersion,
		Kind:       manifest.KindStaticPlugin,
		Metadata: manifest.Metadata{
			Name:        "sales-faq",
			PluginClass: manifest.ClassStatic,
		},
		Spec: manifest.Spec{
			Selector: manifest.Selector{Directive: manifest.DirectiveAlways},
			Data: manifest.DataSpec{
				Description: "answers to common sales inquiries",
				StaticData: map[string]interface{}{
					"sales": map[string]interface{}{"contact": "sales@example.com"},
				},
			},
		},
	}
	p, err := static.New(m, id, "acct")
	if err != nil {
		t.Fatalf("static.New: %v", err)
	}
	return p
}

func turnRequest(plugins ...base.PluginRuntime) *TurnRequest {
	return &TurnRequest{
		Session: &ChatSession{
			SessionKey: "sess-1",
			Account:    "acct",
		},
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "I have a sales question"}},
		Plugins:  plugins,
		User:     "admin",
	}
}

func testDefaults() Defaults {
	return Defaults{
		Model:       "gpt-4",
		SystemRole:  "You are a helpful assistant.",
		Temperature: 0.5,
		MaxTokens:   256,
	}
}

func TestRunTurn_TwoPassWithPluginToolCall(t *testing.T) {
	plugin := salesPlugin(t, 42)
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{
			toolCallResponse(plugin.FunctionName(), `{"inquiry_type":"sales"}`),
			textResponse("second", "Contact sales@example.com."),
		},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest(plugin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", resp.StatusCode, resp.Body)
	}
	if len(client.calls) != 2 {
		t.Fatalf("LLM calls = %d, want 2", len(client.calls))
	}

	result := resp.Body.(*TurnResult)
	if len(result.Metadata.ToolCalls) != 1 {
		t.Fatalf("tool call records = %d, want 1", len(result.Metadata.ToolCalls))
	}
	if result.Metadata.ToolCalls[0].Function != plugin.FunctionName() {
		t.Errorf("recorded function = %q", result.Metadata.ToolCalls[0].Function)
	}
	if result.Metadata.ToolCalls[0].Plugin != "sales-faq" {
		t.Errorf("recorded plugin = %q", result.Metadata.ToolCalls[0].Plugin)
	}
	if len(result.Metadata.Plugins) != 1 || result.Metadata.Plugins[0] != "sales-faq" {
		t.Errorf("selected plugins = %v", result.Metadata.Plugins)
	}
	if result.ID != "second" {
		t.Errorf("result id = %q, want the second completion", result.ID)
	}
	if result.Usage.TotalTokens != 28+15 {
		t.Errorf("usage = %+v, want both iterations summed", result.Usage)
	}

	// The second call carries the tool output and offers no tools.
	second := client.calls[1]
	if len(second.Tools) != 0 {
		t.Errorf("second call offered %d tools", len(second.Tools))
	}
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
		t.Errorf("last message = %+v, want the tool result", last)
	}
	if !strings.Contains(last.Content, "sales@example.com") {
		t.Errorf("tool output = %q", last.Content)
	}
}

// Models occasionally wrap arguments in a list of single-key objects
// instead of one object; dispatch merges them left-to-right.
func TestRunTurn_ListShapedArgumentsMerged(t *testing.T) {
	plugin := salesPlugin(t, 42)
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{
			toolCallResponse(plugin.FunctionName(), `[{"inquiry_type":"marketing"},{"inquiry_type":"sales"}]`),
			textResponse("second", "Contact sales@example.com."),
		},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest(plugin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", resp.StatusCode, resp.Body)
	}
	if len(client.calls) != 2 {
		t.Fatalf("LLM calls = %d, want 2", len(client.calls))
	}

	// The later list entry wins, so the sales payload is returned.
	second := client.calls[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool {
		t.Fatalf("last message = %+v, want the tool result", last)
	}
	if !strings.Contains(last.Content, "sales@example.com") {
		t.Errorf("tool output = %q", last.Content)
	}
}

func TestRunTurn_FirstCallFailureEndsTurn(t *testing.T) {
	client := &scriptedClient{
		errs: []error{&llm.APIError{StatusCode: 500, Message: "upstream down"}},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest())
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(client.calls) != 1 {
		t.Errorf("LLM calls = %d, want 1 (no second attempt)", len(client.calls))
	}

	envelope := resp.Body.(*ErrorEnvelope)
	if envelope.ErrorClass != classInternal {
		t.Errorf("errorClass = %q", envelope.ErrorClass)
	}
	if envelope.Description == "" {
		t.Error("expected a description")
	}
}

func TestRunTurn_NoToolCallsSinglePass(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{textResponse("only", "Hello!")},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(client.calls) != 1 {
		t.Errorf("LLM calls = %d, want 1", len(client.calls))
	}
	result := resp.Body.(*TurnResult)
	if len(result.Metadata.ToolCalls) != 0 {
		t.Errorf("tool calls = %v", result.Metadata.ToolCalls)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", result.Usage)
	}
}

func TestRunTurn_ValidationFailsBeforeAnyLLMCall(t *testing.T) {
	client := &scriptedClient{}
	o := New("openai", client, testDefaults())

	tests := []struct {
		name string
		req  *TurnRequest
	}{
		{"nil session", &TurnRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}},
		{"missing session key", &TurnRequest{
			Session:  &ChatSession{Account: "acct"},
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		}},
		{"missing account", &TurnRequest{
			Session:  &ChatSession{SessionKey: "sess-1"},
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		}},
		{"no messages", &TurnRequest{
			Session: &ChatSession{SessionKey: "sess-1", Account: "acct"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := o.RunTurn(context.Background(), tt.req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			envelope := resp.Body.(*ErrorEnvelope)
			if envelope.ErrorClass != classValidation {
				t.Errorf("errorClass = %q", envelope.ErrorClass)
			}
		})
	}
	if len(client.calls) != 0 {
		t.Errorf("LLM calls = %d, want 0", len(client.calls))
	}
}

func TestRunTurn_UnresolvableFunctionIsFatal(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{
			toolCallResponse("smarter_plugin_0000009999", `{}`),
		},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest())
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	envelope := resp.Body.(*ErrorEnvelope)
	if envelope.ErrorClass != classIllegalInvocation {
		t.Errorf("errorClass = %q", envelope.ErrorClass)
	}
	if envelope.FirstResponse == nil {
		t.Error("envelope should carry the first raw response")
	}
	if len(client.calls) != 1 {
		t.Errorf("LLM calls = %d, want 1", len(client.calls))
	}
}

func TestRunTurn_PluginExecutionFailureEndsTurn(t *testing.T) {
	plugin := salesPlugin(t, 7)
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{
			toolCallResponse(plugin.FunctionName(), `{"inquiry_type":"no-such-key"}`),
		},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest(plugin))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	envelope := resp.Body.(*ErrorEnvelope)
	if envelope.ErrorClass != classPluginExecution {
		t.Errorf("errorClass = %q", envelope.ErrorClass)
	}
}

func TestRunTurn_BuiltinWeatherTool(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{
			toolCallResponse(WeatherFunctionName, `{"location":"San Francisco, CA","unit":"celsius"}`),
			textResponse("second", "It is 22 degrees and sunny."),
		},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", resp.StatusCode, resp.Body)
	}
	result := resp.Body.(*TurnResult)
	if len(result.Metadata.ToolCalls) != 1 || !result.Metadata.ToolCalls[0].Builtin {
		t.Fatalf("tool call records = %+v", result.Metadata.ToolCalls)
	}

	toolMsg := client.calls[1].Messages[len(client.calls[1].Messages)-1]
	if !strings.Contains(toolMsg.Content, `"temperature":22`) {
		t.Errorf("weather payload = %q", toolMsg.Content)
	}

	// The weather tool is always offered.
	if len(client.calls[0].Tools) != 1 {
		t.Errorf("first call offered %d tools, want the builtin", len(client.calls[0].Tools))
	}
}

func TestRunTurn_PluginPromptOverrides(t *testing.T) {
	plugin := salesPlugin(t, 3)
	plugin.Manifest().Spec.Prompt = manifest.Prompt{
		Model:       "gpt-4-turbo",
		Temperature: 0.9,
		MaxTokens:   512,
		SystemRole:  "Answer like a sales rep.",
	}
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{textResponse("only", "ok")},
	}
	o := New("openai", client, testDefaults())

	resp := o.RunTurn(context.Background(), turnRequest(plugin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	first := client.calls[0]
	if first.Model != "gpt-4-turbo" {
		t.Errorf("model = %q", first.Model)
	}
	if first.Temperature != 0.9 {
		t.Errorf("temperature = %v", first.Temperature)
	}
	if first.MaxTokens != 512 {
		t.Errorf("maxTokens = %d", first.MaxTokens)
	}
	if !strings.Contains(first.Messages[0].Content, "Answer like a sales rep.") {
		t.Errorf("system message = %q", first.Messages[0].Content)
	}
}

func TestRunTurn_ChatbotOverridesBeatDefaults(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ChatCompletionResponse{textResponse("only", "ok")},
	}
	o := New("openai", client, testDefaults())

	req := turnRequest()
	req.Session.Chatbot = &ChatbotConfig{Model: "gpt-3.5-turbo", MaxTokens: 64}
	resp := o.RunTurn(context.Background(), req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if client.calls[0].Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", client.calls[0].Model)
	}
	if client.calls[0].MaxTokens != 64 {
		t.Errorf("maxTokens = %d", client.calls[0].MaxTokens)
	}
	if client.calls[0].Temperature != 0.5 {
		t.Errorf("temperature = %v, want the default", client.calls[0].Temperature)
	}
}

func TestNormalizeMessages(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: "Be brief."},
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	inbound := []llm.Message{
		{Role: llm.RoleSystem, Content: "Stay polite."},
		{Role: llm.RoleUser, Content: "new question"},
	}

	out, promptText := normalizeMessages(history, inbound, "default role")

	if out[0].Role != llm.RoleSystem {
		t.Fatalf("first message role = %q", out[0].Role)
	}
	if out[0].Content != "Be brief.\nStay polite." {
		t.Errorf("system content = %q", out[0].Content)
	}
	for _, m := range out[1:] {
		if m.Role == llm.RoleSystem {
			t.Errorf("stray system message: %+v", m)
		}
	}
	if len(out) != 4 {
		t.Errorf("len = %d, want 4", len(out))
	}
	if promptText != "new question" {
		t.Errorf("promptText = %q", promptText)
	}
}

func TestNormalizeMessages_InjectsDefaultSystemRole(t *testing.T) {
	out, _ := normalizeMessages(nil, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, "default role")
	if out[0].Role != llm.RoleSystem || out[0].Content != "default role" {
		t.Errorf("head = %+v", out[0])
	}
}
