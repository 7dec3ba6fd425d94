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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/base"
	"smarter/platform/shared/logger"
)

// Defaults are the provider-level fallbacks for a chat turn, applied when
// neither the chatbot configuration nor a selected plugin overrides them.
type Defaults struct {
	Model       string
	SystemRole  string
	Temperature float64
	MaxTokens   int
}

// ChatbotConfig carries per-chatbot overrides of the provider defaults.
// Zero values mean "not set" and fall through to the default.
type ChatbotConfig struct {
	Model       string
	SystemRole  string
	Temperature float64
	MaxTokens   int
}

// ChatSession identifies one conversation. The orchestrator treats it as
// input/output: it reads the chatbot overrides and prior history but never
// persists anything itself.
type ChatSession struct {
	SessionKey string
	Account    string
	Chatbot    *ChatbotConfig
	History    []llm.Message
}

// TurnRequest is one full user turn: the session, the inbound prompt
// messages, the candidate plugin runtimes materialized for this turn, and
// the acting user.
type TurnRequest struct {
	Session  *ChatSession
	Messages []llm.Message
	Plugins  []base.PluginRuntime
	User     string
}

// ToolCallRecord summarizes one dispatched tool call for turn metadata.
type ToolCallRecord struct {
	Function string `json:"function"`
	Plugin   string `json:"plugin,omitempty"`
	Builtin  bool   `json:"builtin,omitempty"`
}

// Metadata is the orchestrator-added block on a successful turn body.
type Metadata struct {
	RequestID string           `json:"request_id"`
	Provider  string           `json:"provider"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
	Plugins   []string         `json:"plugins"`
}

// TurnResult is the success body of a chat turn: the final completion of
// whichever iteration produced it, with usage summed across both LLM calls.
type TurnResult struct {
	ID       string       `json:"id"`
	Object   string       `json:"object"`
	Created  int64        `json:"created"`
	Model    string       `json:"model"`
	Choices  []llm.Choice `json:"choices"`
	Metadata Metadata     `json:"metadata"`
	Usage    llm.Usage    `json:"usage"`
}

// ErrorEnvelope is the failure body. It carries whatever raw LLM responses
// the turn had obtained before failing, for diagnostics.
type ErrorEnvelope struct {
	ErrorClass     string                      `json:"errorClass"`
	Description    string                      `json:"description"`
	RequestID      string                      `json:"request_id"`
	Provider       string                      `json:"provider"`
	Model          string                      `json:"model,omitempty"`
	FirstResponse  *llm.ChatCompletionResponse `json:"first_llm_response,omitempty"`
	SecondResponse *llm.ChatCompletionResponse `json:"second_llm_response,omitempty"`
}

// Response is the orchestrator's public contract: an HTTP status and a body
// that is either a *TurnResult or an *ErrorEnvelope.
type Response struct {
	StatusCode int         `json:"statusCode"`
	Body       interface{} `json:"body"`
}

// Orchestrator runs the two-pass tool-calling protocol for one provider.
//
// An instance may live for a whole chat session (the provider registry
// caches instances per session key) and accumulates built-in tools over its
// lifetime. It assumes one in-flight turn per session at a time.
type Orchestrator struct {
	provider string
	client   llm.Client
	defaults Defaults
	builtins []BuiltinTool
	byName   map[string]BuiltinTool
	log      *logger.Logger
}

// New creates an orchestrator for one provider. The built-in weather tool
// is registered on every new instance.
func New(provider string, client llm.Client, defaults Defaults) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		client:   client,
		defaults: defaults,
		byName:   make(map[string]BuiltinTool),
		log:      logger.New("chat-orchestrator"),
	}
	o.AddBuiltin(weatherTool())
	return o
}

// AddBuiltin registers an additional built-in tool, offered on every
// subsequent turn of this instance.
func (o *Orchestrator) AddBuiltin(tool BuiltinTool) {
	o.builtins = append(o.builtins, tool)
	o.byName[tool.Schema.Function.Name] = tool
}

// Provider returns the provider name this orchestrator serves.
func (o *Orchestrator) Provider() string {
	return o.provider
}

// RunTurn executes one chat turn. It never returns an unhandled error:
// every failure inside the protocol is classified and converted into an
// ErrorEnvelope under the mapped status code. No retries are performed; a
// single LLM call failure ends the turn.
func (o *Orchestrator) RunTurn(ctx context.Context, req *TurnRequest) *Response {
	started := time.Now()
	requestID := uuid.NewString()

	turn := &turnState{requestID: requestID}
	result, err := o.runTurn(ctx, turn, req)
	durationMS := float64(time.Since(started).Milliseconds())

	if err != nil {
		class, status := classifyError(err)
		promTurnsTotal.WithLabelValues(o.provider, "error").Inc()
		o.log.ErrorWithCode(turn.account, turn.sessionKey, "chat turn failed", status, err, map[string]interface{}{
			"request_id":  requestID,
			"error_class": class,
			"provider":    o.provider,
		})
		return &Response{
			StatusCode: status,
			Body: &ErrorEnvelope{
				ErrorClass:     class,
				Description:    err.Error(),
				RequestID:      requestID,
				Provider:       o.provider,
				Model:          turn.model,
				FirstResponse:  turn.first,
				SecondResponse: turn.second,
			},
		}
	}

	promTurnsTotal.WithLabelValues(o.provider, "success").Inc()
	promTurnDuration.WithLabelValues(o.provider).Observe(durationMS)
	o.log.InfoWithDuration(turn.account, turn.sessionKey, "chat turn completed", durationMS, map[string]interface{}{
		"request_id": requestID,
		"provider":   o.provider,
		"model":      result.Model,
		"tool_calls": len(result.Metadata.ToolCalls),
	})
	return &Response{StatusCode: http.StatusOK, Body: result}
}

// turnState accumulates partial request/response metadata so the failure
// envelope can report how far the turn got.
type turnState struct {
	requestID  string
	account    string
	sessionKey string
	model      string
	first      *llm.ChatCompletionResponse
	second     *llm.ChatCompletionResponse
}

func (o *Orchestrator) runTurn(ctx context.Context, turn *turnState, req *TurnRequest) (*TurnResult, error) {
	if err := validateTurn(req); err != nil {
		return nil, err
	}
	turn.account = req.Session.Account
	turn.sessionKey = req.Session.SessionKey

	effective := o.effectiveConfig(req.Session.Chatbot)
	messages, promptText := normalizeMessages(req.Session.History, req.Messages, effective.SystemRole)

	// Selection pass. Candidates are considered in input order; when more
	// than one matches, the last match's prompt defaults win.
	tools := make([]llm.ToolSchema, 0, len(o.builtins)+len(req.Plugins))
	for _, b := range o.builtins {
		tools = append(tools, b.Schema)
	}
	runtimes := make(map[string]base.PluginRuntime)
	var selectedNames []string
	for _, p := range req.Plugins {
		if !p.Selected(promptText, req.Messages) {
			continue
		}
		prompt := p.Manifest().Spec.Prompt
		if prompt.Model != "" {
			effective.Model = prompt.Model
		}
		if prompt.Temperature != 0 {
			effective.Temperature = prompt.Temperature
		}
		if prompt.MaxTokens != 0 {
			effective.MaxTokens = prompt.MaxTokens
		}
		tools = append(tools, p.BuildToolSchema())
		runtimes[p.FunctionName()] = p
		messages = p.CustomizePrompt(messages)
		selectedNames = append(selectedNames, p.Name())
	}
	turn.model = effective.Model

	first, err := o.chatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       effective.Model,
		Messages:    messages,
		Tools:       tools,
		ToolChoice:  llm.ToolChoiceAuto,
		Temperature: effective.Temperature,
		MaxTokens:   effective.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	turn.first = first

	final := first
	usage := first.Usage
	records := make([]ToolCallRecord, 0)

	if first.HasToolCalls() {
		assistant := first.FirstMessage()
		messages = append(messages, assistant)

		// Dispatch in the order the model returned the calls.
		for _, call := range assistant.ToolCalls {
			output, record, err := o.dispatch(ctx, runtimes, call)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}

		// Second pass: no tools offered, the model produces the final
		// natural-language answer.
		second, err := o.chatCompletion(ctx, &llm.ChatCompletionRequest{
			Model:       effective.Model,
			Messages:    messages,
			Temperature: effective.Temperature,
			MaxTokens:   effective.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		turn.second = second
		final = second
		usage = usage.Add(second.Usage)
	}

	return &TurnResult{
		ID:      final.ID,
		Object:  final.Object,
		Created: final.Created,
		Model:   final.Model,
		Choices: final.Choices,
		Metadata: Metadata{
			RequestID: turn.requestID,
			Provider:  o.provider,
			ToolCalls: records,
			Plugins:   selectedNames,
		},
		Usage: usage,
	}, nil
}

// chatCompletion issues one LLM call, recording the call metric.
func (o *Orchestrator) chatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	resp, err := o.client.ChatCompletion(ctx, req)
	if err != nil {
		promLLMCalls.WithLabelValues(o.provider, "error").Inc()
		return nil, err
	}
	promLLMCalls.WithLabelValues(o.provider, "success").Inc()
	return resp, nil
}

// dispatch resolves one tool call to a built-in or a selected plugin
// runtime and executes it. A function name that resolves to neither was
// offered but cannot be serviced; that is fatal for the turn.
func (o *Orchestrator) dispatch(ctx context.Context, runtimes map[string]base.PluginRuntime, call llm.ToolCall) (string, ToolCallRecord, error) {
	name := call.Function.Name
	record := ToolCallRecord{Function: name}

	args, err := parseCallArguments(call.Function)
	if err != nil {
		return "", record, err
	}

	if builtin, ok := o.byName[name]; ok {
		record.Builtin = true
		output, err := builtin.Execute(ctx, args)
		if err != nil {
			promToolInvocations.WithLabelValues("builtin", "error").Inc()
			return "", record, fmt.Errorf("built-in tool %q failed: %w", name, err)
		}
		promToolInvocations.WithLabelValues("builtin", "success").Inc()
		return output, record, nil
	}

	runtime, ok := runtimes[name]
	if !ok {
		promToolInvocations.WithLabelValues("plugin", "unresolved").Inc()
		return "", record, &base.IllegalInvocationError{
			Op:      "dispatch",
			Message: fmt.Sprintf("function %q was offered to the model but no runtime can service it", name),
		}
	}

	record.Plugin = runtime.Name()
	output, err := runtime.Execute(ctx, args)
	if err != nil {
		promToolInvocations.WithLabelValues("plugin", "error").Inc()
		return "", record, err
	}
	promToolInvocations.WithLabelValues("plugin", "success").Inc()
	return output, record, nil
}

// parseCallArguments decodes a tool call's JSON arguments payload. Models
// occasionally emit a list of single-key objects instead of one object;
// those merge left-to-right before dispatch.
func parseCallArguments(fn llm.FunctionCall) (map[string]interface{}, error) {
	if fn.Arguments == "" {
		return map[string]interface{}{}, nil
	}
	var raw interface{}
	if err := json.Unmarshal([]byte(fn.Arguments), &raw); err != nil {
		return nil, fmt.Errorf("malformed arguments for function %q: %w", fn.Name, err)
	}
	args, err := base.MergeArgs(raw)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", fn.Name, err)
	}
	return args, nil
}

// effectiveConfig resolves chatbot-level overrides over the provider
// defaults. Zero values fall through.
func (o *Orchestrator) effectiveConfig(chatbot *ChatbotConfig) Defaults {
	effective := o.defaults
	if chatbot == nil {
		return effective
	}
	if chatbot.Model != "" {
		effective.Model = chatbot.Model
	}
	if chatbot.SystemRole != "" {
		effective.SystemRole = chatbot.SystemRole
	}
	if chatbot.Temperature != 0 {
		effective.Temperature = chatbot.Temperature
	}
	if chatbot.MaxTokens != 0 {
		effective.MaxTokens = chatbot.MaxTokens
	}
	return effective
}

func validateTurn(req *TurnRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if req.Session == nil {
		return &ValidationError{Field: "session", Message: "chat session is required"}
	}
	if req.Session.SessionKey == "" {
		return &ValidationError{Field: "session.sessionKey", Message: "session key is required"}
	}
	if req.Session.Account == "" {
		return &ValidationError{Field: "session.account", Message: "account number is required"}
	}
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "at least one prompt message is required"}
	}
	return nil
}

// normalizeMessages assembles the transcript for the first LLM call: prior
// history, then the inbound messages, with exactly one system message at
// the head. Consecutive system messages are merged; a missing system
// message gets the default role injected. The second return value is the
// inbound user text flattened for plugin selection.
func normalizeMessages(history, inbound []llm.Message, defaultSystemRole string) ([]llm.Message, string) {
	merged := make([]llm.Message, 0, len(history)+len(inbound)+1)

	var system string
	appendNonSystem := func(msgs []llm.Message) {
		for _, m := range msgs {
			if m.Role == llm.RoleSystem {
				if system == "" {
					system = m.Content
				} else if m.Content != "" {
					system = system + "\n" + m.Content
				}
				continue
			}
			merged = append(merged, m)
		}
	}
	appendNonSystem(history)
	appendNonSystem(inbound)

	if system == "" {
		system = defaultSystemRole
	}
	out := make([]llm.Message, 0, len(merged)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	out = append(out, merged...)

	var promptText string
	for _, m := range inbound {
		if m.Role != llm.RoleUser {
			continue
		}
		if promptText != "" {
			promptText += "\n"
		}
		promptText += m.Content
	}
	return out, promptText
}
