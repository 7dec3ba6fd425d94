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

// Package llm defines the OpenAI-compatible chat-completion wire types and
// the client interface the orchestrator speaks to every provider through.
// GoogleAI and MetaAI are reached via their OpenAI-compatible endpoints, so
// one request/response shape covers all three vendors.
//
// The tool schema types are a wire-format contract with the providers and
// must be reproduced exactly for interoperability.
package llm

import (
	"encoding/json"
	"fmt"
)

// Message roles in the chat-completion protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolChoiceAuto lets the model decide whether to call any of the offered
// tools.
const ToolChoiceAuto = "auto"

// Message is one entry in a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the function name on tool-role messages.
	Name string `json:"name,omitempty"`
}

// ToolCall is a structured request emitted by the model in its first
// response, naming a function and arguments it wants invoked before
// producing a final answer.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the JSON arguments payload into a map.
func (f FunctionCall) ParseArguments() (map[string]interface{}, error) {
	if f.Arguments == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(f.Arguments), &args); err != nil {
		return nil, fmt.Errorf("malformed arguments for function %q: %w", f.Name, err)
	}
	return args, nil
}

// ToolSchema is the OpenAI function-calling description of a callable
// capability, passed to the model so it can request invocation.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema describes one callable function.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is the JSON-schema object describing a function's
// parameters.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single function parameter.
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// NewToolSchema builds a function tool schema with the fixed wire shape.
func NewToolSchema(name, description string, params ParameterSchema) ToolSchema {
	if params.Type == "" {
		params.Type = "object"
	}
	if params.Properties == nil {
		params.Properties = map[string]PropertySchema{}
	}
	if params.Required == nil {
		params.Required = []string{}
	}
	return ToolSchema{
		Type: "function",
		Function: FunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// ChatCompletionRequest is one synchronous chat-completion call.
type ChatCompletionRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse is the provider's reply.
type ChatCompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

// Choice is one completion candidate. The orchestrator only ever consumes
// the first.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add merges another usage record into this one. Used to account both
// iterations of a two-pass turn.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// FirstMessage returns the message of the first choice, or a zero Message
// when the response carries no choices.
func (r *ChatCompletionResponse) FirstMessage() Message {
	if len(r.Choices) == 0 {
		return Message{}
	}
	return r.Choices[0].Message
}

// HasToolCalls reports whether the first choice requests tool invocations.
func (r *ChatCompletionResponse) HasToolCalls() bool {
	return len(r.FirstMessage().ToolCalls) > 0
}
