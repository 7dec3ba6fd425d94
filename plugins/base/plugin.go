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

// Package base defines the polymorphic plugin runtime contract shared by the
// static, sql and api variants, plus the selection and prompt-customization
// behavior common to all three. Variants embed Core and supply their own
// BuildToolSchema and Execute.
package base

import (
	"context"
	"fmt"

	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/manifest"
	"smarter/platform/shared/textmatch"
)

// PlatformName prefixes every plugin function name offered to the LLM.
const PlatformName = "smarter"

// PluginRuntime is the execution strategy behind one registered plugin.
// A runtime instance lives for at most one chat turn cycle: it latches its
// selection state (UNSELECTED -> SELECTED) and may then be executed zero or
// more times as the model requests tool calls.
//
// Implementations are a closed set discriminated by manifest.PluginClass:
// static, sql, api.
type PluginRuntime interface {
	// Name returns the plugin's account-scoped name.
	Name() string

	// ID returns the stable numeric plugin id assigned by the repository.
	ID() int64

	// Class returns the runtime variant discriminator.
	Class() manifest.PluginClass

	// Manifest returns the definition this runtime was materialized from.
	Manifest() *manifest.Manifest

	// FunctionName returns the deterministic, globally-unique tool name
	// offered to the LLM, derived from the numeric plugin id.
	FunctionName() string

	// BuildToolSchema returns the OpenAI function-calling schema for this
	// plugin.
	BuildToolSchema() llm.ToolSchema

	// Selected decides whether this plugin applies to the given prompt
	// and/or message history. A positive result latches: subsequent calls
	// return true regardless of input. A negative result does not latch.
	Selected(promptText string, messages []llm.Message) bool

	// SelectionDecision returns the recorded decision after a positive
	// Selected call, or nil while unselected.
	SelectionDecision() *SelectionDecision

	// CustomizePrompt appends this plugin's configured system role to the
	// transcript's system message, returning a new slice. The input is not
	// mutated.
	CustomizePrompt(messages []llm.Message) []llm.Message

	// Execute runs the plugin with the arguments supplied by the LLM tool
	// call and returns a string payload. Every failure mode surfaces as a
	// *PluginExecutionError.
	Execute(ctx context.Context, functionArgs map[string]interface{}) (string, error)
}

// SelectionDecision records why a plugin was offered to the LLM. It is a
// transient value, consumed for history logging and turn metadata.
type SelectionDecision struct {
	Plugin            string             `json:"plugin"`
	MatchedSearchTerm string             `json:"matched_search_term,omitempty"`
	MatchedStrategy   textmatch.Strategy `json:"matched_strategy,omitempty"`
}

// FunctionNameFor derives the tool name for a plugin id:
// "<platform>_plugin_<10-digit-zero-padded-id>". This is part of the wire
// contract with the LLM provider.
func FunctionNameFor(id int64) string {
	return fmt.Sprintf("%s_plugin_%010d", PlatformName, id)
}
