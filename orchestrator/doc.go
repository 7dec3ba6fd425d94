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

// Package orchestrator runs one chat turn against an LLM provider using the
// two-pass tool-calling protocol.
//
// A turn proceeds linearly with no backtracking: validate inputs, resolve
// the effective model configuration (chatbot overrides beat provider
// defaults, a selected plugin's prompt defaults beat both), normalize the
// transcript, run the plugin selection pass, then issue the first
// chat-completion call offering the built-in tools plus every selected
// plugin's tool schema. If the model requests tool calls, each one is
// dispatched to its built-in or plugin runtime in the order the model chose
// and a second call produces the final answer from the tool outputs.
//
// Every failure inside the protocol is caught at the turn boundary,
// classified against a fixed error-class table and returned as a structured
// envelope carrying the raw LLM responses obtained so far. The orchestrator
// performs no retries; a single LLM call failure ends the turn.
package orchestrator
