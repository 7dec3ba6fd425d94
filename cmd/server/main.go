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

// Package main is the entry point for the Smarter platform server.
//
// The server hosts the plugin-aware chat orchestrator and the plugin
// definition API:
// - POST /api/v1/chat/{provider} runs one two-pass tool-calling chat turn
// - /api/v1/plugins exposes plugin manifest CRUD per account
// - /metrics exposes Prometheus metrics
//
// Usage:
//
//	./server
//
// See gateway.Run for the environment variables the server reads.
package main

import (
	"smarter/platform/gateway"
)

func main() {
	gateway.Run()
}
