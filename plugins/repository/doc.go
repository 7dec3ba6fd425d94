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

// Package repository stores and retrieves plugin definitions per account.
//
// The Repository facade validates manifests before every write, keeps
// creation idempotent by name, and notifies registered listeners around
// deletions. Storage is pluggable through the Store interface, with
// PostgreSQL for production and an in-memory store for development and
// tests. The Materializer turns stored records into executable runtimes,
// one fresh instance per chat turn cycle.
package repository
