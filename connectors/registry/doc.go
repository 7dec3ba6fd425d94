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

// Package registry resolves the connection names that sql-class and
// api-class plugin manifests reference. Definitions are account-scoped and
// may be persisted in PostgreSQL so orchestrator replicas share one view;
// live connections are established lazily on first use and pooled for the
// life of the process.
package registry
