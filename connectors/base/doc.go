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

// Package base defines the connection contracts that sql-class and api-class
// plugins execute against: the shared lifecycle interface, the SQLConnection
// and APIConnection capability interfaces, result types, and the SSRF and
// log-injection guards applied to outbound plugin traffic.
package base
