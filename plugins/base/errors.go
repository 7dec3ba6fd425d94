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

package base

import "fmt"

// PluginExecutionError reports a runtime failure inside a plugin's Execute:
// a bad inquiry_type, an argument that violates the declared parameter set,
// a SQL failure, an HTTP failure. It always names the plugin and the failure
// reason. The orchestrator's tool-dispatch pass catches it and ends the turn
// with a failure envelope; it is never silently swallowed.
type PluginExecutionError struct {
	Plugin  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PluginExecutionError) Error() string {
	return fmt.Sprintf("plugin %q execution failed: %s", e.Plugin, e.Message)
}

// Unwrap returns the underlying error.
func (e *PluginExecutionError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates a PluginExecutionError.
func NewExecutionError(plugin, format string, args ...interface{}) *PluginExecutionError {
	return &PluginExecutionError{Plugin: plugin, Message: fmt.Sprintf(format, args...)}
}

// IllegalInvocationError reports a call sequence that violates a
// precondition, e.g. executing a plugin that was never fully materialized.
// It indicates a programmer bug, not a user-correctable condition, and maps
// to a 500-class response.
type IllegalInvocationError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *IllegalInvocationError) Error() string {
	return fmt.Sprintf("illegal invocation of %s: %s", e.Op, e.Message)
}

// NotFoundError reports a plugin or connection lookup miss. It maps to a
// 404-equivalent response.
type NotFoundError struct {
	Resource string // "plugin", "connection", ...
	Name     string
	Account  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("%s %q not found for account %s", e.Resource, e.Name, e.Account)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}
