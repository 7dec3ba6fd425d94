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
	"errors"
	"fmt"
	"net/http"

	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
)

// ValidationError reports a missing or malformed turn input. It is raised
// before any LLM call is made and maps to a client error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid chat turn input %q: %s", e.Field, e.Message)
}

// Error class names carried in the failure envelope.
const (
	classValidation        = "ValidationError"
	classConfiguration     = "ConfigurationError"
	classNotFound          = "NotFoundError"
	classPluginExecution   = "PluginExecutionError"
	classIllegalInvocation = "IllegalInvocationError"
	classInternal          = "InternalError"
)

// classifyError maps an error from the turn state machine to the error class
// and HTTP status of the failure envelope. The table is fixed: domain
// validation failures are client errors, everything else is a server error.
func classifyError(err error) (string, int) {
	var (
		validation *ValidationError
		config     *manifest.ConfigurationError
		notFound   *base.NotFoundError
		execution  *base.PluginExecutionError
		illegal    *base.IllegalInvocationError
		api        *llm.APIError
	)
	switch {
	case errors.As(err, &validation):
		return classValidation, http.StatusBadRequest
	case errors.As(err, &config):
		return classConfiguration, http.StatusInternalServerError
	case errors.As(err, &notFound):
		return classNotFound, http.StatusNotFound
	case errors.As(err, &execution):
		return classPluginExecution, http.StatusInternalServerError
	case errors.As(err, &illegal):
		return classIllegalInvocation, http.StatusInternalServerError
	case errors.As(err, &api):
		return classInternal, http.StatusInternalServerError
	default:
		return classInternal, http.StatusInternalServerError
	}
}
