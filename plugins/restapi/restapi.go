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

// Package restapi implements the plugin runtime variant that renders an
// HTTP request from the manifest's endpoint, headers and body templates and
// performs it through a named API connection.
package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	connbase "smarter/platform/connectors/base"
	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
)

// ConnectionResolver resolves the manifest's connection reference to a live
// API connection.
type ConnectionResolver interface {
	GetAPI(ctx context.Context, account, name string) (connbase.APIConnection, error)
}

// Plugin renders and performs manifest-declared HTTP requests.
type Plugin struct {
	*base.Core
	connections ConnectionResolver
}

// New materializes an api runtime from its definition.
func New(def *manifest.Manifest, id int64, accountNumber string, connections ConnectionResolver) (*Plugin, error) {
	if def.Metadata.PluginClass != manifest.ClassAPI {
		return nil, &base.IllegalInvocationError{
			Op:      "restapi.New",
			Message: fmt.Sprintf("manifest declares class %q", def.Metadata.PluginClass),
		}
	}
	if connections == nil {
		return nil, &base.IllegalInvocationError{
			Op:      "restapi.New",
			Message: "connection resolver is required",
		}
	}
	return &Plugin{
		Core:        base.NewCore(def, id, accountNumber),
		connections: connections,
	}, nil
}

// BuildToolSchema exposes the manifest's declared parameters.
func (p *Plugin) BuildToolSchema() llm.ToolSchema {
	properties, required := p.PropertiesSchema()
	return llm.NewToolSchema(p.FunctionName(), p.Manifest().Metadata.Description, llm.ParameterSchema{
		Properties: properties,
		Required:   required,
	})
}

// Execute validates the arguments, renders the endpoint, headers and body,
// performs the exchange, and returns the response body. A non-2xx response
// returns a JSON error envelope as the payload rather than failing the
// turn: the model can read it and explain the failure.
func (p *Plugin) Execute(ctx context.Context, functionArgs map[string]interface{}) (string, error) {
	if err := p.ValidateArgs(functionArgs); err != nil {
		return "", err
	}

	data := p.Manifest().Spec.Data

	endpoint, err := renderTemplate(data.Endpoint, functionArgs, url.QueryEscape)
	if err != nil {
		return "", base.NewExecutionError(p.Name(), "failed to render endpoint: %v", err)
	}

	method := "GET"
	headers := make(map[string]string, len(data.Headers))
	for name, value := range data.Headers {
		rendered, err := renderTemplate(value, functionArgs, nil)
		if err != nil {
			return "", base.NewExecutionError(p.Name(), "failed to render header %q: %v", name, err)
		}
		headers[name] = rendered
	}

	var body []byte
	if data.Body != "" {
		method = "POST"
		rendered, err := renderTemplate(data.Body, functionArgs, jsonEscape)
		if err != nil {
			return "", base.NewExecutionError(p.Name(), "failed to render body: %v", err)
		}
		body = []byte(rendered)
	}

	conn, err := p.connections.GetAPI(ctx, p.AccountNumber(), data.ConnectionRef)
	if err != nil {
		return "", &base.PluginExecutionError{
			Plugin:  p.Name(),
			Message: fmt.Sprintf("connection %q is unavailable", data.ConnectionRef),
			Cause:   err,
		}
	}

	result, err := conn.Do(ctx, &connbase.APIRequest{
		Method:  method,
		Path:    endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return "", &base.PluginExecutionError{
			Plugin:  p.Name(),
			Message: "request failed",
			Cause:   err,
		}
	}

	if !result.OK() {
		envelope, _ := json.Marshal(map[string]interface{}{
			"error":       true,
			"status_code": result.StatusCode,
			"detail":      string(result.Body),
		})
		return string(envelope), nil
	}

	return string(result.Body), nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// renderTemplate substitutes {param} placeholders with stringified argument
// values, applying escape when set. A placeholder with no corresponding
// argument is an error.
func renderTemplate(template string, args map[string]interface{}, escape func(string) string) (string, error) {
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := args[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		s := stringify(value)
		if escape != nil {
			s = escape(s)
		}
		return s
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("no argument supplied for placeholder(s): %s", strings.Join(missing, ", "))
	}
	return rendered, nil
}

// stringify renders an argument value for template substitution. JSON
// numbers that are whole render without a fractional part.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprint(v)
	}
}

// jsonEscape escapes a value for embedding inside a JSON string literal in
// a body template.
func jsonEscape(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return s
	}
	// Trim the surrounding quotes added by Marshal.
	return string(encoded[1 : len(encoded)-1])
}
