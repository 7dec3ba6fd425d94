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

// Package sqlquery implements the plugin runtime variant that renders a
// manifest SQL template with LLM-supplied arguments and runs it through a
// named SQL connection.
package sqlquery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	connbase "smarter/platform/connectors/base"
	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
)

// MaxRows caps the number of rows any sql plugin may return, whatever its
// manifest declares. Oversized result sets blow the model's context window
// long before they reach this cap.
const MaxRows = 1000

// ConnectionResolver resolves the manifest's connection reference to a live
// SQL connection.
type ConnectionResolver interface {
	GetSQL(ctx context.Context, account, name string) (connbase.SQLConnection, error)
}

// Plugin renders and executes manifest-declared SQL.
type Plugin struct {
	*base.Core
	connections ConnectionResolver
}

// New materializes a sql runtime from its definition.
func New(def *manifest.Manifest, id int64, accountNumber string, connections ConnectionResolver) (*Plugin, error) {
	if def.Metadata.PluginClass != manifest.ClassSQL {
		return nil, &base.IllegalInvocationError{
			Op:      "sqlquery.New",
			Message: fmt.Sprintf("manifest declares class %q", def.Metadata.PluginClass),
		}
	}
	if connections == nil {
		return nil, &base.IllegalInvocationError{
			Op:      "sqlquery.New",
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

// Execute validates the arguments, renders the SQL template, runs it through
// the referenced connection, and returns the result rows as JSON. An empty
// result set returns the empty string.
func (p *Plugin) Execute(ctx context.Context, functionArgs map[string]interface{}) (string, error) {
	if err := p.ValidateArgs(functionArgs); err != nil {
		return "", err
	}

	data := p.Manifest().Spec.Data
	statement, err := RenderStatement(data.SQLQuery, functionArgs)
	if err != nil {
		return "", base.NewExecutionError(p.Name(), "failed to render SQL: %v", err)
	}

	conn, err := p.connections.GetSQL(ctx, p.AccountNumber(), data.ConnectionRef)
	if err != nil {
		return "", &base.PluginExecutionError{
			Plugin:  p.Name(),
			Message: fmt.Sprintf("connection %q is unavailable", data.ConnectionRef),
			Cause:   err,
		}
	}

	result, err := conn.Query(ctx, statement, effectiveLimit(data.Limit))
	if err != nil {
		return "", &base.PluginExecutionError{
			Plugin:  p.Name(),
			Message: "query failed",
			Cause:   err,
		}
	}

	if result.RowCount == 0 {
		return "", nil
	}

	payload, err := json.Marshal(result.Rows)
	if err != nil {
		return "", &base.PluginExecutionError{
			Plugin:  p.Name(),
			Message: "result rows are not serializable",
			Cause:   err,
		}
	}
	return string(payload), nil
}

// effectiveLimit clamps the declared row limit to the platform cap.
func effectiveLimit(declared int) int {
	if declared <= 0 || declared > MaxRows {
		return MaxRows
	}
	return declared
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RenderStatement substitutes {param} placeholders in a SQL template with
// SQL-literal renderings of the supplied arguments, then normalizes the
// statement: whitespace runs collapse to single spaces, stray backslashes
// are dropped, and a trailing semicolon is appended when the template lacks
// one. A placeholder with no corresponding argument is an error.
func RenderStatement(template string, args map[string]interface{}) (string, error) {
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := args[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return sqlLiteral(value)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("no argument supplied for placeholder(s): %s", strings.Join(missing, ", "))
	}

	rendered = strings.ReplaceAll(rendered, "\\", "")
	rendered = strings.Join(strings.Fields(rendered), " ")
	return strings.TrimRight(rendered, " ;") + ";", nil
}

// sqlLiteral renders a Go value as a SQL literal. Strings are quoted with
// embedded single quotes doubled; nil renders as NULL; everything else is
// stringified.
func sqlLiteral(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		// JSON numbers decode as float64; render whole values without a
		// fractional part.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
	}
}
