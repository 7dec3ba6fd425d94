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

// Package static implements the plugin runtime variant whose return data is
// embedded verbatim in the manifest. It is the simplest and most common
// variant: the tool schema exposes a single synthetic "inquiry_type"
// parameter whose enum is the set of top-level keys of the static data, and
// Execute returns the JSON serialization of the addressed subtree.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
)

// InquiryTypeParam is the synthetic parameter every static plugin exposes.
const InquiryTypeParam = "inquiry_type"

// Plugin serves manifest-embedded data keyed by inquiry type.
type Plugin struct {
	*base.Core
}

// New materializes a static runtime from its definition.
func New(def *manifest.Manifest, id int64, accountNumber string) (*Plugin, error) {
	if def.Metadata.PluginClass != manifest.ClassStatic {
		return nil, &base.IllegalInvocationError{
			Op:      "static.New",
			Message: fmt.Sprintf("manifest declares class %q", def.Metadata.PluginClass),
		}
	}
	return &Plugin{Core: base.NewCore(def, id, accountNumber)}, nil
}

// inquiryTypes returns the top-level static data keys in sorted order. The
// ordering keeps the advertised enum deterministic across turns.
func (p *Plugin) inquiryTypes() []string {
	data := p.Manifest().Spec.Data.StaticData
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildToolSchema advertises a single required inquiry_type parameter whose
// enum enumerates the addressable sections of the static data.
func (p *Plugin) BuildToolSchema() llm.ToolSchema {
	return llm.NewToolSchema(p.FunctionName(), p.Manifest().Metadata.Description, llm.ParameterSchema{
		Properties: map[string]llm.PropertySchema{
			InquiryTypeParam: {
				Type:        "string",
				Description: "the section of plugin data to return",
				Enum:        p.inquiryTypes(),
			},
		},
		Required: []string{InquiryTypeParam},
	})
}

// Execute resolves the requested inquiry_type against the static data and
// returns the JSON serialization of the matching value.
func (p *Plugin) Execute(ctx context.Context, functionArgs map[string]interface{}) (string, error) {
	raw, ok := functionArgs[InquiryTypeParam]
	if !ok {
		return "", base.NewExecutionError(p.Name(), "required parameter %q was not supplied", InquiryTypeParam)
	}
	inquiry, ok := raw.(string)
	if !ok {
		return "", base.NewExecutionError(p.Name(), "parameter %q expects a string, got %T", InquiryTypeParam, raw)
	}

	value, ok := p.Manifest().Spec.Data.StaticData[inquiry]
	if !ok {
		return "", base.NewExecutionError(p.Name(),
			"unknown inquiry_type %q, available: %s", inquiry, strings.Join(p.inquiryTypes(), ", "))
	}
	if value == nil {
		return "", base.NewExecutionError(p.Name(), "inquiry_type %q has no data", inquiry)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return "", &base.PluginExecutionError{
			Plugin:  p.Name(),
			Message: fmt.Sprintf("static data for %q is not serializable", inquiry),
			Cause:   err,
		}
	}
	return string(payload), nil
}
