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

package manifest

import "fmt"

// MaxPromptTokens is the upper bound for Prompt.MaxTokens.
const MaxPromptTokens = 4096

// Validate checks the manifest against the full schema: top-level shape,
// kind/class consistency, selector and prompt invariants, and the
// class-specific payload rules. The first violation found is returned as a
// *ConfigurationError naming the offending field path.
func (m *Manifest) Validate() error {
	if m.APIVersion != APIVersion {
		return newFieldError("Plugin.apiVersion",
			"unsupported apiVersion %q (expected %q)", m.APIVersion, APIVersion)
	}

	if err := m.validateMetadata(); err != nil {
		return err
	}
	if err := m.validateSelector(); err != nil {
		return err
	}
	if err := m.validatePrompt(); err != nil {
		return err
	}
	if err := m.validateData(); err != nil {
		return err
	}
	return validateParameters(m.Spec.Data.Parameters)
}

func (m *Manifest) validateMetadata() error {
	if m.Metadata.Name == "" {
		return newFieldError("Plugin.metadata.name", "name is required")
	}

	switch m.Metadata.PluginClass {
	case ClassStatic, ClassSQL, ClassAPI:
	default:
		return newFieldError("Plugin.metadata.pluginClass",
			"unrecognized pluginClass %q (expected one of 'static', 'sql', 'api')",
			m.Metadata.PluginClass)
	}

	if want := KindForClass(m.Metadata.PluginClass); m.Kind != want {
		return newFieldError("Plugin.kind",
			"kind %q does not match pluginClass %q (expected kind %q)",
			m.Kind, m.Metadata.PluginClass, want)
	}
	return nil
}

func (m *Manifest) validateSelector() error {
	sel := m.Spec.Selector
	switch sel.Directive {
	case DirectiveSearchTerms:
		if len(sel.SearchTerms) == 0 {
			return newFieldError("Plugin.spec.selector.searchTerms",
				"searchTerms must be non-empty when Plugin.spec.selector.directive is 'searchTerms'")
		}
	case DirectiveAlways, DirectiveLLM:
	default:
		return newFieldError("Plugin.spec.selector.directive",
			"unrecognized directive %q (expected one of 'searchTerms', 'always', 'llm')",
			sel.Directive)
	}
	return nil
}

func (m *Manifest) validatePrompt() error {
	p := m.Spec.Prompt
	if p.Temperature < 0 || p.Temperature > 1 {
		return newFieldError("Plugin.spec.prompt.temperature",
			"temperature %v is out of range [0, 1]", p.Temperature)
	}
	if p.MaxTokens < 0 || p.MaxTokens > MaxPromptTokens {
		return newFieldError("Plugin.spec.prompt.maxTokens",
			"maxTokens %d is out of range [0, %d]", p.MaxTokens, MaxPromptTokens)
	}
	return nil
}

// validateData enforces that exactly the payload matching the plugin class
// is populated. A payload belonging to a different class is a configuration
// error, never silently ignored.
func (m *Manifest) validateData() error {
	d := m.Spec.Data

	switch m.Metadata.PluginClass {
	case ClassStatic:
		if len(d.StaticData) == 0 {
			return newFieldError("Plugin.spec.data.staticData",
				"Plugin.spec.data.staticData is required when Plugin.metadata.pluginClass is 'static'")
		}
		if d.ConnectionRef != "" || d.SQLQuery != "" || d.Endpoint != "" || len(d.Parameters) > 0 {
			return newFieldError("Plugin.spec.data",
				"sql/api payload fields are not allowed when Plugin.metadata.pluginClass is 'static'")
		}

	case ClassSQL:
		if d.ConnectionRef == "" {
			return newFieldError("Plugin.spec.data.connectionRef",
				"Plugin.spec.data.connectionRef is required when Plugin.metadata.pluginClass is 'sql'")
		}
		if d.SQLQuery == "" {
			return newFieldError("Plugin.spec.data.sqlQuery",
				"Plugin.spec.data.sqlQuery is required when Plugin.metadata.pluginClass is 'sql'")
		}
		if d.Limit < 0 {
			return newFieldError("Plugin.spec.data.limit", "limit must be positive")
		}
		if len(d.StaticData) > 0 || d.Endpoint != "" {
			return newFieldError("Plugin.spec.data",
				"static/api payload fields are not allowed when Plugin.metadata.pluginClass is 'sql'")
		}

	case ClassAPI:
		if d.ConnectionRef == "" {
			return newFieldError("Plugin.spec.data.connectionRef",
				"Plugin.spec.data.connectionRef is required when Plugin.metadata.pluginClass is 'api'")
		}
		if d.Endpoint == "" {
			return newFieldError("Plugin.spec.data.endpoint",
				"Plugin.spec.data.endpoint is required when Plugin.metadata.pluginClass is 'api'")
		}
		if len(d.StaticData) > 0 || d.SQLQuery != "" {
			return newFieldError("Plugin.spec.data",
				"static/sql payload fields are not allowed when Plugin.metadata.pluginClass is 'api'")
		}
	}
	return nil
}

func validateParameters(params []Parameter) error {
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		field := fmt.Sprintf("Plugin.spec.data.parameters[%d]", i)

		if p.Name == "" {
			return newFieldError(field+".name", "parameter name is required")
		}
		if seen[p.Name] {
			return newFieldError(field+".name", "duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeList, TypeDict, TypeNull:
		default:
			return newFieldError(field+".type",
				"unrecognized parameter type %q for parameter %q", p.Type, p.Name)
		}

		if p.Default != nil && len(p.Enum) > 0 {
			if !enumContains(p.Enum, p.Default) {
				return newFieldError(field+".default",
					"default %v for parameter %q is not a member of its enum %v",
					p.Default, p.Name, p.Enum)
			}
		}
	}
	return nil
}

// enumContains reports whether the stringified default value is one of the
// enum members.
func enumContains(enum []string, value interface{}) bool {
	s := fmt.Sprint(value)
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}
