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

import (
	"time"

	"gopkg.in/yaml.v3"
)

// APIVersion is the manifest schema version accepted by this release.
const APIVersion = "smarter.sh/v1"

// Kind identifies the manifest document type.
type Kind string

// Manifest kinds, one per plugin class.
const (
	KindStaticPlugin Kind = "StaticPlugin"
	KindSqlPlugin    Kind = "SqlPlugin"
	KindApiPlugin    Kind = "ApiPlugin"
)

// PluginClass discriminates which runtime variant owns a plugin definition.
// It is immutable once the plugin is created.
type PluginClass string

// Recognized plugin classes.
const (
	ClassStatic PluginClass = "static"
	ClassSQL    PluginClass = "sql"
	ClassAPI    PluginClass = "api"
)

// KindForClass returns the manifest kind corresponding to a plugin class.
func KindForClass(class PluginClass) Kind {
	switch class {
	case ClassStatic:
		return KindStaticPlugin
	case ClassSQL:
		return KindSqlPlugin
	case ClassAPI:
		return KindApiPlugin
	}
	return ""
}

// SelectorDirective governs whether a plugin is offered for a given prompt.
type SelectorDirective string

// Selector directives.
const (
	// DirectiveSearchTerms selects the plugin when the prompt refers to any
	// of the configured search terms.
	DirectiveSearchTerms SelectorDirective = "searchTerms"

	// DirectiveAlways selects the plugin for every prompt.
	DirectiveAlways SelectorDirective = "always"

	// DirectiveLLM defers the selection decision to the model itself: the
	// tool is always offered, the model decides whether to call it.
	DirectiveLLM SelectorDirective = "llm"
)

// ParamType enumerates the recognized parameter value kinds.
type ParamType string

// The seven recognized parameter types.
const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
	TypeList    ParamType = "list"
	TypeDict    ParamType = "dict"
	TypeNull    ParamType = "null"
)

// Manifest is the declarative, versioned definition of a plugin. The YAML
// field names are the wire contract; they double as the static camelCase to
// Go field mapping table, declared once here instead of being recased at
// runtime.
type Manifest struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       Kind     `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`

	// Status is read-only and only present when the manifest represents a
	// persisted plugin.
	Status *Status `yaml:"status,omitempty" json:"status,omitempty"`
}

// Metadata carries the identifying fields of a plugin.
type Metadata struct {
	Name        string      `yaml:"name" json:"name"`
	PluginClass PluginClass `yaml:"pluginClass" json:"pluginClass"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string      `yaml:"version,omitempty" json:"version,omitempty"`
	Tags        []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Spec holds the behavioral configuration of a plugin.
type Spec struct {
	Selector Selector `yaml:"selector" json:"selector"`
	Prompt   Prompt   `yaml:"prompt" json:"prompt"`
	Data     DataSpec `yaml:"data" json:"data"`
}

// Selector is the rule governing whether the plugin is offered for a prompt.
type Selector struct {
	Directive   SelectorDirective `yaml:"directive" json:"directive"`
	SearchTerms []string          `yaml:"searchTerms,omitempty" json:"searchTerms,omitempty"`
}

// Prompt holds the defaults applied to the chat turn when this plugin is
// selected, overriding the orchestrator's own defaults.
type Prompt struct {
	SystemRole  string  `yaml:"systemRole,omitempty" json:"systemRole,omitempty"`
	Model       string  `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"maxTokens" json:"maxTokens"`
}

// DataSpec is the class-specific payload. Exactly one payload shape may be
// populated, matching Metadata.PluginClass; Validate enforces this.
type DataSpec struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// static
	StaticData map[string]interface{} `yaml:"staticData,omitempty" json:"staticData,omitempty"`

	// sql and api
	ConnectionRef string      `yaml:"connectionRef,omitempty" json:"connectionRef,omitempty"`
	Parameters    []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	// sql only
	SQLQuery   string      `yaml:"sqlQuery,omitempty" json:"sqlQuery,omitempty"`
	TestValues []TestValue `yaml:"testValues,omitempty" json:"testValues,omitempty"`
	Limit      int         `yaml:"limit,omitempty" json:"limit,omitempty"`

	// api only
	Endpoint string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body     string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// Parameter declares a named input the LLM may supply when invoking the
// plugin as a tool.
type Parameter struct {
	Name        string      `yaml:"name" json:"name"`
	Type        ParamType   `yaml:"type" json:"type"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Enum        []string    `yaml:"enum,omitempty" json:"enum,omitempty"`
	Default     interface{} `yaml:"default,omitempty" json:"default,omitempty"`
}

// TestValue is a sample parameter binding used to smoke-test a SQL plugin.
type TestValue struct {
	Name  string      `yaml:"name" json:"name"`
	Value interface{} `yaml:"value" json:"value"`
}

// Status is the read-only block describing the persisted instance.
type Status struct {
	ID            int64     `yaml:"id" json:"id"`
	AccountNumber string    `yaml:"accountNumber" json:"accountNumber"`
	Username      string    `yaml:"username" json:"username"`
	Created       time.Time `yaml:"created" json:"created"`
	Modified      time.Time `yaml:"modified" json:"modified"`
}

// Parse decodes a YAML (or JSON, which is a YAML subset) manifest document
// and validates it. Returns a *ConfigurationError on any schema violation.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, &ConfigurationError{
			Field:   "Plugin",
			Message: "manifest is not well-formed YAML/JSON",
			Cause:   err,
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal serializes the manifest back to YAML, including the status block
// when present. It is the inverse of Parse.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// HasTag reports whether the manifest carries the given tag.
func (m *Manifest) HasTag(tag string) bool {
	for _, t := range m.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the manifest via YAML round-trip. Used by
// repository clone so the copy shares no sub-structure with the original.
func (m *Manifest) Clone() (*Manifest, error) {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out Manifest
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
