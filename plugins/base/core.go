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

import (
	"fmt"
	"sync"

	"smarter/platform/orchestrator/llm"
	"smarter/platform/plugins/manifest"
	"smarter/platform/shared/textmatch"
)

// Core carries the behavior shared by every plugin runtime variant:
// identity, selection with a one-way positive latch, prompt customization,
// and argument validation against the declared parameter set. Variants embed
// it by composition rather than inheritance.
type Core struct {
	def           *manifest.Manifest
	id            int64
	accountNumber string
	maxEditDist   int

	mu       sync.Mutex
	selected bool
	decision *SelectionDecision
}

// NewCore builds the shared runtime state for a materialized plugin.
func NewCore(def *manifest.Manifest, id int64, accountNumber string) *Core {
	return &Core{
		def:           def,
		id:            id,
		accountNumber: accountNumber,
		maxEditDist:   textmatch.DefaultMaxEditDistance,
	}
}

// Name returns the plugin's account-scoped name.
func (c *Core) Name() string { return c.def.Metadata.Name }

// ID returns the stable numeric plugin id.
func (c *Core) ID() int64 { return c.id }

// Class returns the runtime variant discriminator.
func (c *Core) Class() manifest.PluginClass { return c.def.Metadata.PluginClass }

// Manifest returns the definition this runtime was materialized from.
func (c *Core) Manifest() *manifest.Manifest { return c.def }

// AccountNumber returns the owning account.
func (c *Core) AccountNumber() string { return c.accountNumber }

// FunctionName returns the deterministic tool name offered to the LLM.
func (c *Core) FunctionName() string { return FunctionNameFor(c.id) }

// Selected decides whether this plugin applies to the prompt or message
// history.
//
// The "always" directive applies unconditionally, and the "llm" directive
// always offers the tool and defers the decision to the model. For the
// "searchTerms" directive each term is tested via textmatch.Match, first on
// the prompt text, then on user-role messages. The first match wins and
// latches; a miss does not latch, so a later call with different input may
// still select.
func (c *Core) Selected(promptText string, messages []llm.Message) bool {
	switch c.def.Spec.Selector.Directive {
	case manifest.DirectiveAlways, manifest.DirectiveLLM:
		c.recordDecision(&SelectionDecision{Plugin: c.Name()})
		return true
	}

	c.mu.Lock()
	if c.selected {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	for _, term := range c.def.Spec.Selector.SearchTerms {
		if promptText != "" {
			if strategy, ok := textmatch.Match(promptText, term, c.maxEditDist); ok {
				c.recordDecision(&SelectionDecision{
					Plugin:            c.Name(),
					MatchedSearchTerm: term,
					MatchedStrategy:   strategy,
				})
				return true
			}
		}
		for _, msg := range messages {
			if msg.Role != llm.RoleUser {
				continue
			}
			if strategy, ok := textmatch.Match(msg.Content, term, c.maxEditDist); ok {
				c.recordDecision(&SelectionDecision{
					Plugin:            c.Name(),
					MatchedSearchTerm: term,
					MatchedStrategy:   strategy,
				})
				return true
			}
		}
	}
	return false
}

// recordDecision latches the positive selection state.
func (c *Core) recordDecision(d *SelectionDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		c.selected = true
		c.decision = d
	}
}

// SelectionDecision returns the recorded decision, or nil while unselected.
func (c *Core) SelectionDecision() *SelectionDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decision
}

// CustomizePrompt appends this plugin's configured system role to the
// transcript's system message. The returned slice is new; the input is not
// mutated. When the transcript carries no system message one is prepended.
func (c *Core) CustomizePrompt(messages []llm.Message) []llm.Message {
	extra := c.def.Spec.Prompt.SystemRole
	if extra == "" {
		out := make([]llm.Message, len(messages))
		copy(out, messages)
		return out
	}

	out := make([]llm.Message, len(messages))
	copy(out, messages)

	for i := range out {
		if out[i].Role == llm.RoleSystem {
			if out[i].Content == "" {
				out[i].Content = extra
			} else {
				out[i].Content = out[i].Content + "\n" + extra
			}
			return out
		}
	}
	return append([]llm.Message{{Role: llm.RoleSystem, Content: extra}}, out...)
}

// PropertiesSchema recasts the declared parameter list into the JSON-schema
// properties/required pair of the tool schema. Enum is emitted only when
// declared.
func (c *Core) PropertiesSchema() (map[string]llm.PropertySchema, []string) {
	properties := make(map[string]llm.PropertySchema, len(c.def.Spec.Data.Parameters))
	required := []string{}

	for _, p := range c.def.Spec.Data.Parameters {
		prop := llm.PropertySchema{
			Type:        jsonSchemaType(p.Type),
			Description: p.Description,
		}
		if len(p.Enum) > 0 {
			prop.Enum = append([]string(nil), p.Enum...)
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return properties, required
}

// jsonSchemaType is the static mapping from manifest parameter types to
// JSON-schema type names.
func jsonSchemaType(t manifest.ParamType) string {
	switch t {
	case manifest.TypeString:
		return "string"
	case manifest.TypeInteger:
		return "integer"
	case manifest.TypeFloat:
		return "number"
	case manifest.TypeBoolean:
		return "boolean"
	case manifest.TypeList:
		return "array"
	case manifest.TypeDict:
		return "object"
	case manifest.TypeNull:
		return "null"
	}
	return "string"
}

// ValidateArgs checks the LLM-supplied arguments against the declared
// parameter set: unknown keys, type mismatches, enum violations and missing
// required parameters all fail with a *PluginExecutionError.
func (c *Core) ValidateArgs(args map[string]interface{}) error {
	declared := make(map[string]manifest.Parameter, len(c.def.Spec.Data.Parameters))
	for _, p := range c.def.Spec.Data.Parameters {
		declared[p.Name] = p
	}

	for name, value := range args {
		param, ok := declared[name]
		if !ok {
			return NewExecutionError(c.Name(), "unknown parameter %q", name)
		}
		if err := checkType(param, value); err != nil {
			return &PluginExecutionError{Plugin: c.Name(), Message: err.Error(), Cause: err}
		}
		if len(param.Enum) > 0 && value != nil {
			if !stringInSlice(fmt.Sprint(value), param.Enum) {
				return NewExecutionError(c.Name(),
					"value %v for parameter %q is not a member of its enum %v", value, name, param.Enum)
			}
		}
	}

	for _, p := range c.def.Spec.Data.Parameters {
		if p.Required {
			if _, ok := args[p.Name]; !ok {
				return NewExecutionError(c.Name(), "required parameter %q was not supplied", p.Name)
			}
		}
	}
	return nil
}

// checkType verifies a supplied value against the declared parameter type.
// JSON numbers decode as float64, so integer accepts whole float64 values.
func checkType(param manifest.Parameter, value interface{}) error {
	switch param.Type {
	case manifest.TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %q expects a string, got %T", param.Name, value)
		}
	case manifest.TypeInteger:
		switch v := value.(type) {
		case int, int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("parameter %q expects an integer, got %v", param.Name, v)
			}
		default:
			return fmt.Errorf("parameter %q expects an integer, got %T", param.Name, value)
		}
	case manifest.TypeFloat:
		switch value.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("parameter %q expects a float, got %T", param.Name, value)
		}
	case manifest.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q expects a boolean, got %T", param.Name, value)
		}
	case manifest.TypeList:
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("parameter %q expects a list, got %T", param.Name, value)
		}
	case manifest.TypeDict:
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("parameter %q expects a dict, got %T", param.Name, value)
		}
	case manifest.TypeNull:
		if value != nil {
			return fmt.Errorf("parameter %q expects null, got %T", param.Name, value)
		}
	}
	return nil
}

func stringInSlice(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// MergeArgs flattens the raw tool-call arguments into a single map. The LLM
// occasionally supplies a list of single-key objects; those merge
// left-to-right, later entries winning.
func MergeArgs(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		merged := make(map[string]interface{})
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("argument list entries must be objects, got %T", item)
			}
			for k, val := range m {
				merged[k] = val
			}
		}
		return merged, nil
	default:
		return nil, fmt.Errorf("arguments must be an object or list of objects, got %T", raw)
	}
}
