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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"smarter/platform/orchestrator/llm"
)

// BuiltinTool is a function the orchestrator offers on every turn,
// independent of the account's registered plugins.
type BuiltinTool struct {
	Schema  llm.ToolSchema
	Execute func(ctx context.Context, args map[string]interface{}) (string, error)
}

// WeatherFunctionName is the built-in weather tool's function name.
const WeatherFunctionName = "get_current_weather"

// weatherTool returns the built-in current-weather tool. The payload is
// canned demonstration data; the tool exists to exercise the tool-calling
// protocol on fresh installs before any plugin is registered.
func weatherTool() BuiltinTool {
	schema := llm.NewToolSchema(WeatherFunctionName,
		"Get the current weather in a given location",
		llm.ParameterSchema{
			Properties: map[string]llm.PropertySchema{
				"location": {
					Type:        "string",
					Description: "The city and state, e.g. San Francisco, CA",
				},
				"unit": {
					Type: "string",
					Enum: []string{"celsius", "fahrenheit"},
				},
			},
			Required: []string{"location"},
		})
	return BuiltinTool{
		Schema:  schema,
		Execute: executeWeather,
	}
}

func executeWeather(ctx context.Context, args map[string]interface{}) (string, error) {
	location, _ := args["location"].(string)
	if location == "" {
		return "", fmt.Errorf("weather tool requires a location")
	}
	unit, _ := args["unit"].(string)
	if unit == "" {
		unit = "fahrenheit"
	}

	temperature := 72
	if strings.EqualFold(unit, "celsius") {
		temperature = 22
	}

	payload, err := json.Marshal(map[string]interface{}{
		"location":    location,
		"temperature": temperature,
		"unit":        unit,
		"forecast":    []string{"sunny", "windy"},
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
