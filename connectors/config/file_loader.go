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

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"smarter/platform/connectors/base"
)

// ConfigFile is the root structure of a connection definitions file. It lets
// development and self-hosted deployments declare connections without a
// database.
type ConfigFile struct {
	Version     string                          `yaml:"version"`
	Connections map[string]ConnectionFileConfig `yaml:"connections,omitempty"`
}

// ConnectionFileConfig is one connection definition in the file.
type ConnectionFileConfig struct {
	Type          string                 `yaml:"type"`
	Enabled       bool                   `yaml:"enabled"`
	Description   string                 `yaml:"description,omitempty"`
	ConnectionURL string                 `yaml:"connection_url,omitempty"`
	Credentials   map[string]string      `yaml:"credentials,omitempty"`
	Options       map[string]interface{} `yaml:"options,omitempty"`
	TimeoutMs     int                    `yaml:"timeout_ms,omitempty"`
	AccountNumber string                 `yaml:"account_number,omitempty"`
}

// YAMLFileLoader loads connection definitions from a YAML file.
type YAMLFileLoader struct {
	filePath string
	config   *ConfigFile
}

// NewYAMLFileLoader creates a loader and parses the file.
func NewYAMLFileLoader(filePath string) (*YAMLFileLoader, error) {
	loader := &YAMLFileLoader{filePath: filePath}
	if err := loader.Reload(); err != nil {
		return nil, err
	}
	return loader, nil
}

// Reload re-reads and re-parses the file.
func (l *YAMLFileLoader) Reload() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg ConfigFile
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", l.filePath, err)
	}

	l.config = &cfg
	return nil
}

// Connections returns the enabled connection definitions from the file.
func (l *YAMLFileLoader) Connections() []*base.Config {
	if l.config == nil {
		return nil
	}

	configs := make([]*base.Config, 0, len(l.config.Connections))
	for name, fc := range l.config.Connections {
		if !fc.Enabled {
			continue
		}

		timeout := 30 * time.Second
		if fc.TimeoutMs > 0 {
			timeout = time.Duration(fc.TimeoutMs) * time.Millisecond
		}

		configs = append(configs, &base.Config{
			Name:          name,
			Type:          fc.Type,
			ConnectionURL: fc.ConnectionURL,
			Credentials:   fc.Credentials,
			Options:       fc.Options,
			Timeout:       timeout,
			AccountNumber: fc.AccountNumber,
		})
	}
	return configs
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
