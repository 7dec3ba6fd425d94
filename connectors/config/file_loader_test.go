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
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfigYAML = `
version: "1"
connections:
  orders-db:
    type: postgres
    enabled: true
    connection_url: "postgres://app:${TEST_DB_PASSWORD}@db:5432/orders"
    timeout_ms: 2000
    account_number: "3141-5926-5359"
  legacy-db:
    type: mysql
    enabled: false
    connection_url: "app:pw@tcp(legacy:3306)/crm"
  weather-api:
    type: http
    enabled: true
    connection_url: "https://api.weather.example.com"
    credentials:
      api_key: "secret:prod/weather#api_key"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connections.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestYAMLFileLoader(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")

	loader, err := NewYAMLFileLoader(writeTestConfig(t))
	if err != nil {
		t.Fatalf("NewYAMLFileLoader: %v", err)
	}

	connections := loader.Connections()
	// legacy-db is disabled
	if len(connections) != 2 {
		t.Fatalf("len(connections) = %d, want 2", len(connections))
	}

	byName := map[string]bool{}
	for _, c := range connections {
		byName[c.Name] = true
		if c.Name == "orders-db" {
			if c.ConnectionURL != "postgres://app:hunter2@db:5432/orders" {
				t.Errorf("env var not expanded: %q", c.ConnectionURL)
			}
			if c.Timeout != 2*time.Second {
				t.Errorf("timeout = %v", c.Timeout)
			}
			if c.AccountNumber != "3141-5926-5359" {
				t.Errorf("account = %q", c.AccountNumber)
			}
		}
	}
	if !byName["weather-api"] {
		t.Error("weather-api missing")
	}
	if byName["legacy-db"] {
		t.Error("disabled connection should be excluded")
	}
}

func TestYAMLFileLoader_MissingFile(t *testing.T) {
	if _, err := NewYAMLFileLoader("/nonexistent/connections.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandEnvVars_Unset(t *testing.T) {
	got := expandEnvVars("a=${DEFINITELY_NOT_SET_XYZ}")
	if got != "a=" {
		t.Errorf("got %q", got)
	}
}
