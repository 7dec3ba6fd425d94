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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func captureOutput(fn func()) string {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer log.SetOutput(nil)
	fn()
	return buf.String()
}

func TestNew(t *testing.T) {
	l := New("orchestrator")
	if l.Component != "orchestrator" {
		t.Errorf("Component = %q, want %q", l.Component, "orchestrator")
	}
	if l.InstanceID == "" {
		t.Error("InstanceID should never be empty")
	}
	if l.Container == "" {
		t.Error("Container should never be empty")
	}
}

func TestLog_JSONShape(t *testing.T) {
	l := New("repository")

	out := captureOutput(func() {
		l.Info("acct-1234", "session-9", "plugin created", map[string]interface{}{
			"plugin": "weather",
		})
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v (output: %s)", err, out)
	}

	if entry.Level != INFO {
		t.Errorf("Level = %q, want INFO", entry.Level)
	}
	if entry.Component != "repository" {
		t.Errorf("Component = %q, want repository", entry.Component)
	}
	if entry.Account != "acct-1234" {
		t.Errorf("Account = %q, want acct-1234", entry.Account)
	}
	if entry.SessionKey != "session-9" {
		t.Errorf("SessionKey = %q, want session-9", entry.SessionKey)
	}
	if entry.Fields["plugin"] != "weather" {
		t.Errorf("Fields[plugin] = %v, want weather", entry.Fields["plugin"])
	}
}

func TestErrorWithCode(t *testing.T) {
	l := New("gateway")

	out := captureOutput(func() {
		l.ErrorWithCode("acct-1", "", "turn failed", 500, errTest, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	if entry.Level != ERROR {
		t.Errorf("Level = %q, want ERROR", entry.Level)
	}
	if entry.Fields["status_code"] != float64(500) {
		t.Errorf("Fields[status_code] = %v, want 500", entry.Fields["status_code"])
	}
	if entry.Fields["error"] != errTest.Error() {
		t.Errorf("Fields[error] = %v, want %q", entry.Fields["error"], errTest.Error())
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("orchestrator")

	out := captureOutput(func() {
		l.InfoWithDuration("acct-1", "s-1", "turn completed", 42.5, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	if entry.Fields["duration_ms"] != 42.5 {
		t.Errorf("Fields[duration_ms] = %v, want 42.5", entry.Fields["duration_ms"])
	}
}

var errTest = &testError{}

type testError struct{}

func (e *testError) Error() string { return "boom" }
