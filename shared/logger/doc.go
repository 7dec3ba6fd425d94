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

/*
Package logger provides structured JSON logging with multi-tenant support
for Smarter platform components.

# Overview

The logger outputs single-line JSON to stdout, making logs easily consumable
by CloudWatch, ELK, or any other log aggregation system.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (orchestrator, repository, gateway, ...)
  - Instance ID and container name (for distributed tracing)
  - Account number (for multi-tenant isolation)
  - Session key (for chat-turn correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("orchestrator")

Log messages with account and session context:

	log.Info("3141-5926-5358", "session-456", "Chat turn started", map[string]interface{}{
	    "provider": "openai",
	})

Log errors with status codes:

	log.ErrorWithCode("3141-5926-5358", "session-456", "Turn failed", 500, err, nil)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
