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
	"context"
	"time"
)

// Connection is the lifecycle contract shared by every connection type a
// plugin's data spec can reference. Concrete connections additionally
// implement SQLConnection or APIConnection.
type Connection interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context, config *Config) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error

	// HealthCheck probes the backing service.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the account-scoped connection name.
	Name() string

	// Type returns the connection kind (postgres, mysql, http).
	Type() string
}

// SQLConnection executes read-only SQL produced by a sql-class plugin. The
// statement arrives fully rendered; there are no positional parameters.
type SQLConnection interface {
	Connection

	// Query runs the statement and returns at most limit rows. A limit of
	// zero means no cap beyond what the statement itself imposes.
	Query(ctx context.Context, statement string, limit int) (*QueryResult, error)
}

// APIConnection performs an HTTP exchange on behalf of an api-class plugin.
type APIConnection interface {
	Connection

	// Do performs the request and returns the response regardless of status
	// code; callers decide how to treat non-2xx responses.
	Do(ctx context.Context, req *APIRequest) (*APIResult, error)
}

// Config holds the stored definition of one connection.
type Config struct {
	Name          string            `json:"name"`           // account-scoped connection name
	Type          string            `json:"type"`           // postgres, mysql, http
	ConnectionURL string            `json:"connection_url"` // DSN or base URL
	Credentials   map[string]string `json:"credentials"`    // resolved secrets
	Options       map[string]interface{} `json:"options"`   // type-specific options
	Timeout       time.Duration     `json:"timeout"`        // per-operation timeout
	AccountNumber string            `json:"account_number"` // owning account
}

// QueryResult is the outcome of an SQL query.
type QueryResult struct {
	Rows       []map[string]interface{} `json:"rows"`
	RowCount   int                      `json:"row_count"`
	Duration   time.Duration            `json:"duration"`
	Connection string                   `json:"connection"`
}

// APIRequest is one rendered HTTP exchange.
type APIRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// APIResult is the outcome of an APIRequest.
type APIResult struct {
	StatusCode int           `json:"status_code"`
	Body       []byte        `json:"body"`
	Duration   time.Duration `json:"duration"`
	Connection string        `json:"connection"`
}

// OK reports whether the exchange completed with a 2xx status.
func (r *APIResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HealthStatus reports the outcome of a connection probe.
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

// ConnectorError wraps failures from connection operations with the
// connection name and operation that produced them.
type ConnectorError struct {
	ConnectionName string
	Operation      string
	Message        string
	Cause          error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectionName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectionName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a ConnectorError.
func NewConnectorError(connectionName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectionName: connectionName,
		Operation:      operation,
		Message:        message,
		Cause:          cause,
	}
}
