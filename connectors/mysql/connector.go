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

// Package mysql implements the SQL connection for MySQL backends.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"smarter/platform/connectors/base"
)

// Connection implements base.SQLConnection for MySQL.
type Connection struct {
	config *base.Config
	db     *sql.DB
	logger *log.Logger
}

// New creates an unconnected MySQL connection.
func New() *Connection {
	return &Connection{
		logger: log.New(os.Stdout, "[MYSQL] ", log.LstdFlags),
	}
}

// NewWithDB wraps an existing database handle. Used by tests to substitute a
// sqlmock handle.
func NewWithDB(config *base.Config, db *sql.DB) *Connection {
	return &Connection{
		config: config,
		db:     db,
		logger: log.New(os.Stdout, "[MYSQL] ", log.LstdFlags),
	}
}

// Connect opens the database handle and verifies it with a ping.
func (c *Connection) Connect(ctx context.Context, config *base.Config) error {
	c.config = config

	db, err := sql.Open("mysql", config.ConnectionURL)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to open connection", err)
	}

	maxOpenConns := 25
	maxIdleConns := 5
	connMaxLifetime := 5 * time.Minute

	if val, ok := config.Options["max_open_conns"].(int); ok {
		maxOpenConns = val
	}
	if val, ok := config.Options["max_idle_conns"].(int); ok {
		maxIdleConns = val
	}
	if val, ok := config.Options["conn_max_lifetime"].(string); ok {
		if duration, err := time.ParseDuration(val); err == nil {
			connMaxLifetime = duration
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to ping database", err)
	}

	c.db = db
	c.logger.Printf("Connected to MySQL: %s (max_conns=%d)", config.Name, maxOpenConns)

	return nil
}

// Close closes the database handle.
func (c *Connection) Close(ctx context.Context) error {
	if c.db == nil {
		return nil
	}

	if err := c.db.Close(); err != nil {
		return base.NewConnectorError(c.Name(), "Close", "failed to close connection", err)
	}

	c.logger.Printf("Disconnected from MySQL: %s", c.Name())
	return nil
}

// HealthCheck pings the database and reports pool statistics.
func (c *Connection) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.db == nil {
		return &base.HealthStatus{
			Healthy:   false,
			Timestamp: time.Now(),
			Error:     "database not connected",
		}, nil
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	stats := c.db.Stats()
	details := map[string]string{
		"open_connections": fmt.Sprintf("%d", stats.OpenConnections),
		"in_use":           fmt.Sprintf("%d", stats.InUse),
		"idle":             fmt.Sprintf("%d", stats.Idle),
	}

	return &base.HealthStatus{
		Healthy:   true,
		Latency:   latency,
		Details:   details,
		Timestamp: time.Now(),
	}, nil
}

// Query runs a fully-rendered statement and scans the rows into maps.
func (c *Connection) Query(ctx context.Context, statement string, limit int) (*base.QueryResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "database not connected", nil)
	}

	queryCtx := ctx
	if c.config != nil && c.config.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := c.db.QueryContext(queryCtx, statement)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "failed to get columns", err)
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		if limit > 0 && len(results) >= limit {
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "failed to scan row", err)
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			val := values[i]
			// MySQL returns most scalar columns as []byte.
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "error during row iteration", err)
	}

	duration := time.Since(start)
	c.logger.Printf("Query executed: %d rows in %v", len(results), duration)

	return &base.QueryResult{
		Rows:       results,
		RowCount:   len(results),
		Duration:   duration,
		Connection: c.Name(),
	}, nil
}

// Name returns the connection name.
func (c *Connection) Name() string {
	if c.config == nil {
		return "mysql"
	}
	return c.config.Name
}

// Type returns the connection type.
func (c *Connection) Type() string {
	return "mysql"
}
