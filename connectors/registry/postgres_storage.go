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

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"smarter/platform/connectors/base"
)

// PostgreSQLStorage persists connection definitions so every orchestrator
// replica resolves the same set.
type PostgreSQLStorage struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgreSQLStorage opens the storage backend and ensures its schema.
func NewPostgreSQLStorage(dbURL string) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping storage database: %w", err)
	}

	storage := &PostgreSQLStorage{
		db:     db,
		logger: log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}

	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewPostgreSQLStorageWithDB wraps an existing handle. Used by tests.
func NewPostgreSQLStorageWithDB(db *sql.DB) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		db:     db,
		logger: log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}
}

func (s *PostgreSQLStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS connections (
		account_number VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		type VARCHAR(50) NOT NULL,
		connection_url TEXT NOT NULL DEFAULT '',
		options JSONB NOT NULL DEFAULT '{}'::jsonb,
		credentials JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (account_number, name)
	);

	CREATE INDEX IF NOT EXISTS idx_connections_type ON connections(type);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save upserts a connection definition.
func (s *PostgreSQLStorage) Save(ctx context.Context, account string, cfg *base.Config) error {
	optionsJSON, err := json.Marshal(cfg.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	credentialsJSON, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		INSERT INTO connections (account_number, name, type, connection_url, options, credentials)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_number, name) DO UPDATE SET
			type = EXCLUDED.type,
			connection_url = EXCLUDED.connection_url,
			options = EXCLUDED.options,
			credentials = EXCLUDED.credentials
	`

	_, err = s.db.ExecContext(ctx, query,
		account, cfg.Name, cfg.Type, cfg.ConnectionURL, optionsJSON, credentialsJSON)
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	s.logger.Printf("Saved connection %q (account: %s)", cfg.Name, account)
	return nil
}

// Get retrieves a connection definition.
func (s *PostgreSQLStorage) Get(ctx context.Context, account, name string) (*base.Config, error) {
	query := `
		SELECT type, connection_url, options, credentials
		FROM connections
		WHERE account_number = $1 AND name = $2
	`

	var connType, connectionURL string
	var optionsJSON, credentialsJSON []byte

	err := s.db.QueryRowContext(ctx, query, account, name).Scan(
		&connType, &connectionURL, &optionsJSON, &credentialsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("connection %q not found for account %s", name, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	var options map[string]interface{}
	if err := json.Unmarshal(optionsJSON, &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	var credentials map[string]string
	if err := json.Unmarshal(credentialsJSON, &credentials); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &base.Config{
		Name:          name,
		Type:          connType,
		ConnectionURL: connectionURL,
		Options:       options,
		Credentials:   credentials,
		Timeout:       30 * time.Second,
		AccountNumber: account,
	}, nil
}

// Delete removes a connection definition.
func (s *PostgreSQLStorage) Delete(ctx context.Context, account, name string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM connections WHERE account_number = $1 AND name = $2`, account, name)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("connection %q not found for account %s", name, account)
	}

	s.logger.Printf("Deleted connection %q (account: %s)", name, account)
	return nil
}

// List returns the connection names defined for an account.
func (s *PostgreSQLStorage) List(ctx context.Context, account string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM connections WHERE account_number = $1 ORDER BY created_at DESC`, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return names, nil
}

// Close closes the storage handle.
func (s *PostgreSQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
