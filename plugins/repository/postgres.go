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

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
)

// PostgresStore persists plugin definitions in PostgreSQL. Manifests are
// stored as their YAML serialization so the stored form round-trips exactly
// what the author uploaded.
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresStore opens the store and ensures its schema.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping plugin store: %w", err)
	}

	store := &PostgresStore{
		db:     db,
		logger: log.New(log.Writer(), "[PLUGIN_STORE] ", log.LstdFlags),
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize plugin store schema: %w", err)
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing handle. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.New(log.Writer(), "[PLUGIN_STORE] ", log.LstdFlags),
	}
}

func (s *PostgresStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS plugins (
		id BIGSERIAL PRIMARY KEY,
		account_number VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		username VARCHAR(255) NOT NULL DEFAULT '',
		manifest TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		modified_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (account_number, name)
	);

	CREATE INDEX IF NOT EXISTS idx_plugins_account ON plugins(account_number);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Insert stores a new record and returns its assigned id.
func (s *PostgresStore) Insert(ctx context.Context, rec *Record) (int64, error) {
	raw, err := rec.Manifest.Marshal()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize manifest: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO plugins (account_number, name, username, manifest)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.AccountNumber, rec.Name, rec.Username, string(raw)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert plugin: %w", err)
	}

	s.logger.Printf("Inserted plugin %q (account: %s, id: %d)", rec.Name, rec.AccountNumber, id)
	return id, nil
}

// Update replaces the manifest of an existing record.
func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	raw, err := rec.Manifest.Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE plugins
		SET manifest = $3, username = $4, modified_at = NOW()
		WHERE account_number = $1 AND name = $2
	`, rec.AccountNumber, rec.Name, string(raw), rec.Username)
	if err != nil {
		return fmt.Errorf("failed to update plugin: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return &base.NotFoundError{Resource: "plugin", Name: rec.Name, Account: rec.AccountNumber}
	}
	return nil
}

// Delete removes a record by account and name.
func (s *PostgresStore) Delete(ctx context.Context, account, name string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM plugins WHERE account_number = $1 AND name = $2`, account, name)
	if err != nil {
		return fmt.Errorf("failed to delete plugin: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return &base.NotFoundError{Resource: "plugin", Name: name, Account: account}
	}

	s.logger.Printf("Deleted plugin %q (account: %s)", name, account)
	return nil
}

// GetByName retrieves a record by account and name.
func (s *PostgresStore) GetByName(ctx context.Context, account, name string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_number, name, username, manifest, created_at, modified_at
		FROM plugins
		WHERE account_number = $1 AND name = $2
	`, account, name)
	return scanRecord(row, name, account)
}

// GetByID retrieves a record by its global id.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_number, name, username, manifest, created_at, modified_at
		FROM plugins
		WHERE id = $1
	`, id)
	return scanRecord(row, base.FunctionNameFor(id), "")
}

// List returns all records for an account, newest first.
func (s *PostgresStore) List(ctx context.Context, account string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_number, name, username, manifest, created_at, modified_at
		FROM plugins
		WHERE account_number = $1
		ORDER BY created_at DESC, id DESC
	`, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// Close closes the store handle.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row *sql.Row, name, account string) (*Record, error) {
	rec, err := scanRecordRow(row)
	if err == sql.ErrNoRows {
		return nil, &base.NotFoundError{Resource: "plugin", Name: name, Account: account}
	}
	return rec, err
}

func scanRecordRow(row rowScanner) (*Record, error) {
	var rec Record
	var raw string
	if err := row.Scan(&rec.ID, &rec.AccountNumber, &rec.Name, &rec.Username,
		&raw, &rec.Created, &rec.Modified); err != nil {
		return nil, err
	}

	m, err := manifest.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("stored manifest for plugin %d is corrupt: %w", rec.ID, err)
	}
	rec.Manifest = m
	return &rec, nil
}
