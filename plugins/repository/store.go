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
	"time"

	"smarter/platform/plugins/manifest"
)

// Record is one stored plugin definition plus its repository identity.
type Record struct {
	ID            int64
	AccountNumber string
	Name          string
	Username      string
	Manifest      *manifest.Manifest
	Created       time.Time
	Modified      time.Time
}

// Store is the persistence contract behind the repository facade. All
// lookups are account-scoped except GetByID, whose ids are globally unique.
type Store interface {
	// Insert stores a new record and returns its assigned id.
	Insert(ctx context.Context, rec *Record) (int64, error)

	// Update replaces the manifest of an existing record.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a record by account and name.
	Delete(ctx context.Context, account, name string) error

	// GetByName retrieves a record by account and name.
	GetByName(ctx context.Context, account, name string) (*Record, error)

	// GetByID retrieves a record by its global id.
	GetByID(ctx context.Context, id int64) (*Record, error)

	// List returns all records for an account, newest first.
	List(ctx context.Context, account string) ([]*Record, error)
}

// clone returns a shallow copy of the record with a deep-copied manifest.
func (r *Record) clone() *Record {
	out := *r
	if r.Manifest != nil {
		if m, err := r.Manifest.Clone(); err == nil {
			out.Manifest = m
		}
	}
	return &out
}
