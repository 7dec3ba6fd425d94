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
	"sort"
	"sync"
	"time"

	"smarter/platform/plugins/base"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Record
	byName map[string]int64 // "<account>/<name>" -> id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byID:   make(map[int64]*Record),
		byName: make(map[string]int64),
	}
}

func nameKey(account, name string) string {
	return account + "/" + name
}

// Insert stores a new record and returns its assigned id.
func (s *MemoryStore) Insert(ctx context.Context, rec *Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := nameKey(rec.AccountNumber, rec.Name)
	if _, exists := s.byName[k]; exists {
		return 0, &base.IllegalInvocationError{
			Op:      "MemoryStore.Insert",
			Message: "record already exists: " + k,
		}
	}

	stored := rec.clone()
	stored.ID = s.nextID
	now := time.Now().UTC()
	stored.Created = now
	stored.Modified = now
	s.nextID++

	s.byID[stored.ID] = stored
	s.byName[k] = stored.ID
	return stored.ID, nil
}

// Update replaces the manifest of an existing record.
func (s *MemoryStore) Update(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.byName[nameKey(rec.AccountNumber, rec.Name)]
	if !exists {
		return &base.NotFoundError{Resource: "plugin", Name: rec.Name, Account: rec.AccountNumber}
	}

	stored := s.byID[id]
	updated := rec.clone()
	updated.ID = stored.ID
	updated.Created = stored.Created
	updated.Modified = time.Now().UTC()
	s.byID[id] = updated
	return nil
}

// Delete removes a record by account and name.
func (s *MemoryStore) Delete(ctx context.Context, account, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := nameKey(account, name)
	id, exists := s.byName[k]
	if !exists {
		return &base.NotFoundError{Resource: "plugin", Name: name, Account: account}
	}
	delete(s.byName, k)
	delete(s.byID, id)
	return nil
}

// GetByName retrieves a record by account and name.
func (s *MemoryStore) GetByName(ctx context.Context, account, name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[nameKey(account, name)]
	if !exists {
		return nil, &base.NotFoundError{Resource: "plugin", Name: name, Account: account}
	}
	return s.byID[id].clone(), nil
}

// GetByID retrieves a record by its global id.
func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.byID[id]
	if !exists {
		return nil, &base.NotFoundError{Resource: "plugin", Name: base.FunctionNameFor(id)}
	}
	return rec.clone(), nil
}

// List returns all records for an account, newest first.
func (s *MemoryStore) List(ctx context.Context, account string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0)
	for _, rec := range s.byID {
		if rec.AccountNumber == account {
			records = append(records, rec.clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Created.Equal(records[j].Created) {
			return records[i].ID > records[j].ID
		}
		return records[i].Created.After(records[j].Created)
	})
	return records, nil
}
