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
	"errors"
	"fmt"

	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
	"smarter/platform/shared/logger"
)

// DefaultListLimit caps List results when no limit is supplied.
const DefaultListLimit = 1000

// Listener is notified around plugin deletion so dependent state (cached
// runtimes, session handles) can be released. PluginDeleting fires before
// the store delete, PluginDeleted after it succeeds.
type Listener interface {
	PluginDeleting(ctx context.Context, rec *Record)
	PluginDeleted(ctx context.Context, rec *Record)
}

// Repository is the facade in front of plugin definition storage. Every
// write validates the manifest first; invalid definitions never reach the
// store.
type Repository struct {
	store     Store
	listeners []Listener
	log       *logger.Logger
}

// New creates a repository over the given store.
func New(store Store) *Repository {
	return &Repository{
		store: store,
		log:   logger.New("plugin-repository"),
	}
}

// AddListener registers a deletion listener. Not safe to call concurrently
// with Delete; wire listeners during startup.
func (r *Repository) AddListener(l Listener) {
	r.listeners = append(r.listeners, l)
}

// Create validates and stores a new plugin definition. Creation is
// idempotent by name: if the account already has a plugin with this name,
// the call routes to Update and the stored definition is replaced, keeping
// the record's id.
func (r *Repository) Create(ctx context.Context, account, username string, m *manifest.Manifest) (*Record, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if _, err := r.store.GetByName(ctx, account, m.Metadata.Name); err == nil {
		r.log.Info(account, "", "plugin create routed to update, name exists", map[string]interface{}{
			"plugin": m.Metadata.Name,
		})
		return r.Update(ctx, account, username, m)
	} else if !isNotFound(err) {
		return nil, err
	}

	rec := &Record{
		AccountNumber: account,
		Name:          m.Metadata.Name,
		Username:      username,
		Manifest:      m,
	}
	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}

	r.log.Info(account, "", "plugin created", map[string]interface{}{
		"plugin": m.Metadata.Name,
		"id":     id,
		"class":  string(m.Metadata.PluginClass),
	})
	return r.store.GetByID(ctx, id)
}

// Update validates and replaces an existing definition. The manifest's
// metadata.name addresses the record; renames are not supported through
// Update.
func (r *Repository) Update(ctx context.Context, account, username string, m *manifest.Manifest) (*Record, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	rec := &Record{
		AccountNumber: account,
		Name:          m.Metadata.Name,
		Username:      username,
		Manifest:      m,
	}
	if err := r.store.Update(ctx, rec); err != nil {
		return nil, err
	}

	r.log.Info(account, "", "plugin updated", map[string]interface{}{
		"plugin": m.Metadata.Name,
	})
	return r.store.GetByName(ctx, account, m.Metadata.Name)
}

// Get retrieves a plugin definition by account and name.
func (r *Repository) Get(ctx context.Context, account, name string) (*Record, error) {
	return r.store.GetByName(ctx, account, name)
}

// GetByID retrieves a plugin definition by its global id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Record, error) {
	return r.store.GetByID(ctx, id)
}

// Delete removes a plugin definition, notifying listeners before and after
// the store delete.
func (r *Repository) Delete(ctx context.Context, account, name string) error {
	rec, err := r.store.GetByName(ctx, account, name)
	if err != nil {
		return err
	}

	for _, l := range r.listeners {
		l.PluginDeleting(ctx, rec)
	}

	if err := r.store.Delete(ctx, account, name); err != nil {
		return err
	}

	for _, l := range r.listeners {
		l.PluginDeleted(ctx, rec)
	}

	r.log.Info(account, "", "plugin deleted", map[string]interface{}{
		"plugin": name,
	})
	return nil
}

// Clone duplicates an existing definition under a derived name: the source
// name plus " (copy)", falling back to " (copy2)", " (copy3)" and so on
// until a free name is found. The clone gets a fresh id and timestamps.
func (r *Repository) Clone(ctx context.Context, account, username, name string) (*Record, error) {
	source, err := r.store.GetByName(ctx, account, name)
	if err != nil {
		return nil, err
	}

	cloned, err := source.Manifest.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to copy manifest: %w", err)
	}

	cloneName, err := r.nextCloneName(ctx, account, name)
	if err != nil {
		return nil, err
	}
	cloned.Metadata.Name = cloneName
	cloned.Status = nil

	rec := &Record{
		AccountNumber: account,
		Name:          cloneName,
		Username:      username,
		Manifest:      cloned,
	}
	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}

	r.log.Info(account, "", "plugin cloned", map[string]interface{}{
		"source": name,
		"clone":  cloneName,
		"id":     id,
	})
	return r.store.GetByID(ctx, id)
}

// nextCloneName finds the first free "<name> (copy)" variant.
func (r *Repository) nextCloneName(ctx context.Context, account, name string) (string, error) {
	for n := 1; n <= 1000; n++ {
		candidate := name + " (copy)"
		if n > 1 {
			candidate = fmt.Sprintf("%s (copy%d)", name, n)
		}
		_, err := r.store.GetByName(ctx, account, candidate)
		if isNotFound(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free clone name for %q", name)
}

// List returns the account's plugin definitions, newest first, optionally
// filtered to those carrying every given tag. A non-positive limit applies
// DefaultListLimit.
func (r *Repository) List(ctx context.Context, account string, tags []string, limit int) ([]*Record, error) {
	records, err := r.store.List(ctx, account)
	if err != nil {
		return nil, err
	}

	if len(tags) > 0 {
		filtered := make([]*Record, 0, len(records))
		for _, rec := range records {
			if hasAllTags(rec.Manifest, tags) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func hasAllTags(m *manifest.Manifest, tags []string) bool {
	for _, tag := range tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

func isNotFound(err error) bool {
	var nf *base.NotFoundError
	return errors.As(err, &nf)
}
