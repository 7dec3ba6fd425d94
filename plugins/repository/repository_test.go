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
	"fmt"
	"testing"

	"smarter/platform/plugins/manifest"
)

const account = "3141-5926-5359"

func staticManifest(name string, tags ...string) *manifest.Manifest {
	return &manifest.Manifest{
		APIVersion: manifest.APIVersion,
		Kind:       manifest.KindStaticPlugin,
		Metadata: manifest.Metadata{
			Name:        name,
			PluginClass: manifest.ClassStatic,
			Description: "test plugin",
			Tags:        tags,
		},
		Spec: manifest.Spec{
			Selector: manifest.Selector{
				Directive:   manifest.DirectiveSearchTerms,
				SearchTerms: []string{name},
			},
			Data: manifest.DataSpec{
				StaticData: map[string]interface{}{"info": map[string]interface{}{"k": "v"}},
			},
		},
	}
}

func newTestRepository() *Repository {
	return New(NewMemoryStore())
}

func TestCreate(t *testing.T) {
	repo := newTestRepository()

	rec, err := repo.Create(context.Background(), account, "admin", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected an assigned id")
	}
	if rec.Created.IsZero() || rec.Modified.IsZero() {
		t.Error("expected timestamps")
	}
	if rec.Username != "admin" {
		t.Errorf("username = %q", rec.Username)
	}
}

// Creating a plugin whose name the account already holds replaces the
// stored definition instead of inserting a duplicate.
func TestCreate_IdempotentByName(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, account, "admin", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	changed := staticManifest("weather")
	changed.Metadata.Description = "completely different"
	second, err := repo.Create(ctx, account, "someone-else", changed)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second create assigned a new id: %d != %d", second.ID, first.ID)
	}
	if second.Manifest.Metadata.Description != "completely different" {
		t.Errorf("second create did not replace the definition: %q", second.Manifest.Metadata.Description)
	}
	if second.Username != "someone-else" {
		t.Errorf("username = %q, want the updating caller", second.Username)
	}

	all, err := repo.List(ctx, account, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("record count = %d, want 1", len(all))
	}
}

func TestCreate_AccountsAreIsolated(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, "acct-a", "u", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := repo.Create(ctx, "acct-b", "u", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == b.ID {
		t.Error("same name in different accounts must be distinct records")
	}
}

func TestCreate_InvalidManifestRejected(t *testing.T) {
	repo := newTestRepository()

	bad := staticManifest("broken")
	bad.Spec.Data.StaticData = nil

	if _, err := repo.Create(context.Background(), account, "u", bad); err == nil {
		t.Error("invalid manifest must not reach the store")
	}
}

func TestUpdate(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, account, "u", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	changed := staticManifest("weather")
	changed.Metadata.Description = "updated"
	updated, err := repo.Update(ctx, account, "u", changed)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.ID != created.ID {
		t.Errorf("update changed the id: %d != %d", updated.ID, created.ID)
	}
	if updated.Manifest.Metadata.Description != "updated" {
		t.Errorf("description = %q", updated.Manifest.Metadata.Description)
	}

	if _, err := repo.Update(ctx, account, "u", staticManifest("no-such")); err == nil {
		t.Error("updating a missing plugin should fail")
	}
}

// recordingListener captures deletion notifications in order.
type recordingListener struct {
	events []string
}

func (l *recordingListener) PluginDeleting(ctx context.Context, rec *Record) {
	l.events = append(l.events, "deleting:"+rec.Name)
}

func (l *recordingListener) PluginDeleted(ctx context.Context, rec *Record) {
	l.events = append(l.events, "deleted:"+rec.Name)
}

func TestDelete_NotifiesListeners(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	listener := &recordingListener{}
	repo.AddListener(listener)

	if _, err := repo.Create(ctx, account, "u", staticManifest("weather")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, account, "weather"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []string{"deleting:weather", "deleted:weather"}
	if len(listener.events) != 2 || listener.events[0] != want[0] || listener.events[1] != want[1] {
		t.Errorf("events = %v, want %v", listener.events, want)
	}

	if _, err := repo.Get(ctx, account, "weather"); err == nil {
		t.Error("deleted plugin still retrievable")
	}
	if err := repo.Delete(ctx, account, "weather"); err == nil {
		t.Error("double delete should fail")
	}
}

func TestClone_NameDerivation(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, account, "u", staticManifest("Weather")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.Clone(ctx, account, "u", "Weather")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if first.Name != "Weather (copy)" {
		t.Errorf("first clone name = %q", first.Name)
	}

	second, err := repo.Clone(ctx, account, "u", "Weather")
	if err != nil {
		t.Fatalf("second Clone: %v", err)
	}
	if second.Name != "Weather (copy2)" {
		t.Errorf("second clone name = %q", second.Name)
	}

	// Cloning a clone appends another suffix rather than incrementing.
	nested, err := repo.Clone(ctx, account, "u", "Weather (copy)")
	if err != nil {
		t.Fatalf("nested Clone: %v", err)
	}
	if nested.Name != "Weather (copy) (copy)" {
		t.Errorf("nested clone name = %q", nested.Name)
	}
}

func TestClone_IsDeepCopy(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	source, err := repo.Create(ctx, account, "u", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clone, err := repo.Clone(ctx, account, "u", "weather")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	if clone.ID == source.ID {
		t.Error("clone must get a fresh id")
	}

	clone.Manifest.Spec.Data.StaticData["info"].(map[string]interface{})["k"] = "mutated"
	reloaded, err := repo.Get(ctx, account, "weather")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Manifest.Spec.Data.StaticData["info"].(map[string]interface{})["k"] != "v" {
		t.Error("mutating the clone leaked into the source")
	}
}

func TestList(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("plugin-%d", i)
		tags := []string{"all"}
		if i%2 == 0 {
			tags = append(tags, "even")
		}
		if _, err := repo.Create(ctx, account, "u", staticManifest(name, tags...)); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	all, err := repo.List(ctx, account, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len = %d, want 5", len(all))
	}

	even, err := repo.List(ctx, account, []string{"even"}, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(even) != 3 {
		t.Errorf("even len = %d, want 3", len(even))
	}

	limited, err := repo.List(ctx, account, nil, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited len = %d, want 2", len(limited))
	}

	other, err := repo.List(ctx, "some-other-account", nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other account sees %d records", len(other))
	}
}

func TestMaterialize(t *testing.T) {
	repo := newTestRepository()
	ctx := context.Background()

	rec, err := repo.Create(ctx, account, "u", staticManifest("weather"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mat := NewMaterializer(nil)
	runtime, err := mat.Materialize(rec)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if runtime.Name() != "weather" {
		t.Errorf("Name() = %q", runtime.Name())
	}
	if runtime.ID() != rec.ID {
		t.Errorf("ID() = %d, want %d", runtime.ID(), rec.ID)
	}
	if runtime.Class() != manifest.ClassStatic {
		t.Errorf("Class() = %q", runtime.Class())
	}
}

func TestMaterialize_SQLWithoutResolver(t *testing.T) {
	mat := NewMaterializer(nil)

	m := staticManifest("orders")
	m.Kind = manifest.KindSqlPlugin
	m.Metadata.PluginClass = manifest.ClassSQL
	m.Spec.Data = manifest.DataSpec{
		ConnectionRef: "orders-db",
		SQLQuery:      "SELECT 1",
	}
	rec := &Record{ID: 1, AccountNumber: account, Name: "orders", Manifest: m}

	if _, err := mat.Materialize(rec); err == nil {
		t.Error("sql plugin without a resolver should fail to materialize")
	}
}
