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

package sqlquery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	connbase "smarter/platform/connectors/base"
	"smarter/platform/connectors/postgres"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
)

func TestRenderStatement(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     map[string]interface{}
		want     string
		wantErr  bool
	}{
		{
			"string quoting",
			"SELECT * FROM users WHERE name = {username}",
			map[string]interface{}{"username": "alice"},
			"SELECT * FROM users WHERE name = 'alice';",
			false,
		},
		{
			"quote escaping",
			"SELECT * FROM users WHERE name = {username}",
			map[string]interface{}{"username": "o'brien"},
			"SELECT * FROM users WHERE name = 'o''brien';",
			false,
		},
		{
			"null argument",
			"SELECT * FROM t WHERE x = {v}",
			map[string]interface{}{"v": nil},
			"SELECT * FROM t WHERE x = NULL;",
			false,
		},
		{
			"whole float64 renders as integer",
			"SELECT * FROM t WHERE id = {id}",
			map[string]interface{}{"id": float64(42)},
			"SELECT * FROM t WHERE id = 42;",
			false,
		},
		{
			"fractional float",
			"SELECT * FROM t WHERE score > {min}",
			map[string]interface{}{"min": 0.75},
			"SELECT * FROM t WHERE score > 0.75;",
			false,
		},
		{
			"boolean",
			"SELECT * FROM t WHERE active = {flag}",
			map[string]interface{}{"flag": true},
			"SELECT * FROM t WHERE active = TRUE;",
			false,
		},
		{
			"whitespace flattened, existing semicolon kept single",
			"SELECT *\n  FROM t\n  WHERE a = {v}  ;",
			map[string]interface{}{"v": 1},
			"SELECT * FROM t WHERE a = 1;",
			false,
		},
		{
			"backslashes removed",
			`SELECT \* FROM t WHERE a = {v}`,
			map[string]interface{}{"v": 1},
			"SELECT * FROM t WHERE a = 1;",
			false,
		},
		{
			"missing argument",
			"SELECT * FROM t WHERE a = {v}",
			map[string]interface{}{},
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderStatement(tt.template, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		declared, want int
	}{
		{0, MaxRows},
		{-1, MaxRows},
		{50, 50},
		{MaxRows, MaxRows},
		{MaxRows + 1, MaxRows},
	}
	for _, tt := range tests {
		if got := effectiveLimit(tt.declared); got != tt.want {
			t.Errorf("effectiveLimit(%d) = %d, want %d", tt.declared, got, tt.want)
		}
	}
}

func sqlManifest() *manifest.Manifest {
	return &manifest.Manifest{
		APIVersion: manifest.APIVersion,
		Kind:       manifest.KindSqlPlugin,
		Metadata: manifest.Metadata{
			Name:        "customer-orders",
			PluginClass: manifest.ClassSQL,
			Description: "Look up orders for a customer.",
		},
		Spec: manifest.Spec{
			Selector: manifest.Selector{
				Directive:   manifest.DirectiveSearchTerms,
				SearchTerms: []string{"orders"},
			},
			Data: manifest.DataSpec{
				ConnectionRef: "orders-db",
				SQLQuery:      "SELECT id, total FROM orders WHERE customer = {customer}",
				Limit:         10,
				Parameters: []manifest.Parameter{
					{Name: "customer", Type: manifest.TypeString, Required: true},
				},
			},
		},
	}
}

// resolverFunc adapts a function to ConnectionResolver.
type resolverFunc func(ctx context.Context, account, name string) (connbase.SQLConnection, error)

func (f resolverFunc) GetSQL(ctx context.Context, account, name string) (connbase.SQLConnection, error) {
	return f(ctx, account, name)
}

func mockResolver(t *testing.T) (ConnectionResolver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	conn := postgres.NewWithDB(&connbase.Config{Name: "orders-db", Type: "postgres"}, db)
	return resolverFunc(func(ctx context.Context, account, name string) (connbase.SQLConnection, error) {
		if name != "orders-db" {
			return nil, errors.New("not found")
		}
		return conn, nil
	}), mock
}

func TestExecute(t *testing.T) {
	resolver, mock := mockResolver(t)
	plugin, err := New(sqlManifest(), 7, "acct-1", resolver)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mock.ExpectQuery("SELECT id, total FROM orders WHERE customer = 'alice'").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}).
			AddRow(1, "19.99").
			AddRow(2, "5.00"))

	got, err := plugin.Execute(context.Background(), map[string]interface{}{"customer": "alice"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(got), &rows); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["total"] != "19.99" {
		t.Errorf("total = %v", rows[0]["total"])
	}
}

func TestExecute_EmptyResult(t *testing.T) {
	resolver, mock := mockResolver(t)
	plugin, err := New(sqlManifest(), 7, "acct-1", resolver)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mock.ExpectQuery("SELECT id, total FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total"}))

	got, err := plugin.Execute(context.Background(), map[string]interface{}{"customer": "nobody"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "" {
		t.Errorf("empty result should be the empty string, got %q", got)
	}
}

func TestExecute_InvalidArgs(t *testing.T) {
	resolver, _ := mockResolver(t)
	plugin, err := New(sqlManifest(), 7, "acct-1", resolver)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = plugin.Execute(context.Background(), map[string]interface{}{"customer": 42})
	if err == nil {
		t.Fatal("expected error for type mismatch")
	}
	var execErr *base.PluginExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("expected *PluginExecutionError, got %T", err)
	}
}

func TestExecute_UnknownConnection(t *testing.T) {
	resolver := resolverFunc(func(ctx context.Context, account, name string) (connbase.SQLConnection, error) {
		return nil, errors.New("connection not found")
	})
	plugin, err := New(sqlManifest(), 7, "acct-1", resolver)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = plugin.Execute(context.Background(), map[string]interface{}{"customer": "alice"})
	if err == nil {
		t.Fatal("expected error")
	}
	var execErr *base.PluginExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("expected *PluginExecutionError, got %T", err)
	}
}

func TestNew_ClassMismatch(t *testing.T) {
	def := sqlManifest()
	def.Metadata.PluginClass = manifest.ClassStatic
	resolver, _ := mockResolver(t)

	if _, err := New(def, 7, "acct-1", resolver); err == nil {
		t.Error("expected error for non-sql manifest")
	}
}
