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

	connbase "smarter/platform/connectors/base"
	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
	"smarter/platform/plugins/restapi"
	"smarter/platform/plugins/sqlquery"
	"smarter/platform/plugins/static"
)

// ConnectionResolver provides the live connections that sql and api
// runtimes execute against. Satisfied by *registry.Registry.
type ConnectionResolver interface {
	GetSQL(ctx context.Context, account, name string) (connbase.SQLConnection, error)
	GetAPI(ctx context.Context, account, name string) (connbase.APIConnection, error)
}

// Materializer turns stored plugin records into executable runtimes. The
// dispatch over plugin classes is a closed table; an unrecognized class is
// a defect in validation, not a user error.
type Materializer struct {
	connections ConnectionResolver
	byClass     map[manifest.PluginClass]func(*Record) (base.PluginRuntime, error)
}

// NewMaterializer creates a materializer. connections may be nil when only
// static plugins are in play (tests); materializing a sql or api record
// without a resolver fails.
func NewMaterializer(connections ConnectionResolver) *Materializer {
	m := &Materializer{connections: connections}
	m.byClass = map[manifest.PluginClass]func(*Record) (base.PluginRuntime, error){
		manifest.ClassStatic: m.newStatic,
		manifest.ClassSQL:    m.newSQL,
		manifest.ClassAPI:    m.newAPI,
	}
	return m
}

// Materialize builds a fresh runtime for one record. Runtimes are
// per-turn-cycle: callers must not share them across chat turns, because
// selection state latches.
func (m *Materializer) Materialize(rec *Record) (base.PluginRuntime, error) {
	construct, ok := m.byClass[rec.Manifest.Metadata.PluginClass]
	if !ok {
		return nil, &base.IllegalInvocationError{
			Op:      "Materialize",
			Message: fmt.Sprintf("unrecognized plugin class %q", rec.Manifest.Metadata.PluginClass),
		}
	}
	return construct(rec)
}

// MaterializeAll builds runtimes for every record, failing on the first
// record that cannot be materialized.
func (m *Materializer) MaterializeAll(records []*Record) ([]base.PluginRuntime, error) {
	runtimes := make([]base.PluginRuntime, 0, len(records))
	for _, rec := range records {
		runtime, err := m.Materialize(rec)
		if err != nil {
			return nil, err
		}
		runtimes = append(runtimes, runtime)
	}
	return runtimes, nil
}

func (m *Materializer) newStatic(rec *Record) (base.PluginRuntime, error) {
	return static.New(rec.Manifest, rec.ID, rec.AccountNumber)
}

func (m *Materializer) newSQL(rec *Record) (base.PluginRuntime, error) {
	if m.connections == nil {
		return nil, &base.IllegalInvocationError{
			Op:      "Materialize",
			Message: "sql plugins require a connection resolver",
		}
	}
	return sqlquery.New(rec.Manifest, rec.ID, rec.AccountNumber, m.connections)
}

func (m *Materializer) newAPI(rec *Record) (base.PluginRuntime, error) {
	if m.connections == nil {
		return nil, &base.IllegalInvocationError{
			Op:      "Materialize",
			Message: "api plugins require a connection resolver",
		}
	}
	return restapi.New(rec.Manifest, rec.ID, rec.AccountNumber, m.connections)
}
