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
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"smarter/platform/connectors/base"
	"smarter/platform/connectors/config"
)

// Factory creates an unconnected connection instance for a connection type.
type Factory func(connType string) (base.Connection, error)

// Registry holds the connection definitions plugins reference by name.
// Definitions are account-scoped; live connections are instantiated lazily
// on first use and reused afterwards. Thread-safe.
type Registry struct {
	connections map[string]base.Connection
	configs     map[string]*base.Config
	storage     Storage
	factory     Factory
	resolver    config.SecretResolver
	mu          sync.RWMutex
	logger      *log.Logger
}

// Storage persists connection definitions so replicas share one view.
type Storage interface {
	Save(ctx context.Context, account string, cfg *base.Config) error
	Get(ctx context.Context, account, name string) (*base.Config, error)
	Delete(ctx context.Context, account, name string) error
	List(ctx context.Context, account string) ([]string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithStorage attaches persistent definition storage.
func WithStorage(s Storage) Option {
	return func(r *Registry) { r.storage = s }
}

// WithFactory sets the connection factory used for lazy instantiation.
func WithFactory(f Factory) Option {
	return func(r *Registry) { r.factory = f }
}

// WithSecretResolver sets the resolver applied to credential references
// before a connection is established.
func WithSecretResolver(resolver config.SecretResolver) Option {
	return func(r *Registry) { r.resolver = resolver }
}

// New creates a connection registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		connections: make(map[string]base.Connection),
		configs:     make(map[string]*base.Config),
		factory:     DefaultFactory,
		logger:      log.New(os.Stdout, "[CONN_REGISTRY] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// key namespaces connection names by account.
func key(account, name string) string {
	return account + "/" + name
}

// Register stores a connection definition. The live connection is not
// established until a plugin first resolves it.
func (r *Registry) Register(ctx context.Context, cfg *base.Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("connection name is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("connection type is required")
	}

	k := key(cfg.AccountNumber, cfg.Name)

	r.mu.Lock()
	if _, exists := r.configs[k]; exists {
		r.mu.Unlock()
		return fmt.Errorf("connection %q already registered for account %s", cfg.Name, cfg.AccountNumber)
	}
	r.configs[k] = cfg
	r.mu.Unlock()

	if r.storage != nil {
		if err := r.storage.Save(ctx, cfg.AccountNumber, cfg); err != nil {
			r.logger.Printf("Warning: failed to persist connection %q: %v", cfg.Name, err)
		}
	}

	r.logger.Printf("Registered connection %q (type: %s, account: %s)", cfg.Name, cfg.Type, cfg.AccountNumber)
	return nil
}

// Unregister removes a connection definition and closes its live connection
// if one was established.
func (r *Registry) Unregister(ctx context.Context, account, name string) error {
	k := key(account, name)

	r.mu.Lock()
	conn, hadConn := r.connections[k]
	_, hadConfig := r.configs[k]
	delete(r.connections, k)
	delete(r.configs, k)
	r.mu.Unlock()

	if !hadConfig {
		return fmt.Errorf("connection %q not found for account %s", name, account)
	}

	if hadConn {
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			r.logger.Printf("Error closing connection %q: %v", name, err)
		}
	}

	if r.storage != nil {
		if err := r.storage.Delete(ctx, account, name); err != nil {
			r.logger.Printf("Warning: failed to delete connection %q from storage: %v", name, err)
		}
	}

	r.logger.Printf("Unregistered connection %q (account: %s)", name, account)
	return nil
}

// Get resolves a connection by account and name, instantiating and
// connecting it on first use.
func (r *Registry) Get(ctx context.Context, account, name string) (base.Connection, error) {
	k := key(account, name)

	r.mu.RLock()
	conn, exists := r.connections[k]
	cfg, hasConfig := r.configs[k]
	r.mu.RUnlock()

	if exists {
		return conn, nil
	}

	if !hasConfig && r.storage != nil {
		stored, err := r.storage.Get(ctx, account, name)
		if err == nil {
			r.mu.Lock()
			if _, dup := r.configs[k]; !dup {
				r.configs[k] = stored
			}
			cfg = r.configs[k]
			hasConfig = true
			r.mu.Unlock()
		}
	}

	if !hasConfig {
		return nil, fmt.Errorf("connection %q not found for account %s", name, account)
	}

	return r.establish(ctx, k, cfg)
}

// GetSQL resolves a connection and asserts it executes SQL.
func (r *Registry) GetSQL(ctx context.Context, account, name string) (base.SQLConnection, error) {
	conn, err := r.Get(ctx, account, name)
	if err != nil {
		return nil, err
	}
	sqlConn, ok := conn.(base.SQLConnection)
	if !ok {
		return nil, fmt.Errorf("connection %q (type %s) does not execute SQL", name, conn.Type())
	}
	return sqlConn, nil
}

// GetAPI resolves a connection and asserts it performs HTTP exchanges.
func (r *Registry) GetAPI(ctx context.Context, account, name string) (base.APIConnection, error) {
	conn, err := r.Get(ctx, account, name)
	if err != nil {
		return nil, err
	}
	apiConn, ok := conn.(base.APIConnection)
	if !ok {
		return nil, fmt.Errorf("connection %q (type %s) does not perform HTTP exchanges", name, conn.Type())
	}
	return apiConn, nil
}

// establish instantiates and connects a connection from its definition.
// Credential references are resolved just before Connect so secrets never
// sit in the definition store.
func (r *Registry) establish(ctx context.Context, k string, cfg *base.Config) (base.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have connected while we waited for the lock.
	if conn, exists := r.connections[k]; exists {
		return conn, nil
	}

	if r.factory == nil {
		return nil, fmt.Errorf("no connection factory configured")
	}

	r.logger.Printf("Establishing connection %q (type: %s)", cfg.Name, cfg.Type)

	conn, err := r.factory(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection %q: %w", cfg.Name, err)
	}

	effective := cfg
	if r.resolver != nil {
		resolved, err := config.ResolveCredentials(ctx, r.resolver, cfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credentials for %q: %w", cfg.Name, err)
		}
		clone := *cfg
		clone.Credentials = resolved
		effective = &clone
	}

	connectCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := conn.Connect(connectCtx, effective); err != nil {
		return nil, fmt.Errorf("failed to connect %q: %w", cfg.Name, err)
	}

	r.connections[k] = conn
	return conn, nil
}

// List returns the connection names defined for an account.
func (r *Registry) List(account string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := account + "/"
	names := make([]string, 0)
	for k := range r.configs {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, k[len(prefix):])
		}
	}
	return names
}

// HealthCheck probes every live connection and returns per-connection
// status keyed by "<account>/<name>".
func (r *Registry) HealthCheck(ctx context.Context) map[string]*base.HealthStatus {
	r.mu.RLock()
	live := make(map[string]base.Connection, len(r.connections))
	for k, conn := range r.connections {
		live[k] = conn
	}
	r.mu.RUnlock()

	results := make(map[string]*base.HealthStatus, len(live))
	for k, conn := range live {
		status, err := conn.HealthCheck(ctx)
		if err != nil {
			status = &base.HealthStatus{
				Healthy:   false,
				Timestamp: time.Now(),
				Error:     err.Error(),
			}
		}
		results[k] = status
	}
	return results
}

// CloseAll closes every live connection. Used for graceful shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, conn := range r.connections {
		if err := conn.Close(ctx); err != nil {
			r.logger.Printf("Error closing connection %q: %v", k, err)
		}
		delete(r.connections, k)
	}
}

// Count returns the number of defined connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}
