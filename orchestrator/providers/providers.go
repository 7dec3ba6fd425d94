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

// Package providers routes a provider name to a chat orchestrator and
// caches the built instance per chat session.
//
// The cache deliberately accepts stale state for performance: a cached
// orchestrator survives for the session TTL and accumulates built-in tool
// state turn-over-turn. Entries are whole-orchestrator snapshots replaced
// atomically under the cache lock; concurrent turns on distinct sessions
// are safe, concurrent turns on the same session key are not serialized.
package providers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"smarter/platform/orchestrator"
	"smarter/platform/orchestrator/llm"
)

// Provider names accepted by the registry.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
	ProviderMetaAI   = "metaai"
)

// SessionTTL is how long a cached orchestrator survives without use.
const SessionTTL = 10 * time.Minute

// ValidProviders returns the accepted provider names in a fixed order.
func ValidProviders() []string {
	return []string{ProviderOpenAI, ProviderGoogleAI, ProviderMetaAI}
}

// UnknownProviderError reports an unrecognized provider name, listing the
// valid names.
type UnknownProviderError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q, valid providers: %s",
		e.Name, strings.Join(ValidProviders(), ", "))
}

// Factory builds a fresh orchestrator for a provider. Invoked on every
// session-cache miss.
type Factory func(provider string) (*orchestrator.Orchestrator, error)

// Registry maps provider names to session-cached orchestrator instances.
type Registry struct {
	factory Factory

	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	orch    *orchestrator.Orchestrator
	expires time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides the session TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithClock substitutes the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry around the given factory.
func New(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory: factory,
		ttl:     SessionTTL,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handler returns the orchestrator serving one provider for one chat
// session. A cache hit reuses the previously-built instance and refreshes
// its TTL; a miss builds fresh through the factory and caches the result.
func (r *Registry) Handler(provider, sessionKey string) (*orchestrator.Orchestrator, error) {
	if !isValidProvider(provider) {
		return nil, &UnknownProviderError{Name: provider}
	}

	key := provider + "/" + sessionKey

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.entries[key]; ok && now.Before(entry.expires) {
		entry.expires = now.Add(r.ttl)
		return entry.orch, nil
	}

	orch, err := r.factory(provider)
	if err != nil {
		return nil, err
	}
	r.entries[key] = &cacheEntry{orch: orch, expires: now.Add(r.ttl)}
	r.sweepLocked(now)
	return orch, nil
}

// Invalidate drops every cached orchestrator for a session key.
func (r *Registry) Invalidate(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, provider := range ValidProviders() {
		delete(r.entries, provider+"/"+sessionKey)
	}
}

// CachedSessions returns the number of live cache entries.
func (r *Registry) CachedSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	now := r.now()
	for _, entry := range r.entries {
		if now.Before(entry.expires) {
			count++
		}
	}
	return count
}

// sweepLocked drops expired entries. Called with the lock held.
func (r *Registry) sweepLocked(now time.Time) {
	for key, entry := range r.entries {
		if !now.Before(entry.expires) {
			delete(r.entries, key)
		}
	}
}

func isValidProvider(name string) bool {
	for _, p := range ValidProviders() {
		if p == name {
			return true
		}
	}
	return false
}

// Config carries the credentials and defaults the default factory needs.
type Config struct {
	OpenAIAPIKey   string
	GoogleAIAPIKey string
	MetaAIAPIKey   string
	Timeout        time.Duration
	Defaults       orchestrator.Defaults
}

// NewDefaultFactory builds orchestrators backed by the real HTTP clients
// for the three supported vendors. GoogleAI and MetaAI are reached through
// their OpenAI-compatible endpoints.
func NewDefaultFactory(cfg Config) Factory {
	endpoints := map[string]struct {
		baseURL string
		apiKey  string
	}{
		ProviderOpenAI:   {llm.OpenAIBaseURL, cfg.OpenAIAPIKey},
		ProviderGoogleAI: {llm.GoogleAIBaseURL, cfg.GoogleAIAPIKey},
		ProviderMetaAI:   {llm.MetaAIBaseURL, cfg.MetaAIAPIKey},
	}
	return func(provider string) (*orchestrator.Orchestrator, error) {
		endpoint, ok := endpoints[provider]
		if !ok {
			return nil, &UnknownProviderError{Name: provider}
		}
		client, err := llm.NewHTTPClient(llm.Config{
			BaseURL: endpoint.baseURL,
			APIKey:  endpoint.apiKey,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build %s client: %w", provider, err)
		}
		return orchestrator.New(provider, client, cfg.Defaults), nil
	}
}
