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

// Package session persists chat message history per session key in Redis,
// so a returning session replays its prior turns into the prompt.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"smarter/platform/orchestrator/llm"
)

// DefaultHistoryTTL is how long an idle session's history survives.
const DefaultHistoryTTL = 24 * time.Hour

// DefaultMaxMessages caps the replayed history length per session.
const DefaultMaxMessages = 100

// Store reads and appends chat history. Implementations must be safe for
// concurrent use across distinct session keys.
type Store interface {
	// History returns the session's messages, oldest first.
	History(ctx context.Context, account, sessionKey string) ([]llm.Message, error)

	// Append adds messages to the end of the session's history and
	// refreshes its TTL.
	Append(ctx context.Context, account, sessionKey string, messages ...llm.Message) error

	// Clear drops the session's history.
	Clear(ctx context.Context, account, sessionKey string) error
}

// RedisStore is the production Store, backed by a Redis list per session.
type RedisStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxMessages int
	logger      *log.Logger
}

// Config configures a RedisStore.
type Config struct {
	Addr        string
	Password    string
	DB          int
	TTL         time.Duration // default DefaultHistoryTTL
	MaxMessages int           // default DefaultMaxMessages
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	store := NewRedisStoreWithClient(client)
	if cfg.TTL > 0 {
		store.ttl = cfg.TTL
	}
	if cfg.MaxMessages > 0 {
		store.maxMessages = cfg.MaxMessages
	}
	store.logger.Printf("Connected to Redis session store: %s (db=%d)", cfg.Addr, cfg.DB)
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:      client,
		ttl:         DefaultHistoryTTL,
		maxMessages: DefaultMaxMessages,
		logger:      log.New(os.Stdout, "[SESSION_STORE] ", log.LstdFlags),
	}
}

func historyKey(account, sessionKey string) string {
	return fmt.Sprintf("chat:history:%s:%s", account, sessionKey)
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, account, sessionKey string) ([]llm.Message, error) {
	raw, err := s.client.LRange(ctx, historyKey(account, sessionKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	messages := make([]llm.Message, 0, len(raw))
	for _, item := range raw {
		var m llm.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("corrupt history entry for session %s: %w", sessionKey, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Append implements Store. The history is trimmed to the newest
// maxMessages entries and the session TTL is refreshed.
func (s *RedisStore) Append(ctx context.Context, account, sessionKey string, messages ...llm.Message) error {
	if len(messages) == 0 {
		return nil
	}

	key := historyKey(account, sessionKey)
	encoded := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode history entry: %w", err)
		}
		encoded = append(encoded, raw)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, encoded...)
	pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session history: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, account, sessionKey string) error {
	if err := s.client.Del(ctx, historyKey(account, sessionKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear session history: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
