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

package gateway

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"smarter/platform/connectors/config"
	"smarter/platform/connectors/registry"
	"smarter/platform/orchestrator"
	"smarter/platform/orchestrator/providers"
	"smarter/platform/orchestrator/session"
	"smarter/platform/plugins/repository"
)

// Run wires the platform from environment configuration and serves HTTP
// until the process exits.
//
// Environment variables:
//
//	PORT                 - HTTP server port (default: 8080)
//	DATABASE_URL         - PostgreSQL connection string (optional; in-memory stores without it)
//	REDIS_ADDR           - Redis address for session history (optional; history disabled without it)
//	REDIS_PASSWORD       - Redis password (optional)
//	CONNECTIONS_FILE     - YAML file of named connections to register at startup (optional)
//	AWS_REGION           - enables AWS Secrets Manager credential resolution
//	OPENAI_API_KEY       - OpenAI API key
//	GOOGLEAI_API_KEY     - GoogleAI API key
//	METAAI_API_KEY       - MetaAI API key
//	DEFAULT_MODEL        - default chat model (default: gpt-4)
//	DEFAULT_SYSTEM_ROLE  - default system role text
//	DEFAULT_TEMPERATURE  - default sampling temperature (default: 0.5)
//	DEFAULT_MAX_TOKENS   - default completion token cap (default: 2048)
func Run() {
	ctx := context.Background()
	startupLog := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	resolver := buildSecretResolver(ctx, startupLog)

	regOpts := []registry.Option{}
	if resolver != nil {
		regOpts = append(regOpts, registry.WithSecretResolver(resolver))
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL != "" {
		storage, err := registry.NewPostgreSQLStorage(dbURL)
		if err != nil {
			startupLog.Fatalf("Failed to open connection storage: %v", err)
		}
		regOpts = append(regOpts, registry.WithStorage(storage))
	}
	connections := registry.New(regOpts...)

	if file := os.Getenv("CONNECTIONS_FILE"); file != "" {
		loader, err := config.NewYAMLFileLoader(file)
		if err != nil {
			startupLog.Fatalf("Failed to load connections file: %v", err)
		}
		for _, cfg := range loader.Connections() {
			if err := connections.Register(ctx, cfg); err != nil {
				startupLog.Fatalf("Failed to register connection %q: %v", cfg.Name, err)
			}
		}
		startupLog.Printf("Registered %d connections from %s", len(loader.Connections()), file)
	}

	var store repository.Store
	if dbURL != "" {
		pgStore, err := repository.NewPostgresStore(dbURL)
		if err != nil {
			startupLog.Fatalf("Failed to open plugin store: %v", err)
		}
		store = pgStore
	} else {
		startupLog.Printf("DATABASE_URL not set, using in-memory plugin store")
		store = repository.NewMemoryStore()
	}
	plugins := repository.New(store)
	materializer := repository.NewMaterializer(connections)

	var sessions session.Store
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisStore, err := session.NewRedisStore(ctx, session.Config{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err != nil {
			startupLog.Fatalf("Failed to connect session store: %v", err)
		}
		sessions = redisStore
	} else {
		startupLog.Printf("REDIS_ADDR not set, session history disabled")
	}

	providerRegistry := providers.New(providers.NewDefaultFactory(providers.Config{
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		GoogleAIAPIKey: os.Getenv("GOOGLEAI_API_KEY"),
		MetaAIAPIKey:   os.Getenv("METAAI_API_KEY"),
		Defaults: orchestrator.Defaults{
			Model:       envString("DEFAULT_MODEL", "gpt-4"),
			SystemRole:  envString("DEFAULT_SYSTEM_ROLE", "You are a helpful chatbot."),
			Temperature: envFloat("DEFAULT_TEMPERATURE", 0.5),
			MaxTokens:   envInt("DEFAULT_MAX_TOKENS", 2048),
		},
	}))

	server := New(Config{
		Registry:       providerRegistry,
		Plugins:        plugins,
		Materializer:   materializer,
		Sessions:       sessions,
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS"),
	})

	port := envString("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	startupLog.Printf("Smarter platform gateway listening on port %s", port)
	if err := httpServer.ListenAndServe(); err != nil {
		startupLog.Fatalf("Server error: %v", err)
	}
}

// buildSecretResolver picks the credential resolver: AWS Secrets Manager
// when a region is configured, environment variables otherwise.
func buildSecretResolver(ctx context.Context, startupLog *log.Logger) config.SecretResolver {
	if region := os.Getenv("AWS_REGION"); region != "" {
		resolver, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{
			Region: region,
		})
		if err != nil {
			startupLog.Fatalf("Failed to initialize AWS Secrets Manager: %v", err)
		}
		startupLog.Printf("Credential resolution via AWS Secrets Manager (region=%s)", region)
		return resolver
	}
	startupLog.Printf("AWS_REGION not set, resolving credentials from environment variables")
	return config.NewEnvSecretsManager(nil)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
