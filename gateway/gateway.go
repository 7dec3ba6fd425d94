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

// Package gateway exposes the chat orchestrator and the plugin repository
// over HTTP: POST /api/v1/chat/{provider} for chat turns and a CRUD surface
// under /api/v1/plugins for plugin definitions.
//
// Authentication is out of scope here; the calling tier injects the account
// number and username as request headers.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"smarter/platform/orchestrator/providers"
	"smarter/platform/orchestrator/session"
	"smarter/platform/plugins/repository"
	"smarter/platform/shared/logger"
)

// Identity headers injected by the fronting tier.
const (
	HeaderAccountNumber = "X-Account-Number"
	HeaderUsername      = "X-Username"
)

// Config wires the gateway's collaborators.
type Config struct {
	Registry     *providers.Registry
	Plugins      *repository.Repository
	Materializer *repository.Materializer
	Sessions     session.Store // optional; nil disables history replay

	AllowedOrigins []string // default "*"
}

// Server is the HTTP surface of the platform.
type Server struct {
	registry     *providers.Registry
	plugins      *repository.Repository
	materializer *repository.Materializer
	sessions     session.Store
	router       *mux.Router
	cors         *cors.Cors
	log          *logger.Logger
}

// New builds the gateway and registers its routes.
func New(cfg Config) *Server {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		registry:     cfg.Registry,
		plugins:      cfg.Plugins,
		materializer: cfg.Materializer,
		sessions:     cfg.Sessions,
		router:       mux.NewRouter(),
		cors: cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}),
		log: logger.New("gateway"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/chat/{provider}", s.handleChat).Methods("POST")
	api.HandleFunc("/plugins", s.handleListPlugins).Methods("GET")
	api.HandleFunc("/plugins", s.handleCreatePlugin).Methods("POST")
	api.HandleFunc("/plugins/{name}", s.handleGetPlugin).Methods("GET")
	api.HandleFunc("/plugins/{name}", s.handleUpdatePlugin).Methods("PUT")
	api.HandleFunc("/plugins/{name}", s.handleDeletePlugin).Methods("DELETE")
	api.HandleFunc("/plugins/{name}/clone", s.handleClonePlugin).Methods("POST")
}

// Handler returns the CORS-wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// identity extracts the account and username headers. The account is
// required on every API route.
func identity(r *http.Request) (account, username string) {
	return r.Header.Get(HeaderAccountNumber), r.Header.Get(HeaderUsername)
}

type errorBody struct {
	ErrorClass  string `json:"errorClass"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, class, description string) {
	writeJSON(w, status, errorBody{ErrorClass: class, Description: description})
}
