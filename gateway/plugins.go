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
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"smarter/platform/plugins/base"
	"smarter/platform/plugins/manifest"
	"smarter/platform/plugins/repository"
)

// maxManifestBytes caps the accepted manifest upload size.
const maxManifestBytes = 1 << 20

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	account, _ := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "limit must be an integer")
			return
		}
		limit = n
	}

	records, err := s.plugins.List(r.Context(), account, tags, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}

	manifests := make([]*manifest.Manifest, 0, len(records))
	for _, rec := range records {
		manifests = append(manifests, manifestWithStatus(rec))
	}
	writeJSON(w, http.StatusOK, manifests)
}

func (s *Server) handleCreatePlugin(w http.ResponseWriter, r *http.Request) {
	account, username := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	m, ok := s.readManifest(w, r)
	if !ok {
		return
	}

	rec, err := s.plugins.Create(r.Context(), account, username, m)
	if err != nil {
		s.writePluginError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, manifestWithStatus(rec))
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	account, _ := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	rec, err := s.plugins.Get(r.Context(), account, mux.Vars(r)["name"])
	if err != nil {
		s.writePluginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifestWithStatus(rec))
}

func (s *Server) handleUpdatePlugin(w http.ResponseWriter, r *http.Request) {
	account, username := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	m, ok := s.readManifest(w, r)
	if !ok {
		return
	}
	if name := mux.Vars(r)["name"]; m.Metadata.Name != name {
		writeError(w, http.StatusBadRequest, "ValidationError",
			"manifest metadata.name does not match the addressed plugin "+name)
		return
	}

	rec, err := s.plugins.Update(r.Context(), account, username, m)
	if err != nil {
		s.writePluginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifestWithStatus(rec))
}

func (s *Server) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	account, _ := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	if err := s.plugins.Delete(r.Context(), account, mux.Vars(r)["name"]); err != nil {
		s.writePluginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleClonePlugin(w http.ResponseWriter, r *http.Request) {
	account, username := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	rec, err := s.plugins.Clone(r.Context(), account, username, mux.Vars(r)["name"])
	if err != nil {
		s.writePluginError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, manifestWithStatus(rec))
}

// readManifest parses the request body as a plugin manifest. YAML and JSON
// bodies are both accepted; JSON is a YAML subset.
func (s *Server) readManifest(w http.ResponseWriter, r *http.Request) (*manifest.Manifest, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "failed to read request body")
		return nil, false
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ConfigurationError", err.Error())
		return nil, false
	}
	return m, true
}

// writePluginError maps repository errors to HTTP statuses.
func (s *Server) writePluginError(w http.ResponseWriter, err error) {
	var (
		notFound *base.NotFoundError
		config   *manifest.ConfigurationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "NotFoundError", err.Error())
	case errors.As(err, &config):
		writeError(w, http.StatusBadRequest, "ConfigurationError", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
	}
}

// manifestWithStatus attaches the read-only status block describing the
// persisted record to its manifest.
func manifestWithStatus(rec *repository.Record) *manifest.Manifest {
	m := rec.Manifest
	m.Status = &manifest.Status{
		ID:            rec.ID,
		AccountNumber: rec.AccountNumber,
		Username:      rec.Username,
		Created:       rec.Created,
		Modified:      rec.Modified,
	}
	return m
}
