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
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"smarter/platform/orchestrator"
	"smarter/platform/orchestrator/llm"
)

// chatRequest is the POST /api/v1/chat/{provider} body.
type chatRequest struct {
	SessionKey string                      `json:"session_key"`
	Messages   []llm.Message               `json:"messages"`
	Chatbot    *orchestrator.ChatbotConfig `json:"chatbot,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	account, username := identity(r)
	if account == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "missing "+HeaderAccountNumber+" header")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "malformed request body: "+err.Error())
		return
	}

	orch, err := s.registry.Handler(provider, req.SessionKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	ctx := r.Context()

	var history []llm.Message
	if s.sessions != nil && req.SessionKey != "" {
		history, err = s.sessions.History(ctx, account, req.SessionKey)
		if err != nil {
			s.log.Error(account, req.SessionKey, "failed to load session history", map[string]interface{}{
				"error": err.Error(),
			})
			writeError(w, http.StatusInternalServerError, "InternalError", "failed to load session history")
			return
		}
	}

	records, err := s.plugins.List(ctx, account, nil, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list plugins: "+err.Error())
		return
	}
	runtimes, err := s.materializer.MaterializeAll(records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ConfigurationError", err.Error())
		return
	}

	resp := orch.RunTurn(ctx, &orchestrator.TurnRequest{
		Session: &orchestrator.ChatSession{
			SessionKey: req.SessionKey,
			Account:    account,
			Chatbot:    req.Chatbot,
			History:    history,
		},
		Messages: req.Messages,
		Plugins:  runtimes,
		User:     username,
	})

	if resp.StatusCode == http.StatusOK && s.sessions != nil && req.SessionKey != "" {
		s.recordTurn(r, account, req.SessionKey, req.Messages, resp)
	}

	writeJSON(w, resp.StatusCode, resp.Body)
}

// recordTurn appends the inbound messages and the final assistant answer to
// the session history. History failures do not fail the turn.
func (s *Server) recordTurn(r *http.Request, account, sessionKey string, inbound []llm.Message, resp *orchestrator.Response) {
	result, ok := resp.Body.(*orchestrator.TurnResult)
	if !ok || len(result.Choices) == 0 {
		return
	}
	appended := append(append([]llm.Message{}, inbound...), result.Choices[0].Message)
	if err := s.sessions.Append(r.Context(), account, sessionKey, appended...); err != nil {
		s.log.Warn(account, sessionKey, "failed to record session history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
