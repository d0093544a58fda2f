// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package mockverifier

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/quixsi/showcase/internal/model"
)

type envelope struct {
	Data any `json:"data"`
}

func (m *Mock) startVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Schema string `json:"schema"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Schema == "" {
		http.Error(w, "schema is required", http.StatusBadRequest)
		return
	}

	id := m.start(req.Schema)
	m.logger.InfoContext(r.Context(), "session started", "session", id, "schema", req.Schema)
	m.reply(w, http.StatusCreated, model.VerifierSession{
		SessionID: id,
		AppURL:    "openid4vp://mock?session=" + url.QueryEscape(id),
	})
}

func (m *Mock) status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, ok := m.poll(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	m.reply(w, http.StatusOK, struct {
		Status model.SessionStatus `json:"status"`
	}{Status: status})
}

func (m *Mock) createCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Schema     string            `json:"schema"`
		Credential map[string]string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Schema == "" {
		http.Error(w, "schema is required", http.StatusBadRequest)
		return
	}

	offer := struct {
		URLs struct {
			AppURL string `json:"appUrl"`
		} `json:"urls"`
	}{}
	offer.URLs.AppURL = "openid-credential-offer://mock?schema=" + url.QueryEscape(req.Schema)
	m.logger.InfoContext(r.Context(), "credential offered", "schema", req.Schema, "attributes", len(req.Credential))
	m.reply(w, http.StatusOK, offer)
}

func (m *Mock) reply(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		m.logger.Error("failed to write reply", "error", err)
	}
}
