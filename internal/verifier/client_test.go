// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/quixsi/showcase/internal/model"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", 0)
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("unexpected base url: %s", c.BaseURL())
	}
	if c.httpClient.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout: %s", c.httpClient.Timeout)
	}
	if NewClient("http://vcs:8085/", time.Second).BaseURL() != "http://vcs:8085" {
		t.Fatal("expected trailing slash to be trimmed")
	}
}

func TestStartVerification(t *testing.T) {
	testCases := []struct {
		name        string
		reply       string
		status      int
		expected    *model.VerifierSession
		expectedErr error
	}{
		{
			name:     "wrapped in data",
			reply:    `{"data":{"sessionID":"abc","appUrl":"openid4vp://abc"}}`,
			status:   http.StatusOK,
			expected: &model.VerifierSession{SessionID: "abc", AppURL: "openid4vp://abc"},
		},
		{
			name:     "flat",
			reply:    `{"sessionID":"xyz","appUrl":"openid4vp://xyz"}`,
			status:   http.StatusCreated,
			expected: &model.VerifierSession{SessionID: "xyz", AppURL: "openid4vp://xyz"},
		},
		{
			name:        "missing app url",
			reply:       `{"data":{"sessionID":"abc"}}`,
			status:      http.StatusOK,
			expectedErr: ErrIncompleteResponse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/api/v1/verifier-back/procivis" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected json content type, got %s", r.Header.Get("Content-Type"))
				}
				var req startRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.Schema != "policia" {
					t.Errorf("unexpected schema: %s", req.Schema)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.reply))
			}))
			defer srv.Close()

			session, err := NewClient(srv.URL, time.Second).StartVerification(context.Background(), "policia")
			if tc.expectedErr != nil {
				if !errors.Is(err, tc.expectedErr) {
					t.Fatalf("expected %v, got %v", tc.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(session, tc.expected) {
				t.Fatalf("got %+v, expected %+v", session, tc.expected)
			}
		})
	}
}

func TestStartVerification_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).StartVerification(context.Background(), "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway || statusErr.Body != "boom" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestStatus(t *testing.T) {
	replies := map[string]string{
		"/api/v1/verifier-status/procivis/a": `{"data":{"status":"verified"}}`,
		"/api/v1/verifier-status/procivis/b": `{"status":"pending"}`,
		"/api/v1/verifier-status/procivis/c": `{}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		reply, ok := replies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(reply))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	testCases := map[string]model.SessionStatus{
		"a": model.SessionStatusVerified,
		"b": model.SessionStatusPending,
		"c": "",
	}
	for id, expected := range testCases {
		got, err := c.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", id, err)
		}
		if got != expected {
			t.Errorf("%s: got %q, expected %q", id, got, expected)
		}
	}

	_, err := c.Status(context.Background(), "missing")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestCreateCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/createCredential/procivis" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req issueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Schema == "empty" {
			w.Write([]byte(`{"urls":{}}`))
			return
		}
		if req.Credential["Nombre"] != "Clara" {
			t.Errorf("unexpected credential: %v", req.Credential)
		}
		w.Write([]byte(`{"urls":{"appUrl":"openid-credential-offer://1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	offer, err := c.CreateCredential(context.Background(), "carnet", map[string]string{"Nombre": "Clara"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &model.Offer{Schema: "carnet", AppURL: "openid-credential-offer://1"}
	if !reflect.DeepEqual(offer, expected) {
		t.Fatalf("got %+v, expected %+v", offer, expected)
	}

	if _, err := c.CreateCredential(context.Background(), "empty", nil); !errors.Is(err, ErrIncompleteResponse) {
		t.Fatalf("expected ErrIncompleteResponse, got %v", err)
	}
}

func TestStatus_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(srv.URL, time.Second).Status(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
