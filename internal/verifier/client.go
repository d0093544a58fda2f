// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package verifier talks to the credential backend that opens verification
// sessions, reports their status and issues credential offers.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/quixsi/showcase/internal/model"
)

const DefaultBaseURL = "http://localhost:8085"

const (
	startPath  = "/api/v1/verifier-back/procivis"
	statusPath = "/api/v1/verifier-status/procivis/"
	issuePath  = "/api/v1/createCredential/procivis"
)

// ErrIncompleteResponse is returned when the backend answers 2xx but leaves
// out a field the caller depends on.
var ErrIncompleteResponse = errors.New("incomplete response")

// StatusError carries a non-2xx reply of the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Client communicates with the verifier backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. An empty baseURL points to
// DefaultBaseURL, a non positive timeout falls back to ten seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type startRequest struct {
	Schema string `json:"schema"`
}

type statusReply struct {
	Status model.SessionStatus `json:"status"`
}

type issueRequest struct {
	Schema     string            `json:"schema"`
	Credential map[string]string `json:"credential"`
}

type issueReply struct {
	URLs struct {
		AppURL string `json:"appUrl"`
	} `json:"urls"`
}

// StartVerification opens a verification session for schema.
func (c *Client) StartVerification(ctx context.Context, schema string) (*model.VerifierSession, error) {
	ctx, span := tracer.Start(ctx, "StartVerification")
	defer span.End()
	span.SetAttributes(attribute.String("schema", schema))

	var session model.VerifierSession
	if err := c.do(ctx, http.MethodPost, startPath, startRequest{Schema: schema}, &session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start verification")
		return nil, fmt.Errorf("verifier: start: %w", err)
	}
	if session.SessionID == "" || session.AppURL == "" {
		span.SetStatus(codes.Error, "incomplete session")
		return nil, fmt.Errorf("verifier: start: %w", ErrIncompleteResponse)
	}
	span.SetAttributes(attribute.String("session.id", session.SessionID))
	return &session, nil
}

// Status reports the state of a session. A session the backend has not
// decided on yet usually reports pending or an empty status.
func (c *Client) Status(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	ctx, span := tracer.Start(ctx, "Status")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var reply statusReply
	if err := c.do(ctx, http.MethodGet, statusPath+url.PathEscape(sessionID), nil, &reply); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("verifier: status: %w", err)
	}
	span.SetAttributes(attribute.String("session.status", string(reply.Status)))
	return reply.Status, nil
}

// CreateCredential issues a credential of schema holding attrs and returns the
// offer a wallet app accepts.
func (c *Client) CreateCredential(ctx context.Context, schema string, attrs map[string]string) (*model.Offer, error) {
	ctx, span := tracer.Start(ctx, "CreateCredential")
	defer span.End()
	span.SetAttributes(attribute.String("schema", schema))

	if attrs == nil {
		attrs = map[string]string{}
	}
	var reply issueReply
	if err := c.do(ctx, http.MethodPost, issuePath, issueRequest{Schema: schema, Credential: attrs}, &reply); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create credential")
		return nil, fmt.Errorf("verifier: create credential: %w", err)
	}
	if reply.URLs.AppURL == "" {
		span.SetStatus(codes.Error, "offer without url")
		return nil, fmt.Errorf("verifier: create credential: %w", ErrIncompleteResponse)
	}
	return &model.Offer{Schema: schema, AppURL: reply.URLs.AppURL}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return decode(respBody, out)
}

// decode accepts both {"data": {...}} and the bare object.
func decode(b []byte, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		b = envelope.Data
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
