// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package mockverifier is a stand-in for the verifier backend, good enough to
// click through every demo flow without a wallet.
package mockverifier

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	sloghttp "github.com/samber/slog-http"

	"github.com/quixsi/showcase/internal/model"
)

// RejectedSchema always ends in a rejected session.
const RejectedSchema = "rechazado"

type session struct {
	schema string
	polls  int
}

type Mock struct {
	logger  *slog.Logger
	address string
	// polls answered with pending before a session becomes verified
	pendingPolls int

	mu       sync.Mutex
	sessions map[string]*session
}

func NewMock(logger *slog.Logger, address string, pendingPolls int) *Mock {
	if pendingPolls < 0 {
		pendingPolls = 0
	}
	return &Mock{
		logger:       logger.WithGroup("mockverifier"),
		address:      address,
		pendingPolls: pendingPolls,
		sessions:     make(map[string]*session),
	}
}

// Handler serves the verifier API with request logging.
func (m *Mock) Handler() http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, m.addRoutes())

	loggerMW := sloghttp.NewWithConfig(
		m.logger, sloghttp.Config{
			DefaultLevel:     slog.LevelInfo,
			ClientErrorLevel: slog.LevelWarn,
			ServerErrorLevel: slog.LevelError,
			WithUserAgent:    true,
		},
	)
	return loggerMW(mux)
}

// ListenAndServe blocks until ctx is done or the listener fails.
func (m *Mock) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              m.address,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		m.logger.Info("listening on", "address", m.address)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (m *Mock) start(schema string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.sessions[id] = &session{schema: schema}
	return id
}

// poll advances a session and reports its status.
func (m *Mock) poll(id string) (model.SessionStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", false
	}
	s.polls++
	switch {
	case s.schema == RejectedSchema:
		return model.SessionStatusRejected, true
	case s.polls > m.pendingPolls:
		return model.SessionStatusVerified, true
	default:
		return model.SessionStatusPending, true
	}
}
