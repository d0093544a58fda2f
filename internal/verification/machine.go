// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package verification drives a credential verification from opening the
// session to the animated checklist shown once the wallet answered.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/model"
	"github.com/quixsi/showcase/internal/verifier"
)

type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseLoading   Phase = "loading"
	PhaseQR        Phase = "qr"
	PhaseVerifying Phase = "verifying"
	PhaseReady     Phase = "ready"
	// PhaseDone ends a simulated verification without a redirect.
	PhaseDone  Phase = "done"
	PhaseError Phase = "error"
)

const (
	DefaultInterval  = 1500 * time.Millisecond
	DefaultStepDelay = 800 * time.Millisecond
)

// Placeholder session used when the Fallback of a machine covers the error
// the backend answered with.
const (
	FallbackAppURL    = "https://example.com"
	FallbackSessionID = "mock"
)

// Fallback selects which start failures continue with a placeholder session.
type Fallback string

const (
	FallbackNone Fallback = ""
	// FallbackIncomplete covers replies lacking the session fields and non 2xx
	// replies. Transport errors still end in the error panel.
	FallbackIncomplete Fallback = "incomplete"
	FallbackAlways     Fallback = "always"
)

func (f Fallback) covers(err error) bool {
	switch f {
	case FallbackAlways:
		return true
	case FallbackIncomplete:
		var statusErr *verifier.StatusError
		return errors.Is(err, verifier.ErrIncompleteResponse) || errors.As(err, &statusErr)
	}
	return false
}

// ErrVerificationFailed is returned by Run when the backend reported one of
// the failure statuses.
var ErrVerificationFailed = errors.New("verification failed")

// Verifier opens sessions and reports their status.
type Verifier interface {
	StartVerification(ctx context.Context, schema string) (*model.VerifierSession, error)
	Status(ctx context.Context, sessionID string) (model.SessionStatus, error)
}

type Options struct {
	Schema string
	// Steps is the number of checklist entries animated after success.
	Steps      int
	Interval   time.Duration
	StepDelay  time.Duration
	ReadyDelay time.Duration
	// FailureStatuses end the verification with the error panel. A nil list
	// selects error and rejected, an empty one never fails.
	FailureStatuses []model.SessionStatus
	// SimulateOnError treats a status request that could not be completed as
	// a successful verification.
	SimulateOnError bool
	// DoneOnSimulate ends a simulated verification in PhaseDone instead of
	// announcing the redirect.
	DoneOnSimulate bool
	Fallback       Fallback
	Redirect       string
	// ErrorMessage is shown when the verification fails. Backend details
	// only go to the log.
	ErrorMessage string
}

// Event is a snapshot of the machine pushed to the page.
type Event struct {
	Phase      Phase  `json:"phase"`
	QRLink     string `json:"qrLink,omitempty"`
	SessionID  string `json:"sessionID,omitempty"`
	ActiveStep int    `json:"activeStep"`
	TotalSteps int    `json:"totalSteps"`
	Progress   int    `json:"progress"`
	Redirect   string `json:"redirect,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Progress is the share of finished checklist steps in percent.
func Progress(active, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(active) / float64(total) * 100))
}

type Machine struct {
	verifier Verifier
	opts     Options
	logger   *slog.Logger
}

func NewMachine(v Verifier, opts Options) *Machine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	if opts.FailureStatuses == nil {
		opts.FailureStatuses = []model.SessionStatus{model.SessionStatusError, model.SessionStatusRejected}
	}
	if opts.ErrorMessage == "" {
		opts.ErrorMessage = "Error de verificación"
	}
	return &Machine{
		verifier: v,
		opts:     opts,
		logger:   slog.Default().WithGroup("verification"),
	}
}

// Run starts a session and polls it until it reaches a terminal state or ctx
// is cancelled. Every state change is handed to emit. Polling never gives up
// on its own, only the cancellation of ctx stops it early.
func (m *Machine) Run(ctx context.Context, emit func(Event)) error {
	ctx, span := tracer.Start(ctx, "Machine.Run", trace.WithAttributes(
		attribute.String("schema", m.opts.Schema),
	))
	defer span.End()

	state := Event{Phase: PhaseLoading, TotalSteps: m.opts.Steps}
	emit(state)

	session, err := m.verifier.StartVerification(ctx, m.opts.Schema)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !m.opts.Fallback.covers(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to start verification")
			m.logger.ErrorContext(ctx, "could not start verification", "schema", m.opts.Schema, "error", err)
			state.Phase = PhaseError
			state.Error = m.startError(err)
			emit(state)
			return fmt.Errorf("start verification: %w", err)
		}
		m.logger.WarnContext(ctx, "continue with placeholder session", "schema", m.opts.Schema, "error", err)
		session = &model.VerifierSession{SessionID: FallbackSessionID, AppURL: FallbackAppURL}
	}
	span.SetAttributes(attribute.String("session.id", session.SessionID))

	state.Phase = PhaseQR
	state.QRLink = session.AppURL
	state.SessionID = session.SessionID
	emit(state)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		simulated := false
		status, err := m.verifier.Status(ctx, session.SessionID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var statusErr *verifier.StatusError
			if errors.As(err, &statusErr) || !m.opts.SimulateOnError {
				m.logger.DebugContext(ctx, "ignore failed status request", "session", session.SessionID, "error", err)
				continue
			}
			m.logger.InfoContext(ctx, "simulate successful verification", "session", session.SessionID, "error", err)
			status = model.SessionStatusSuccess
			simulated = true
		}

		switch {
		case status == model.SessionStatusSuccess || status == model.SessionStatusVerified:
			span.AddEvent("verified")
			ticker.Stop()
			return m.finish(ctx, state, simulated, emit)
		case slices.Contains(m.opts.FailureStatuses, status):
			span.SetStatus(codes.Error, string(status))
			state.Phase = PhaseError
			state.Error = m.opts.ErrorMessage
			emit(state)
			return fmt.Errorf("%s: %w", status, ErrVerificationFailed)
		}
	}
}

// startError is the message shown when no session could be opened.
func (m *Machine) startError(err error) string {
	var statusErr *verifier.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("%s (HTTP %d)", m.opts.ErrorMessage, statusErr.Code)
	}
	return m.opts.ErrorMessage
}

// finish animates the checklist and announces the redirect target.
func (m *Machine) finish(ctx context.Context, state Event, simulated bool, emit func(Event)) error {
	state.Phase = PhaseVerifying
	n := m.opts.Steps
	for i := 0; i <= n; i++ {
		if i > 0 {
			if err := sleep(ctx, m.opts.StepDelay); err != nil {
				return err
			}
		}
		state.ActiveStep = i
		state.Progress = Progress(i, n)
		emit(state)
	}

	if simulated && m.opts.DoneOnSimulate {
		state.Phase = PhaseDone
		emit(state)
		return nil
	}

	if n > 0 {
		if err := sleep(ctx, m.opts.StepDelay); err != nil {
			return err
		}
	}
	state.Phase = PhaseReady
	if m.opts.ReadyDelay > 0 {
		emit(state)
		if err := sleep(ctx, m.opts.ReadyDelay); err != nil {
			return err
		}
	}
	state.Redirect = m.opts.Redirect
	emit(state)
	return nil
}

// Checklist animates a standalone checklist of steps entries: the first one
// is active right away, each further one after delay, and the list finishes
// one delay after the last.
func Checklist(ctx context.Context, steps int, delay time.Duration, emit func(Event)) error {
	if delay <= 0 {
		delay = DefaultStepDelay
	}
	for i := 1; i <= steps; i++ {
		if i > 1 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		emit(Event{Phase: PhaseVerifying, ActiveStep: i, TotalSteps: steps, Progress: Progress(i, steps)})
	}
	if steps > 0 {
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	emit(Event{Phase: PhaseReady, ActiveStep: steps, TotalSteps: steps, Progress: Progress(steps, steps)})
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
