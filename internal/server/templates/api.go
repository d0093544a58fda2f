// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package templates

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/flow"
	"github.com/quixsi/showcase/internal/locale"
	"github.com/quixsi/showcase/internal/model"
	"github.com/quixsi/showcase/internal/parser/form"
	"github.com/quixsi/showcase/internal/qr"
	"github.com/quixsi/showcase/internal/verification"
)

// SubmitPersona stores a custom persona for a flow.
func (h *DemoHandler) SubmitPersona(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.SubmitPersona")
	defer span.End()

	if err := c.Request.ParseForm(); err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not parse form", "error", err)
		c.String(http.StatusBadRequest, "could not parse form")
		return
	}

	var persona model.Persona
	if err := form.Unmarshal(c.Request.PostForm, &persona); err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not parse persona", "error", err)
		c.String(http.StatusBadRequest, "could not parse persona")
		return
	}
	if persona.Firstname == "" || persona.Lastname == "" {
		c.String(http.StatusBadRequest, "name and surname are required")
		return
	}

	flowID := c.PostForm("flow")
	if !h.personaFlow(flowID) {
		c.String(http.StatusBadRequest, "flow does not take a persona")
		return
	}

	state, err := h.pStore.UpdateProgress(ctx, visitorID(c), func(s *model.DemoState) error {
		s.SetCustomPersona(flowID, persona)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not save persona", "error", err)
		c.String(http.StatusInternalServerError, "could not save persona")
		return
	}

	if next, ok := localRedirect(c.PostForm("next")); ok {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	c.JSON(http.StatusOK, state.RoleData(flowID))
}

func (h *DemoHandler) personaFlow(id string) bool {
	for _, f := range h.catalogue.Flows {
		if f.ID == id {
			return f.Persona
		}
	}
	return false
}

// StreamVerification runs the verification of a verify page, or the
// animation of a checklist page, and pushes every phase as a server-sent
// event. Closing the stream stops the polling.
func (h *DemoHandler) StreamVerification(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.StreamVerification")
	defer span.End()

	loc, page, ok := h.apiPage(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("page", page.Path))

	vID := visitorID(c)
	state, err := h.pStore.GetProgress(ctx, vID)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not read demo progress", "error", err)
		c.String(http.StatusInternalServerError, "could not read demo progress")
		return
	}
	role := page.Role(state.Role(page.Flow().ID, ""))

	content, err := h.cStore.Page(ctx, page.ContentPath(role), loc)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not load page content", "page", page.Path, "error", err)
		c.String(http.StatusInternalServerError, "could not load page content")
		return
	}

	var run func(context.Context, func(verification.Event)) error
	switch page.Kind {
	case flow.KindVerify:
		errMsg := ""
		if content.Verify != nil {
			errMsg = content.Verify.Error.Message
		}
		redirect := firstNonEmpty(target(loc, page.Redirect), target(loc, page.NextTarget(role)))
		if content.Shop != nil {
			// the storefront stays open to show the discounted cart
			redirect = ""
		}
		machine := verification.NewMachine(h.backend, verification.Options{
			Schema:          page.SchemaFor(role),
			Steps:           content.VerifyStepCount(),
			Interval:        firstDuration(page.Polling.Interval, h.polling.Interval),
			StepDelay:       firstDuration(page.Polling.StepDelay, h.polling.StepDelay),
			ReadyDelay:      page.Polling.ReadyDelay,
			FailureStatuses: statuses(page.Polling.FailureStatuses),
			SimulateOnError: page.Polling.SimulateOnError,
			DoneOnSimulate:  page.Polling.DoneOnSimulate,
			Fallback:        verification.Fallback(page.Polling.Fallback),
			Redirect:        redirect,
			ErrorMessage:    errMsg,
		})
		run = machine.Run
	case flow.KindChecklist:
		steps := 0
		if content.Checklist != nil {
			steps = len(content.Checklist.Steps)
		}
		delay := firstDuration(page.Polling.StepDelay, h.polling.StepDelay)
		run = func(ctx context.Context, emit func(verification.Event)) error {
			return verification.Checklist(ctx, steps, delay, emit)
		}
	default:
		notFound(c)
		return
	}

	events := make(chan verification.Event)
	errc := make(chan error, 1)
	go func() {
		defer close(events)
		err := run(ctx, func(e verification.Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
		if err == nil {
			h.complete(context.WithoutCancel(ctx), vID, page)
		}
		errc <- err
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	keepAlive := time.NewTicker(firstDuration(h.polling.KeepAlive, DefaultKeepAlive))
	defer keepAlive.Stop()
	// ends once the machine stops, which a disconnect causes through ctx
stream:
	for {
		select {
		case e, ok := <-events:
			if !ok {
				break stream
			}
			c.SSEvent("phase", e)
		case <-keepAlive.C:
			// idle streams are closed by proxies
			_, _ = io.WriteString(c.Writer, ": keepalive\n\n")
		}
		c.Writer.Flush()
	}

	err = <-errc
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, verification.ErrVerificationFailed):
		h.logger.WarnContext(ctx, "verification rejected", "page", page.Path, "error", err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		h.logger.ErrorContext(ctx, "verification failed", "page", page.Path, "error", err)
	}
}

// complete records a finished verification: the case the page completes and
// the discount it unlocks.
func (h *DemoHandler) complete(ctx context.Context, visitor uuid.UUID, page *flow.Page) {
	if page.Completes == "" && page.Discount <= 0 {
		return
	}
	_, err := h.pStore.UpdateProgress(ctx, visitor, func(s *model.DemoState) error {
		s.MarkCaseCompleted(page.Completes)
		s.ApplyDiscount(page.Path, page.Discount)
		return nil
	})
	if err != nil {
		h.logger.WarnContext(ctx, "could not record verification", "page", page.Path, "error", err)
	}
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// statuses keeps a nil list nil so that the machine defaults apply.
func statuses(values []string) []model.SessionStatus {
	if values == nil {
		return nil
	}
	res := make([]model.SessionStatus, len(values))
	for i, v := range values {
		res[i] = model.SessionStatus(v)
	}
	return res
}

// Issue creates the credential offer of an issue page. Repeated calls of a
// visitor return the same offer while it is cached.
func (h *DemoHandler) Issue(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.Issue")
	defer span.End()

	loc, page, ok := h.apiPage(c)
	if !ok {
		return
	}
	if page.Kind != flow.KindIssue {
		notFound(c)
		return
	}

	vID := visitorID(c)
	state, err := h.pStore.GetProgress(ctx, vID)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not read demo progress", "error", err)
		c.String(http.StatusInternalServerError, "could not read demo progress")
		return
	}

	role := page.Role(state.Role(page.Flow().ID, ""))
	schema := page.SchemaFor(role)
	attrs := credentialAttributes(page.Credential, state.RoleData(page.Flow().ID))

	offer, err := h.offers.Get(ctx, verification.OfferKey(vID, page.Path), schema, attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to issue credential")
		h.logger.ErrorContext(ctx, "could not issue credential", "schema", schema, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  model.ErrorReasonBackend.String(),
			"error": errorMessages[loc][model.ErrorReasonBackend],
		})
		return
	}

	dataURL, err := qr.DataURL(offer.AppURL, qr.DefaultSize)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not render qr code", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not render qr code"})
		return
	}

	_, err = h.pStore.UpdateProgress(ctx, vID, func(s *model.DemoState) error {
		s.AddIssuedCredential(schema)
		s.MarkCaseCompleted(page.Completes)
		return nil
	})
	if err != nil {
		h.logger.WarnContext(ctx, "could not record issued credential", "schema", schema, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"appUrl": offer.AppURL, "qr": dataURL})
}

// credentialAttributes fills the credential of a page with the persona of
// the visitor where both know the attribute.
func credentialAttributes(base map[string]string, p *model.Persona) map[string]string {
	attrs := make(map[string]string, len(base))
	for k, v := range base {
		attrs[k] = v
	}
	if p == nil {
		return attrs
	}
	overrides := map[string]string{"Nombre": p.Firstname, "Apellidos": p.Lastname, "DNI": p.DNI}
	for k, v := range overrides {
		if _, ok := attrs[k]; ok && v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// QRCode renders ?data= as a PNG.
func (h *DemoHandler) QRCode(c *gin.Context) {
	data := c.Query("data")
	size, _ := strconv.Atoi(c.Query("size"))
	png, err := qr.PNG(data, size)
	if err != nil {
		if errors.Is(err, qr.ErrEmpty) {
			c.String(http.StatusBadRequest, "missing data")
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "could not render qr code", "error", err)
		c.String(http.StatusInternalServerError, "could not render qr code")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

// LocaleFile serves the raw locale JSON under /locales/<page>/<locale>.json.
func (h *DemoHandler) LocaleFile(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.LocaleFile")
	defer span.End()

	file := strings.Trim(c.Param("file"), "/")
	if !strings.HasSuffix(file, ".json") {
		notFound(c)
		return
	}
	file = strings.TrimSuffix(file, ".json")
	i := strings.LastIndex(file, "/")
	if i < 0 {
		notFound(c)
		return
	}
	loc, err := locale.Parse(file[i+1:])
	if err != nil {
		notFound(c)
		return
	}

	raw, err := h.cStore.Raw(ctx, file[:i], loc)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(c)
			return
		}
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not read locale file", "file", file, "error", err)
		c.String(http.StatusInternalServerError, "could not read locale file")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// ResetProgress forgets roles, personas and finished cases of the visitor.
func (h *DemoHandler) ResetProgress(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.ResetProgress")
	defer span.End()

	vID := visitorID(c)
	if err := h.pStore.DeleteProgress(ctx, vID); err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not reset demo progress", "error", err)
		c.String(http.StatusInternalServerError, "could not reset demo progress")
		return
	}
	for _, p := range h.catalogue.Pages() {
		if p.Kind == flow.KindIssue {
			h.offers.Forget(verification.OfferKey(vID, p.Path))
		}
	}
	if next, ok := localRedirect(c.PostForm("next")); ok {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	c.Status(http.StatusNoContent)
}

// localRedirect accepts next only when it names a path on this host.
// Browsers read a backslash like a slash, so "/\evil.example" would leave.
func localRedirect(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "", false
	}
	if strings.Contains(next, `\`) || strings.IndexFunc(next, unicode.IsControl) >= 0 {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return next, true
}

// apiPage resolves the "/<locale>/<page>" suffix of an API route.
func (h *DemoHandler) apiPage(c *gin.Context) (string, *flow.Page, bool) {
	rest := strings.Trim(c.Param("page"), "/")
	seg, path, _ := strings.Cut(rest, "/")
	loc, err := locale.Parse(seg)
	if err != nil {
		notFound(c)
		return "", nil, false
	}
	page, err := h.catalogue.Lookup(path)
	if err != nil {
		notFound(c)
		return "", nil, false
	}
	return loc, page, true
}
