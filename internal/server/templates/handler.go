// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package templates

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/flow"
	"github.com/quixsi/showcase/internal/locale"
	"github.com/quixsi/showcase/internal/model"
	"github.com/quixsi/showcase/internal/verification"
)

//go:embed *.html
var templates embed.FS

// VisitorKey is the gin context key holding the visitor uuid.
const VisitorKey = "visitor"

// Backend is the credential backend used by verify and issue pages.
type Backend interface {
	verification.Verifier
	verification.Issuer
}

// Polling holds the verification timings applied when a page does not
// override them.
type Polling struct {
	Interval  time.Duration
	StepDelay time.Duration
	// KeepAlive is the period of comment lines written to an idle event
	// stream. Zero selects DefaultKeepAlive.
	KeepAlive time.Duration
}

const DefaultKeepAlive = 15 * time.Second

func NewDemoHandler(
	catalogue *flow.Catalogue,
	cStore db.ContentStore,
	pStore db.ProgressStore,
	backend Backend,
	polling Polling,
) *DemoHandler {
	coreTemplates := []string{"main.html", "header.html", "footer.html", "steps.html", "language.html"}
	kinds := []flow.Kind{
		flow.KindLanding, flow.KindRole, flow.KindMedia, flow.KindIssue,
		flow.KindVerify, flow.KindChecklist, flow.KindCards, flow.KindConfirmation,
	}

	pages := make(map[flow.Kind]*template.Template, len(kinds))
	for _, k := range kinds {
		files := append(append([]string(nil), coreTemplates...), string(k)+".html")
		pages[k] = template.Must(template.New("main.html").Funcs(funcs).ParseFS(templates, files...))
	}

	return &DemoHandler{
		tmplPages: pages,
		tmplError: template.Must(template.New("main.html").Funcs(funcs).ParseFS(templates, append(coreTemplates, "error.html")...)),
		catalogue: catalogue,
		cStore:    cStore,
		pStore:    pStore,
		backend:   backend,
		offers:    verification.NewOffers(backend, 0, 0),
		polling:   polling,
		logger:    slog.Default().WithGroup("http"),
	}
}

type DemoHandler struct {
	tmplPages map[flow.Kind]*template.Template
	tmplError *template.Template
	catalogue *flow.Catalogue
	cStore    db.ContentStore
	pStore    db.ProgressStore
	backend   Backend
	offers    *verification.Offers
	polling   Polling
	logger    *slog.Logger
}

// RenderRoot sends the visitor to the landing page in the best matching
// language.
func (h *DemoHandler) RenderRoot(c *gin.Context) {
	loc := locale.Negotiate(c.GetHeader("Accept-Language"))
	c.Redirect(http.StatusFound, "/"+loc)
}

func (h *DemoHandler) RenderPage(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.RenderPage")
	defer span.End()

	loc, err := locale.Parse(c.Param("locale"))
	if err != nil {
		h.renderError(c, locale.Default, http.StatusNotFound, model.ErrorReasonNotFound)
		return
	}

	path := strings.Trim(c.Param("page"), "/")
	if path == "" {
		path = "demoglobal"
	}
	span.SetAttributes(attribute.String("page", path), attribute.String("locale", loc))

	page, err := h.catalogue.Lookup(path)
	if err != nil {
		span.RecordError(err)
		h.renderError(c, loc, http.StatusNotFound, model.ErrorReasonNotFound)
		return
	}

	state, err := h.pStore.GetProgress(ctx, visitorID(c))
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not read demo progress", "error", err)
		h.renderError(c, loc, http.StatusInternalServerError, model.ErrorReasonProcess)
		return
	}

	role := page.Role(state.Role(page.Flow().ID, ""))
	content, err := h.cStore.Page(ctx, page.ContentPath(role), loc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content not available")
		h.logger.ErrorContext(ctx, "could not load page content", "page", path, "locale", loc, "error", err)
		reason := model.ErrorReasonContent
		status := http.StatusInternalServerError
		if errors.Is(err, db.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.renderError(c, loc, status, reason)
		return
	}

	if page.Kind == flow.KindConfirmation && page.Completes != "" && !state.CaseCompleted(page.Completes) {
		updated, err := h.pStore.UpdateProgress(ctx, visitorID(c), func(s *model.DemoState) error {
			s.MarkCaseCompleted(page.Completes)
			return nil
		})
		if err != nil {
			h.logger.WarnContext(ctx, "could not mark case completed", "case", page.Completes, "error", err)
		} else {
			state = updated
		}
	}

	view := pageView{
		Locale:      loc,
		Locales:     locale.Supported(),
		Path:        c.Request.URL.Path,
		Kind:        page.Kind,
		Page:        page,
		Role:        role,
		Content:     content,
		Steps:       stepsOf(page),
		State:       state,
		Persona:     state.RoleData(page.Flow().ID),
		BackHref:    target(loc, page.BackTarget(role)),
		NextHref:    target(loc, page.NextTarget(role)),
		ManualStart: page.Polling.ManualStart,
	}
	switch page.Kind {
	case flow.KindVerify, flow.KindChecklist:
		view.StreamURL = "/api/verifications/" + loc + "/" + page.Path
		view.NextHref = target(loc, firstNonEmpty(page.Redirect, page.NextTarget(role)))
		if content.Shop != nil {
			view.Discount = state.Discount(page.Path)
			view.Totals = content.Shop.Totals(1, view.Discount)
		}
	case flow.KindIssue:
		view.IssueURL = "/api/issuance/" + loc + "/" + page.Path
	}

	c.Status(http.StatusOK)
	if err := h.tmplPages[page.Kind].Execute(c.Writer, view); err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "unable to execute page template", "kind", page.Kind, "error", err)
	}
}

// SubmitRole stores the role picked on a role page and continues with the
// page that follows for that role.
func (h *DemoHandler) SubmitRole(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "DemoHandler.SubmitRole")
	defer span.End()

	loc, err := locale.Parse(c.Param("locale"))
	if err != nil {
		notFound(c)
		return
	}
	page, err := h.catalogue.Lookup(c.Param("page"))
	if err != nil || page.Kind != flow.KindRole {
		notFound(c)
		return
	}

	role := c.PostForm("role")
	if !page.ValidRole(role) {
		span.SetStatus(codes.Error, "unknown role")
		h.logger.WarnContext(ctx, "unknown role submitted", "page", page.Path, "role", role)
		c.String(http.StatusBadRequest, "unknown role")
		return
	}

	_, err = h.pStore.UpdateProgress(ctx, visitorID(c), func(s *model.DemoState) error {
		s.SetRole(page.Flow().ID, role)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "could not save role", "error", err)
		c.String(http.StatusInternalServerError, "could not save role")
		return
	}

	c.Redirect(http.StatusSeeOther, target(loc, page.NextTarget(role)))
}

var errorMessages = map[string]map[model.ErrorReason]string{
	"es": {
		model.ErrorReasonProcess:  "Algo salió mal. Inténtalo de nuevo.",
		model.ErrorReasonContent:  "No se pudo cargar el contenido de esta página.",
		model.ErrorReasonBackend:  "El servicio de verificación no está disponible.",
		model.ErrorReasonNotFound: "Página no encontrada.",
	},
	"en": {
		model.ErrorReasonProcess:  "Something went wrong. Please try again.",
		model.ErrorReasonContent:  "The content of this page could not be loaded.",
		model.ErrorReasonBackend:  "The verification service is not available.",
		model.ErrorReasonNotFound: "Page not found.",
	},
}

func (h *DemoHandler) renderError(c *gin.Context, loc string, status int, reason model.ErrorReason) {
	c.Status(status)
	err := h.tmplError.Execute(c.Writer, gin.H{
		"Kind":    "error",
		"Locale":  loc,
		"Locales": locale.Supported(),
		"Path":    c.Request.URL.Path,
		"Reason":  reason.String(),
		"Message": errorMessages[loc][reason],
	})
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "unable to execute error template", "error", err)
	}
}

func visitorID(c *gin.Context) uuid.UUID {
	if id, ok := c.Get(VisitorKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"code": "PAGE_NOT_FOUND", "message": "Page not found"})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
