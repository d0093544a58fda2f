// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package templates

import (
	"html/template"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/model"
)

func NewAdminHandler(cStore db.ContentStore, pStore db.ProgressStore) *AdminHandler {
	return &AdminHandler{
		tmplAdmin: template.Must(template.New("admin.html").Funcs(funcs).ParseFS(templates, "admin.html")),
		cStore:    cStore,
		pStore:    pStore,
		logger:    slog.Default().WithGroup("http"),
	}
}

type AdminHandler struct {
	tmplAdmin *template.Template
	cStore    db.ContentStore
	pStore    db.ProgressStore
	logger    *slog.Logger
}

type counter struct {
	Name  string
	Count int
}

// overview sums up the progress of all visitors.
type overview struct {
	Visitors    int
	Cases       []counter
	Credentials []counter
	Roles       []counter
	Pages       int
	Missing     map[string][]model.MissingKey
}

func summarize(states []*model.DemoState) overview {
	cases := make(map[string]int)
	creds := make(map[string]int)
	roles := make(map[string]int)
	for _, s := range states {
		for _, c := range s.CompletedCases {
			cases[c]++
		}
		for _, c := range s.IssuedCredentials {
			creds[c]++
		}
		for f, r := range s.Roles {
			roles[f+"/"+r]++
		}
	}
	return overview{
		Visitors:    len(states),
		Cases:       sorted(cases),
		Credentials: sorted(creds),
		Roles:       sorted(roles),
	}
}

func sorted(m map[string]int) []counter {
	res := make([]counter, 0, len(m))
	for k, v := range m {
		res = append(res, counter{Name: k, Count: v})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].Name < res[j].Name
	})
	return res
}

func (a *AdminHandler) RenderOverview(c *gin.Context) {
	var span trace.Span
	ctx := c.Request.Context()
	ctx, span = tracer.Start(ctx, "AdminHandler.RenderOverview")
	defer span.End()

	states, err := a.pStore.ListProgress(ctx)
	if err != nil {
		span.RecordError(err)
		a.logger.ErrorContext(ctx, "could not list demo progress", "error", err)
		c.String(http.StatusInternalServerError, "could not list demo progress")
		return
	}
	pages, err := a.cStore.ListPages(ctx)
	if err != nil {
		span.RecordError(err)
		a.logger.ErrorContext(ctx, "could not list content pages", "error", err)
		c.String(http.StatusInternalServerError, "could not list content pages")
		return
	}
	missing, err := a.cStore.Missing(ctx)
	if err != nil {
		span.RecordError(err)
		a.logger.ErrorContext(ctx, "could not compare locales", "error", err)
		c.String(http.StatusInternalServerError, "could not compare locales")
		return
	}

	view := summarize(states)
	view.Pages = len(pages)
	view.Missing = missing

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, view)
		return
	}
	if err := a.tmplAdmin.Execute(c.Writer, view); err != nil {
		span.RecordError(err)
		a.logger.ErrorContext(ctx, "unable to execute admin template", "error", err)
	}
}

// ReloadContent drops cached locale JSON so edited files show up.
func (a *AdminHandler) ReloadContent(c *gin.Context) {
	r, ok := a.cStore.(interface{ Reload() })
	if !ok {
		c.String(http.StatusNotImplemented, "content store can not reload")
		return
	}
	r.Reload()
	a.logger.InfoContext(c.Request.Context(), "content reloaded")
	c.Redirect(http.StatusSeeOther, "/admin/")
}
