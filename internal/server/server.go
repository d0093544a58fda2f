// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package server

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	sloggin "github.com/samber/slog-gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/flow"
	"github.com/quixsi/showcase/internal/server/templates"
)

//go:embed all:static
var staticFS embed.FS

// VisitorCookie holds the id under which the demo progress of a browser is
// stored.
const VisitorCookie = "vc_visitor"

type Options struct {
	ServiceName string
	StaticDir   string
	Admin       gin.Accounts
	Polling     templates.Polling
}

func NewServer(
	opts Options,
	catalogue *flow.Catalogue,
	cStore db.ContentStore,
	pStore db.ProgressStore,
	backend templates.Backend,
) *Server {
	s := &Server{
		logger:      slog.Default().WithGroup("http"),
		serviceName: opts.ServiceName,
		staticDir:   opts.StaticDir,
		admin:       opts.Admin,
		polling:     opts.Polling,
		catalogue:   catalogue,
		cStore:      cStore,
		pStore:      pStore,
		backend:     backend,
	}
	s.handler = s.routes()
	return s
}

type Server struct {
	serviceName string
	staticDir   string
	admin       gin.Accounts
	polling     templates.Polling
	logger      *slog.Logger
	catalogue   *flow.Catalogue
	cStore      db.ContentStore
	pStore      db.ProgressStore
	backend     templates.Backend
	handler     http.Handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	mux := gin.New()

	middlewares := []gin.HandlerFunc{
		sloggin.NewWithConfig(s.logger,
			sloggin.Config{
				DefaultLevel:     slog.LevelInfo,
				ClientErrorLevel: slog.LevelWarn,
				ServerErrorLevel: slog.LevelError,
			},
		),
		gin.Recovery(), otelgin.Middleware(s.serviceName), slogAddTraceAttributes,
	}
	mux.Use(middlewares...)

	var staticDir fs.FS
	var err error
	switch {
	case s.staticDir != "":
		staticDir = os.DirFS(s.staticDir)
	default:
		staticDir, err = fs.Sub(staticFS, "static")
		if err != nil {
			panic(err)
		}
	}
	mux.StaticFS("/static", http.FS(staticDir))

	demo := templates.NewDemoHandler(s.catalogue, s.cStore, s.pStore, s.backend, s.polling)
	admin := templates.NewAdminHandler(s.cStore, s.pStore)

	mux.GET("/qr.png", demo.QRCode)
	mux.GET("/locales/*file", demo.LocaleFile)

	if len(s.admin) > 0 {
		adminArea := mux.Group("/admin", gin.BasicAuth(s.admin))
		adminArea.GET("/", admin.RenderOverview)
		adminArea.POST("/content/reload", admin.ReloadContent)
	}

	visitors := mux.Group("/", visitor(s.logger))
	visitors.GET("/", demo.RenderRoot)
	visitors.GET("/:locale", demo.RenderPage)
	visitors.GET("/:locale/*page", demo.RenderPage)
	visitors.POST("/:locale/*page", demo.SubmitRole)

	api := mux.Group("/api", visitor(s.logger))
	api.POST("/persona", demo.SubmitPersona)
	api.GET("/verifications/*page", demo.StreamVerification)
	api.POST("/issuance/*page", demo.Issue)
	api.POST("/progress/reset", demo.ResetProgress)

	mux.NoRoute(notFound)
	return mux
}

// visitor makes sure every browser carries a visitor id cookie and exposes
// the id to the handlers.
func visitor(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var span trace.Span
		ctx := c.Request.Context()
		ctx, span = tracer.Start(ctx, "Middleware.visitor")
		defer span.End()

		raw, err := c.Cookie(VisitorCookie)
		id, perr := uuid.Parse(raw)
		if err != nil || perr != nil || id == uuid.Nil {
			id = uuid.New()
			logger.DebugContext(ctx, "new visitor", "visitor", id.String())
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, id.String(), 365*24*60*60, "/", "", false, true)
		}
		span.SetAttributes(attribute.String("visitor", id.String()))
		c.Set(templates.VisitorKey, id)
		c.Next()
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"code": "PAGE_NOT_FOUND", "message": "Page not found"})
}

func slogAddTraceAttributes(c *gin.Context) {
	sloggin.AddCustomAttributes(c,
		slog.String("trace-id", trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()),
	)
	sloggin.AddCustomAttributes(c,
		slog.String("span-id", trace.SpanFromContext(c.Request.Context()).SpanContext().SpanID().String()),
	)
	c.Next()
}
