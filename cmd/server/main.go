// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/quixsi/showcase/internal/config"
	"github.com/quixsi/showcase/internal/content"
	"github.com/quixsi/showcase/internal/db/backend"
	"github.com/quixsi/showcase/internal/db/jsondb"
	"github.com/quixsi/showcase/internal/flow"
	"github.com/quixsi/showcase/internal/server"
	"github.com/quixsi/showcase/internal/server/templates"
	"github.com/quixsi/showcase/internal/verifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("unable to read configuration", "error", err)
		os.Exit(1)
	}

	var (
		serviceName = flag.String("service-name", cfg.ServiceName, "otel service name")
		addr        = flag.String("addr", cfg.Addr, "default server address")
		dbStr       = flag.String("db", cfg.DB, "database connection string, kvdb://file.db or jsondb://dir")
		verifierURL = flag.String("verifier-url", cfg.VerifierURL, "base url of the verifier backend")
		otlpAddr    = flag.String("otlp-grpc", cfg.OTLPAddr, "default otlp/gRPC address, by default disabled. Example value: localhost:4317")
		logLevelArg = flag.String("log-level", cfg.LogLevel, "log level")
		staticDir   = flag.String("static-dir", cfg.StaticDir, "path to static directory, embedded assets if empty")
		contentDir  = flag.String("content-dir", cfg.ContentDir, "path to the locale directory, embedded content if empty")
		flowsFile   = flag.String("flows", cfg.FlowsFile, "path to a flow catalogue, embedded catalogue if empty")
	)
	flag.Parse()

	var logLevel slog.Level
	err = logLevel.UnmarshalText([]byte(*logLevelArg))
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(jsonHandler)
	if err != nil {
		logger.Error("unable to parse log level", "level-input", *logLevelArg, "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger)
	logger.Info("start and listen", "address", *addr)
	logger.Info("otlp/gRPC", "address", *otlpAddr, "service", *serviceName)
	logger.Info("verifier backend", "url", *verifierURL)

	if *otlpAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		grpcOptions := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock()}
		conn, err := grpc.DialContext(ctx, *otlpAddr, grpcOptions...)
		if err != nil {
			logger.Error("failed to create gRPC connection to collector", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		otelExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			logger.Error("failed to create trace exporter", "error", err)
			os.Exit(1)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(otelExporter))
		otel.SetTracerProvider(tp)
	}

	catalogue, err := flow.Load(*flowsFile)
	if err != nil {
		logger.Error("could not load flow catalogue", "error", err)
		os.Exit(1)
	}

	fsys, err := content.FS(*contentDir)
	if err != nil {
		logger.Error("could not open content", "error", err)
		os.Exit(1)
	}
	contentStore := jsondb.NewContentStore(fsys)
	if missing, err := contentStore.Missing(context.Background()); err != nil {
		logger.Warn("could not compare locales", "error", err)
	} else if len(missing) > 0 {
		logger.Warn("locales are out of sync", "pages", len(missing))
	}

	progressStore, err := backend.Open(*dbStr)
	if err != nil {
		logger.Error("could not initialize progress store", "db", *dbStr, "error", err)
		os.Exit(1)
	}
	defer progressStore.Close()

	admin := gin.Accounts(cfg.AdminAccounts())
	if admin == nil {
		logger.Info("admin area disabled, set ADMIN_USER and ADMIN_PASSWORD to enable it")
	}

	srv := &http.Server{
		Addr:              *addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: server.NewServer(
			server.Options{
				ServiceName: *serviceName,
				StaticDir:   *staticDir,
				Admin:       admin,
				Polling: templates.Polling{
					Interval:  cfg.PollInterval,
					StepDelay: cfg.StepDelay,
					KeepAlive: cfg.SSEKeepAlive,
				},
			},
			catalogue,
			contentStore,
			progressStore,
			verifier.NewClient(*verifierURL, cfg.RequestTimeout),
		),
	}

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("error during listen and serve", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown")
}
