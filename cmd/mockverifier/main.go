// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quixsi/showcase/internal/mockverifier"
)

func main() {
	var (
		addr         = flag.String("addr", "0.0.0.0:8085", "default server address")
		pendingPolls = flag.Int("pending-polls", 3, "status polls answered with pending before a session is verified")
		logLevelArg  = flag.String("log-level", "INFO", "log level")
	)
	flag.Parse()

	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(*logLevelArg))
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(jsonHandler)
	if err != nil {
		logger.Error("unable to parse log level", "level-input", *logLevelArg, "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mock := mockverifier.NewMock(logger, *addr, *pendingPolls)
	if err := mock.ListenAndServe(ctx); err != nil {
		logger.Error("failed to run mock verifier", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown")
}
