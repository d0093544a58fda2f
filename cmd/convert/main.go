// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// convert copies the demo progress of every visitor from one storage backend
// into another, e.g. from a jsondb directory into a kvdb file.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/db/backend"
)

func main() {
	var (
		from = flag.String("from", "jsondb://testdata", "source connection string")
		to   = flag.String("to", "kvdb://output.db", "destination connection string")
	)
	flag.Parse()

	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})
	logger := slog.New(jsonHandler)

	src, err := backend.Open(*from)
	if err != nil {
		logger.Error("could not open source", "db", *from, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	dst, err := backend.Open(*to)
	if err != nil {
		logger.Error("could not open destination", "db", *to, "error", err)
		os.Exit(1)
	}
	defer dst.Close()

	logger.Info("start converting", "from", *from, "to", *to)
	n, err := into(context.Background(), dst, src)
	if err != nil {
		logger.Error("conversion failed", "copied", n, "error", err)
		os.Exit(1)
	}
	logger.Info("finished converting", "visitors", n)
}

func into(ctx context.Context, dst, src db.ProgressStore) (int, error) {
	states, err := src.ListProgress(ctx)
	if err != nil {
		return 0, err
	}
	for i, s := range states {
		if err := dst.SaveProgress(ctx, s); err != nil {
			return i, err
		}
	}
	return len(states), nil
}
