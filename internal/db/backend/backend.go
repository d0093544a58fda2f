// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package backend opens a progress store from a connection string such as
// kvdb://testdata/showcase.db or jsondb://testdata.
package backend

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/db/jsondb"
	"github.com/quixsi/showcase/internal/db/kvdb"
)

// Store is a progress store that has to be closed after use.
type Store interface {
	db.ProgressStore
	Close() error
}

type storeWrapper struct {
	db.ProgressStore

	closeFN func() error
}

func (s *storeWrapper) Close() error {
	return s.closeFN()
}

func Open(conn string) (Store, error) {
	u, err := url.Parse(conn)
	if err != nil {
		return nil, fmt.Errorf("parse db connection string: %w", err)
	}
	path := u.Host + u.Path
	if path == "" {
		return nil, fmt.Errorf("db connection string %q without path", conn)
	}

	switch u.Scheme {
	case "kvdb":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, fmt.Errorf("open bolt db: %w", err)
		}
		store, err := kvdb.NewProgressStore(bdb)
		if err != nil {
			bdb.Close()
			return nil, fmt.Errorf("initialize progress bucket: %w", err)
		}
		return &storeWrapper{ProgressStore: store, closeFN: bdb.Close}, nil
	case "jsondb":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
		store, err := jsondb.NewProgressStore(filepath.Join(path, "progress.json"))
		if err != nil {
			return nil, fmt.Errorf("initialize progress file: %w", err)
		}
		return &storeWrapper{ProgressStore: store, closeFN: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", u.Scheme)
	}
}
