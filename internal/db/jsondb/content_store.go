// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/jeremywohl/flatten/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/locale"
	"github.com/quixsi/showcase/internal/model"
)

// NewContentStore serves locale JSON laid out as <page>/<locale>.json below
// the root of fsys.
func NewContentStore(fsys fs.FS) *ContentStore {
	return &ContentStore{
		fsys:  fsys,
		cache: make(map[string]json.RawMessage),
	}
}

type ContentStore struct {
	mu sync.RWMutex

	fsys  fs.FS
	cache map[string]json.RawMessage
}

func (s *ContentStore) ListPages(ctx context.Context) ([]string, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "ListPages")
	defer span.End()

	seen := make(map[string]struct{})
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}
		l := strings.TrimSuffix(path.Base(p), ".json")
		if _, err := locale.Parse(l); err != nil {
			return nil
		}
		seen[path.Dir(p)] = struct{}{}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res := make([]string, 0, len(seen))
	for p := range seen {
		res = append(res, p)
	}
	sort.Strings(res)
	return res, nil
}

// Raw returns the payload of a page in the requested locale. A page missing
// the locale falls back to the default locale.
func (s *ContentStore) Raw(ctx context.Context, page, loc string) (json.RawMessage, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "Raw", trace.WithAttributes(
		attribute.String("page", page),
		attribute.String("locale", loc),
	))
	defer span.End()

	page = strings.Trim(page, "/")
	if page == "" || strings.Contains(page, "..") {
		span.RecordError(db.ErrNotFound)
		return nil, fmt.Errorf("content %q: %w", page, db.ErrNotFound)
	}

	raw, err := s.load(page, loc)
	if errors.Is(err, db.ErrNotFound) && loc != locale.Default {
		span.AddEvent("fallback to default locale")
		raw, err = s.load(page, locale.Default)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return raw, nil
}

func (s *ContentStore) Page(ctx context.Context, page, loc string) (*model.PageContent, error) {
	raw, err := s.Raw(ctx, page, loc)
	if err != nil {
		return nil, err
	}
	var content model.PageContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("decode content %s/%s: %w", page, loc, err)
	}
	return &content, nil
}

// Flatten returns the page as dotted keys, e.g. "verify.error.title".
func (s *ContentStore) Flatten(ctx context.Context, page, loc string) (map[string]string, error) {
	raw, err := s.Raw(ctx, page, loc)
	if err != nil {
		return nil, err
	}
	flattened, err := flatten.FlattenString(string(raw), "", flatten.DotStyle)
	if err != nil {
		return nil, fmt.Errorf("flatten content %s/%s: %w", page, loc, err)
	}
	values := make(map[string]any)
	if err := json.Unmarshal([]byte(flattened), &values); err != nil {
		return nil, err
	}
	res := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			res[k] = val
		case nil:
			res[k] = ""
		default:
			res[k] = fmt.Sprint(val)
		}
	}
	return res, nil
}

// Missing reports, per page, the keys one locale defines and another lacks.
// Pages that only exist in a single locale are reported key by key as well.
func (s *ContentStore) Missing(ctx context.Context) (map[string][]model.MissingKey, error) {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Missing")
	defer span.End()

	pages, err := s.ListPages(ctx)
	if err != nil {
		return nil, err
	}

	res := make(map[string][]model.MissingKey)
	for _, page := range pages {
		byLocale := make(map[string]map[string]string)
		union := make(map[string]struct{})
		for _, l := range locale.Supported() {
			if _, err := s.load(page, l); err != nil {
				byLocale[l] = map[string]string{}
				continue
			}
			keys, err := s.Flatten(ctx, page, l)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			byLocale[l] = keys
			for k := range keys {
				union[k] = struct{}{}
			}
		}
		for _, l := range locale.Supported() {
			for k := range union {
				if _, ok := byLocale[l][k]; !ok {
					res[page] = append(res[page], model.MissingKey{Locale: l, Key: k})
				}
			}
		}
		sort.Slice(res[page], func(i, j int) bool {
			a, b := res[page][i], res[page][j]
			if a.Locale != b.Locale {
				return a.Locale < b.Locale
			}
			return a.Key < b.Key
		})
		if len(res[page]) == 0 {
			delete(res, page)
		}
	}
	return res, nil
}

// Reload drops every cached payload.
func (s *ContentStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]json.RawMessage)
}

func (s *ContentStore) load(page, loc string) (json.RawMessage, error) {
	name := path.Join(page, loc+".json")

	s.mu.RLock()
	raw, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return raw, nil
	}

	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("content %s: %w", name, db.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("content %s: invalid json", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[name] = data
	return data, nil
}
