// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package db

import (
	"context"
	"encoding/json"

	"github.com/quixsi/showcase/internal/model"
)

// ContentStore serves the locale JSON of every page. A page is addressed by
// its content path, e.g. "atributos_verificados/credenciales-bancarias/verificar".
type ContentStore interface {
	ListPages(context.Context) ([]string, error)
	Raw(ctx context.Context, page, locale string) (json.RawMessage, error)
	Page(ctx context.Context, page, locale string) (*model.PageContent, error)
	Flatten(ctx context.Context, page, locale string) (map[string]string, error)
	// Missing reports per page the keys defined in one locale only.
	Missing(context.Context) (map[string][]model.MissingKey, error)
}
