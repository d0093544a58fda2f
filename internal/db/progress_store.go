// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/quixsi/showcase/internal/model"
)

// ProgressStore persists the demo state of each visitor. Reading an unknown
// visitor returns a fresh state.
type ProgressStore interface {
	GetProgress(context.Context, uuid.UUID) (*model.DemoState, error)
	SaveProgress(context.Context, *model.DemoState) error
	// UpdateProgress applies fn to the stored state of a visitor and saves
	// the result atomically. An error from fn discards the change.
	UpdateProgress(context.Context, uuid.UUID, func(*model.DemoState) error) (*model.DemoState, error)
	DeleteProgress(context.Context, uuid.UUID) error
	ListProgress(context.Context) ([]*model.DemoState, error)
}
