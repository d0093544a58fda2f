// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package kvdb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/model"
)

const bucketProgress = "demo_progress"

func NewProgressStore(db *bolt.DB) (*ProgressStore, error) {
	return &ProgressStore{db: db}, db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketProgress))
		return err
	})
}

type ProgressStore struct {
	db *bolt.DB
}

func (p *ProgressStore) GetProgress(ctx context.Context, visitorID uuid.UUID) (*model.DemoState, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "GetProgress")
	defer span.End()

	span.AddEvent("View bucket")
	state := model.NewDemoState(visitorID)
	return state, p.db.View(func(tx *bolt.Tx) error {
		res := tx.Bucket([]byte(bucketProgress)).Get(visitorID[:])
		if res == nil {
			span.AddEvent("unknown visitor, return empty state")
			return nil
		}
		if err := json.Unmarshal(res, state); err != nil {
			span.RecordError(err)
			return err
		}
		return nil
	})
}

func (p *ProgressStore) SaveProgress(ctx context.Context, state *model.DemoState) error {
	var span trace.Span
	_, span = tracer.Start(ctx, "SaveProgress")
	defer span.End()

	if state.VisitorID == uuid.Nil {
		err := errors.New("visitor ID is required for saving progress")
		span.RecordError(err)
		return err
	}
	now := time.Now()
	state.UpdatedAt = &now

	j, err := json.Marshal(state)
	if err != nil {
		return err
	}

	span.AddEvent("Update bucket")
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketProgress)).Put(state.VisitorID[:], j)
	})
}

func (p *ProgressStore) UpdateProgress(ctx context.Context, visitorID uuid.UUID, fn func(*model.DemoState) error) (*model.DemoState, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "UpdateProgress")
	defer span.End()

	if visitorID == uuid.Nil {
		err := errors.New("visitor ID is required for updating progress")
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Update bucket")
	var state *model.DemoState
	err := p.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketProgress))
		state = model.NewDemoState(visitorID)
		if res := bucket.Get(visitorID[:]); res != nil {
			if err := json.Unmarshal(res, state); err != nil {
				return err
			}
		}
		if err := fn(state); err != nil {
			return err
		}
		state.VisitorID = visitorID
		now := time.Now()
		state.UpdatedAt = &now

		j, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return bucket.Put(visitorID[:], j)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return state, nil
}

func (p *ProgressStore) DeleteProgress(ctx context.Context, visitorID uuid.UUID) error {
	var span trace.Span
	_, span = tracer.Start(ctx, "DeleteProgress")
	defer span.End()

	if visitorID == uuid.Nil {
		err := errors.New("visitor ID is required for deleting progress")
		span.RecordError(err)
		return err
	}
	span.AddEvent("Update bucket")
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketProgress)).Delete(visitorID[:])
	})
}

func (p *ProgressStore) ListProgress(ctx context.Context) ([]*model.DemoState, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "ListProgress")
	defer span.End()

	span.AddEvent("View bucket")
	var states []*model.DemoState
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketProgress)).ForEach(func(_, v []byte) error {
			state := &model.DemoState{}
			if err := json.Unmarshal(v, state); err != nil {
				span.RecordError(err)
				return err
			}
			states = append(states, state)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}
