// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/quixsi/showcase/internal/model"
)

func NewProgressStore(filename string) (*ProgressStore, error) {
	store := &ProgressStore{
		filename: filename,
		states:   make(map[uuid.UUID]*model.DemoState),
	}
	if err := store.loadFromFile(); err != nil {
		return nil, err
	}
	return store, nil
}

type ProgressStore struct {
	mu sync.RWMutex

	filename string
	states   map[uuid.UUID]*model.DemoState
}

func (p *ProgressStore) GetProgress(ctx context.Context, visitorID uuid.UUID) (*model.DemoState, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "GetProgress")
	defer span.End()

	span.AddEvent("RLock")
	p.mu.RLock()
	defer span.AddEvent("RUnlock")
	defer p.mu.RUnlock()

	state, ok := p.states[visitorID]
	if !ok {
		return model.NewDemoState(visitorID), nil
	}
	return clone(state)
}

func (p *ProgressStore) SaveProgress(ctx context.Context, state *model.DemoState) error {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "SaveProgress")
	defer span.End()

	if state.VisitorID == uuid.Nil {
		err := errors.New("visitor ID is required for saving progress")
		span.RecordError(err)
		return err
	}

	span.AddEvent("Lock")
	p.mu.Lock()
	defer span.AddEvent("Unlock")
	defer p.mu.Unlock()

	now := time.Now()
	state.UpdatedAt = &now
	stored, err := clone(state)
	if err != nil {
		span.RecordError(err)
		return err
	}
	p.states[state.VisitorID] = stored
	return p.saveToFile(ctx)
}

func (p *ProgressStore) UpdateProgress(ctx context.Context, visitorID uuid.UUID, fn func(*model.DemoState) error) (*model.DemoState, error) {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "UpdateProgress")
	defer span.End()

	if visitorID == uuid.Nil {
		err := errors.New("visitor ID is required for updating progress")
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Lock")
	p.mu.Lock()
	defer span.AddEvent("Unlock")
	defer p.mu.Unlock()

	state := model.NewDemoState(visitorID)
	if stored, ok := p.states[visitorID]; ok {
		var err error
		if state, err = clone(stored); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	state.VisitorID = visitorID
	now := time.Now()
	state.UpdatedAt = &now

	stored, err := clone(state)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	p.states[visitorID] = stored
	if err := p.saveToFile(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return state, nil
}

func (p *ProgressStore) DeleteProgress(ctx context.Context, visitorID uuid.UUID) error {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "DeleteProgress")
	defer span.End()

	span.AddEvent("Lock")
	p.mu.Lock()
	defer span.AddEvent("Unlock")
	defer p.mu.Unlock()

	delete(p.states, visitorID)
	return p.saveToFile(ctx)
}

func (p *ProgressStore) ListProgress(ctx context.Context) ([]*model.DemoState, error) {
	var span trace.Span
	_, span = tracer.Start(ctx, "ListProgress")
	defer span.End()

	span.AddEvent("RLock")
	p.mu.RLock()
	defer span.AddEvent("RUnlock")
	defer p.mu.RUnlock()

	res := make([]*model.DemoState, 0, len(p.states))
	for _, s := range p.states {
		c, err := clone(s)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VisitorID.String() < res[j].VisitorID.String() })
	return res, nil
}

// saveToFile writes every state to the JSON file. Callers hold the lock.
func (p *ProgressStore) saveToFile(ctx context.Context) error {
	var span trace.Span
	_, span = tracer.Start(ctx, "SaveToFile")
	defer span.End()

	fileData, err := json.MarshalIndent(p.states, "", "  ")
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := os.WriteFile(p.filename, fileData, 0644); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (p *ProgressStore) loadFromFile() error {
	if _, err := os.Stat(p.filename); os.IsNotExist(err) {
		// File does not exist, nothing to load
		return nil
	}

	fileData, err := os.ReadFile(p.filename)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return json.Unmarshal(fileData, &p.states)
}

func clone(state *model.DemoState) (*model.DemoState, error) {
	j, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	res := &model.DemoState{}
	return res, json.Unmarshal(j, res)
}
