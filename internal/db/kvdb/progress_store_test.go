// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package kvdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/quixsi/showcase/internal/model"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProgressStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewProgressStore(openTestDB(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := uuid.MustParse("951812f2-9bbd-481b-a798-6653c355b9c0")
	state, err := store.GetProgress(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.VisitorID != id {
		t.Fatalf("unexpected visitor id: %s", state.VisitorID)
	}

	state.SetCustomPersona("tramites_licencias", model.Persona{Firstname: "Ana", Lastname: "Ruiz"})
	state.AddIssuedCredential("permiso")
	if err := store.SaveProgress(ctx, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.UpdatedAt == nil {
		t.Fatal("expected updated_at to be set")
	}

	got, err := store.GetProgress(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := got.RoleData("tramites_licencias"); p == nil || p.Firstname != "Ana" {
		t.Fatalf("persona not persisted: %+v", p)
	}

	other := model.NewDemoState(uuid.New())
	if err := store.SaveProgress(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, err := store.ListProgress(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 states, got %d", len(list))
	}

	if err := store.DeleteProgress(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ = store.ListProgress(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 state after delete, got %d", len(list))
	}
}

func TestProgressStore_NilVisitor(t *testing.T) {
	store, _ := NewProgressStore(openTestDB(t))
	ctx := context.Background()

	if err := store.SaveProgress(ctx, &model.DemoState{}); err == nil {
		t.Fatal("expected error on save")
	}
	if err := store.DeleteProgress(ctx, uuid.Nil); err == nil {
		t.Fatal("expected error on delete")
	}
}

func TestProgressStore_UpdateProgressConcurrent(t *testing.T) {
	ctx := context.Background()
	store, err := NewProgressStore(openTestDB(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := store.UpdateProgress(ctx, id, func(s *model.DemoState) error {
				s.MarkCaseCompleted(fmt.Sprintf("case-%d", i))
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := store.UpdateProgress(ctx, id, func(s *model.DemoState) error {
				s.SetRole(fmt.Sprintf("flow-%d", i), model.RolePolice)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	state, err := store.GetProgress(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.CompletedCases) != 25 || len(state.Roles) != 25 {
		t.Fatalf("lost updates: %d cases, %d roles", len(state.CompletedCases), len(state.Roles))
	}
}

func TestProgressStore_UpdateProgressAbort(t *testing.T) {
	ctx := context.Background()
	store, err := NewProgressStore(openTestDB(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := uuid.New()
	if _, err := store.UpdateProgress(ctx, id, func(s *model.DemoState) error {
		s.MarkCaseCompleted("titulo-verificado")
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errAbort := errors.New("abort")
	_, err = store.UpdateProgress(ctx, id, func(s *model.DemoState) error {
		s.Reset()
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	state, err := store.GetProgress(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.CaseCompleted("titulo-verificado") {
		t.Fatalf("aborted update must not be stored: %+v", state)
	}

	if _, err := store.UpdateProgress(ctx, uuid.Nil, func(*model.DemoState) error { return nil }); err == nil {
		t.Fatal("expected an error for a nil visitor")
	}
}
