// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package jsondb

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/quixsi/showcase/internal/db"
	"github.com/quixsi/showcase/internal/model"
)

func testContentFS() fstest.MapFS {
	return fstest.MapFS{
		"demoglobal/es.json": {Data: []byte(`{"title":"Demos","cards":[{"key":"salud","title":"Salud"}]}`)},
		"demoglobal/en.json": {Data: []byte(`{"title":"Demos","cards":[{"key":"salud","title":"Health"}]}`)},
		"atributos_verificados/credenciales-bancarias/verificar/es.json": {Data: []byte(`{
			"verify": {"title":"Verificar","verify_steps":["a","b"],"error":{"title":"Error","message":"Fallo"}}
		}`)},
		"atributos_verificados/credenciales-bancarias/verificar/en.json": {Data: []byte(`{
			"verify": {"title":"Verify","verify_steps":["a","b"],"error":{"title":"Error"}}
		}`)},
		"credenciales-profesionales/ministerio/es.json": {Data: []byte(`{"title":"Ministerio"}`)},
		"broken/es.json":                                {Data: []byte(`{"title":`)},
		"README.md":                                     {Data: []byte(`not content`)},
	}
}

func TestContentStore_ListPages(t *testing.T) {
	store := NewContentStore(testContentFS())

	got, err := store.ListPages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{
		"atributos_verificados/credenciales-bancarias/verificar",
		"broken",
		"credenciales-profesionales/ministerio",
		"demoglobal",
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
}

func TestContentStore_Page(t *testing.T) {
	store := NewContentStore(testContentFS())
	ctx := context.Background()

	testCases := []struct {
		name          string
		page          string
		locale        string
		expectedTitle string
		expectedErr   error
	}{
		{name: "spanish", page: "demoglobal", locale: "es", expectedTitle: "Demos"},
		{name: "leading slash", page: "/demoglobal/", locale: "en", expectedTitle: "Demos"},
		{name: "falls back to default locale", page: "credenciales-profesionales/ministerio", locale: "en", expectedTitle: "Ministerio"},
		{name: "unknown page", page: "nope", locale: "es", expectedErr: db.ErrNotFound},
		{name: "path traversal", page: "../etc", locale: "es", expectedErr: db.ErrNotFound},
		{name: "empty page", page: "", locale: "es", expectedErr: db.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.Page(ctx, tc.page, tc.locale)
			if !errors.Is(err, tc.expectedErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.expectedErr != nil {
				return
			}
			if got.Title != tc.expectedTitle {
				t.Fatalf("got title %q, expected %q", got.Title, tc.expectedTitle)
			}
		})
	}

	if _, err := store.Page(ctx, "broken", "es"); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func TestContentStore_Flatten(t *testing.T) {
	store := NewContentStore(testContentFS())

	got, err := store.Flatten(context.Background(), "atributos_verificados/credenciales-bancarias/verificar", "es")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := map[string]string{
		"verify.title":          "Verificar",
		"verify.verify_steps.0": "a",
		"verify.verify_steps.1": "b",
		"verify.error.title":    "Error",
		"verify.error.message":  "Fallo",
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
}

func TestContentStore_Missing(t *testing.T) {
	fsys := testContentFS()
	delete(fsys, "broken/es.json")
	store := NewContentStore(fsys)

	got, err := store.Missing(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := map[string][]model.MissingKey{
		"atributos_verificados/credenciales-bancarias/verificar": {
			{Locale: "en", Key: "verify.error.message"},
		},
		"credenciales-profesionales/ministerio": {
			{Locale: "en", Key: "title"},
		},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
}

func TestContentStore_Reload(t *testing.T) {
	fsys := testContentFS()
	store := NewContentStore(fsys)
	ctx := context.Background()

	if _, err := store.Page(ctx, "demoglobal", "es"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fsys["demoglobal/es.json"] = &fstest.MapFile{Data: []byte(`{"title":"Nuevo"}`)}

	cached, _ := store.Page(ctx, "demoglobal", "es")
	if cached.Title != "Demos" {
		t.Fatalf("expected cached title, got %q", cached.Title)
	}

	store.Reload()
	fresh, _ := store.Page(ctx, "demoglobal", "es")
	if fresh.Title != "Nuevo" {
		t.Fatalf("expected reloaded title, got %q", fresh.Title)
	}
}
