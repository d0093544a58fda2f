// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package model

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestDemoState_MarkCaseCompleted(t *testing.T) {
	tt := []struct {
		name     string
		existing []string
		add      []string
		expected []string
	}{
		{
			name:     "empty",
			add:      []string{"verificar-documentos"},
			expected: []string{"verificar-documentos"},
		},
		{
			name:     "duplicate is ignored",
			existing: []string{"permiso"},
			add:      []string{"permiso", "permiso"},
			expected: []string{"permiso"},
		},
		{
			name:     "blank is ignored",
			existing: []string{"permiso"},
			add:      []string{""},
			expected: []string{"permiso"},
		},
		{
			name:     "keeps order",
			existing: []string{"a"},
			add:      []string{"c", "b"},
			expected: []string{"a", "c", "b"},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			d := &DemoState{CompletedCases: tc.existing}
			for _, c := range tc.add {
				d.MarkCaseCompleted(c)
			}
			if !reflect.DeepEqual(d.CompletedCases, tc.expected) {
				t.Fatalf("got %v, expected %v", d.CompletedCases, tc.expected)
			}
		})
	}
}

func TestDemoState_RoleData(t *testing.T) {
	custom := Persona{Firstname: "Ana", Lastname: "Ruiz", DNI: "X1"}

	tt := []struct {
		name     string
		state    func() *DemoState
		expected *Persona
	}{
		{
			name:     "no role",
			state:    func() *DemoState { return NewDemoState(uuid.Nil) },
			expected: nil,
		},
		{
			name: "citizen default",
			state: func() *DemoState {
				d := NewDemoState(uuid.Nil)
				d.SetRole("tramites_licencias", RoleCitizen)
				return d
			},
			expected: &Persona{Firstname: "Clara", Lastname: "González Pérez", Position: RoleCitizen, DNI: "12345678A"},
		},
		{
			name: "police default",
			state: func() *DemoState {
				d := NewDemoState(uuid.Nil)
				d.SetRole("tramites_licencias", RolePolice)
				return d
			},
			expected: &Persona{Firstname: "Carlos", Lastname: "Martínez López", Position: RolePolice, Badge: "PL12345"},
		},
		{
			name: "custom persona",
			state: func() *DemoState {
				d := NewDemoState(uuid.Nil)
				d.SetCustomPersona("tramites_licencias", custom)
				return d
			},
			expected: &Persona{Firstname: "Ana", Lastname: "Ruiz", Position: RoleCustom, DNI: "X1"},
		},
		{
			name: "custom without persona",
			state: func() *DemoState {
				d := NewDemoState(uuid.Nil)
				d.SetRole("tramites_licencias", RoleCustom)
				return d
			},
			expected: nil,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.state().RoleData("tramites_licencias")
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("got %+v, expected %+v", got, tc.expected)
			}
		})
	}
}

func TestDemoState_Reset(t *testing.T) {
	id := uuid.MustParse("39a502ac-ba10-430d-99ac-e0955eccb73b")
	d := NewDemoState(id)
	d.SetRole("atributos_verificados", "empresario")
	d.AddIssuedCredential("estudiante")
	d.MarkCaseCompleted("permiso")
	d.ApplyDiscount("titulos_academicos/shopyfy", 10)

	d.Reset()

	if d.VisitorID != id {
		t.Fatalf("visitor id changed: %s", d.VisitorID)
	}
	if len(d.Roles) != 0 || len(d.IssuedCredentials) != 0 || len(d.CompletedCases) != 0 || len(d.Discounts) != 0 {
		t.Fatalf("state not reset: %+v", d)
	}
	if got := d.Role("atributos_verificados", "cliente"); got != "cliente" {
		t.Fatalf("expected fallback role, got %s", got)
	}
}

func TestDemoState_ApplyDiscount(t *testing.T) {
	d := NewDemoState(uuid.New())
	page := "titulos_academicos/shopyfy"

	if got := d.Discount(page); got != 0 {
		t.Fatalf("expected no discount, got %d", got)
	}
	d.ApplyDiscount(page, 0)
	d.ApplyDiscount("", 10)
	if len(d.Discounts) != 0 {
		t.Fatalf("expected empty discounts, got %v", d.Discounts)
	}
	d.ApplyDiscount(page, 10)
	if got := d.Discount(page); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	d.ApplyDiscount(page, 250)
	if got := d.Discount(page); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
}
