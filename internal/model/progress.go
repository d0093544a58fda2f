// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	RoleCitizen = "ciudadano"
	RolePolice  = "policia"
	RoleCustom  = "custom"
)

// Persona is the identity shown on credentials of a role. Custom personas are
// entered by the visitor through the persona form.
type Persona struct {
	Firstname string `json:"nombre" form:"nombre"`
	Lastname  string `json:"apellidos" form:"apellidos"`
	Position  string `json:"posicion" form:"posicion"`
	DNI       string `json:"dni,omitempty" form:"dni"`
	Badge     string `json:"placa,omitempty" form:"placa"`
}

// DemoState is what a visitor has done across the demo flows. It replaces the
// browser storage flags: the selected role per flow, the finished cases and
// the credential schemas issued so far.
type DemoState struct {
	VisitorID         uuid.UUID         `json:"visitor_id"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`
	Roles             map[string]string `json:"roles,omitempty"`
	CustomPersona     *Persona          `json:"custom_persona,omitempty"`
	CompletedCases    []string          `json:"completed_cases,omitempty"`
	IssuedCredentials []string          `json:"issued_credentials,omitempty"`
	// Discounts maps a shop page to the percentage a verified credential
	// unlocked there.
	Discounts map[string]int `json:"discounts,omitempty"`
}

func NewDemoState(visitorID uuid.UUID) *DemoState {
	return &DemoState{VisitorID: visitorID, Roles: make(map[string]string)}
}

func (d *DemoState) SetRole(flowID, role string) {
	if d.Roles == nil {
		d.Roles = make(map[string]string)
	}
	d.Roles[flowID] = role
}

// Role returns the role chosen for a flow, or fallback when none was chosen.
func (d *DemoState) Role(flowID, fallback string) string {
	if r, ok := d.Roles[flowID]; ok && r != "" {
		return r
	}
	return fallback
}

func (d *DemoState) SetCustomPersona(flowID string, p Persona) {
	p.Position = RoleCustom
	d.CustomPersona = &p
	d.SetRole(flowID, RoleCustom)
}

func (d *DemoState) MarkCaseCompleted(caseID string) {
	if caseID == "" || slices.Contains(d.CompletedCases, caseID) {
		return
	}
	d.CompletedCases = append(d.CompletedCases, caseID)
}

func (d *DemoState) CaseCompleted(caseID string) bool {
	return slices.Contains(d.CompletedCases, caseID)
}

func (d *DemoState) AddIssuedCredential(schema string) {
	if schema == "" || slices.Contains(d.IssuedCredentials, schema) {
		return
	}
	d.IssuedCredentials = append(d.IssuedCredentials, schema)
}

// ApplyDiscount records percent off for page. Values are clamped to 0..100.
func (d *DemoState) ApplyDiscount(page string, percent int) {
	if page == "" || percent <= 0 {
		return
	}
	if d.Discounts == nil {
		d.Discounts = make(map[string]int)
	}
	d.Discounts[page] = min(percent, 100)
}

func (d *DemoState) Discount(page string) int {
	return d.Discounts[page]
}

func (d *DemoState) Reset() {
	id := d.VisitorID
	*d = DemoState{VisitorID: id, Roles: make(map[string]string)}
}

var defaultPersonas = map[string]Persona{
	RoleCitizen: {
		Firstname: "Clara",
		Lastname:  "González Pérez",
		Position:  RoleCitizen,
		DNI:       "12345678A",
	},
	RolePolice: {
		Firstname: "Carlos",
		Lastname:  "Martínez López",
		Position:  RolePolice,
		Badge:     "PL12345",
	},
}

// RoleData returns the persona for the role selected in a flow. A custom role
// without a stored persona yields nil, as does an unknown role.
func (d *DemoState) RoleData(flowID string) *Persona {
	role := d.Role(flowID, "")
	if role == RoleCustom {
		if d.CustomPersona == nil {
			return nil
		}
		p := *d.CustomPersona
		return &p
	}
	p, ok := defaultPersonas[role]
	if !ok {
		return nil
	}
	return &p
}
