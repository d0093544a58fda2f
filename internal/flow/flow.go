// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package flow describes the demo journeys: which pages exist, how they are
// rendered and where the back and next buttons lead.
package flow

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed flows.yaml
var defaultFlows []byte

var ErrUnknownPage = errors.New("unknown page")

// Home is the target of links leading back to the landing page.
const Home = "/"

type Kind string

const (
	KindLanding      Kind = "landing"
	KindRole         Kind = "role"
	KindMedia        Kind = "media"
	KindIssue        Kind = "issue"
	KindVerify       Kind = "verify"
	KindChecklist    Kind = "checklist"
	KindCards        Kind = "cards"
	KindConfirmation Kind = "confirmation"
)

func (k Kind) valid() bool {
	switch k {
	case KindLanding, KindRole, KindMedia, KindIssue, KindVerify, KindChecklist, KindCards, KindConfirmation:
		return true
	}
	return false
}

type Catalogue struct {
	Flows []*Flow `yaml:"flows"`

	byPath map[string]*Page
}

type Flow struct {
	ID          string   `yaml:"id"`
	Steps       []string `yaml:"steps"`
	DefaultRole string   `yaml:"default_role"`
	Roles       []string `yaml:"roles"`
	// Persona enables the custom persona form on the role page.
	Persona bool    `yaml:"persona"`
	Pages   []*Page `yaml:"pages"`
}

type Page struct {
	Path         string            `yaml:"path"`
	Kind         Kind              `yaml:"kind"`
	Content      string            `yaml:"content"`
	Schema       string            `yaml:"schema"`
	SchemaByRole map[string]string `yaml:"schema_by_role"`
	Credential   map[string]string `yaml:"credential"`
	Next         string            `yaml:"next"`
	Back         string            `yaml:"back"`
	NextByRole   map[string]string `yaml:"next_by_role"`
	BackByRole   map[string]string `yaml:"back_by_role"`
	Redirect     string            `yaml:"redirect"`
	Completes    string            `yaml:"completes"`
	// Discount is the percentage a successful verification unlocks.
	Discount int     `yaml:"discount"`
	Polling  Polling `yaml:"polling"`

	flow *Flow
}

// Polling overrides the verification defaults of a page.
type Polling struct {
	Interval   time.Duration `yaml:"interval"`
	StepDelay  time.Duration `yaml:"step_delay"`
	ReadyDelay time.Duration `yaml:"ready_delay"`
	// FailureStatuses left out select the defaults, an empty list never
	// fails.
	FailureStatuses []string `yaml:"failure_statuses"`
	SimulateOnError bool     `yaml:"simulate_on_error"`
	DoneOnSimulate  bool     `yaml:"done_on_simulate"`
	// Fallback is one of "", "incomplete" or "always".
	Fallback    string `yaml:"fallback"`
	ManualStart bool   `yaml:"manual_start"`
}

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	return Parse(strings.NewReader(string(defaultFlows)))
}

// Load reads a catalogue from a YAML file. An empty filename yields the
// embedded catalogue.
func Load(filename string) (*Catalogue, error) {
	if filename == "" {
		return Default()
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open flows: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Catalogue, error) {
	c := &Catalogue{}
	if err := yaml.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalogue) index() error {
	c.byPath = make(map[string]*Page)
	for _, f := range c.Flows {
		if f.ID == "" {
			return errors.New("flow without id")
		}
		for _, p := range f.Pages {
			p.Path = strings.Trim(p.Path, "/")
			if p.Path == "" {
				return fmt.Errorf("flow %s: page without path", f.ID)
			}
			if _, ok := c.byPath[p.Path]; ok {
				return fmt.Errorf("flow %s: duplicate page %s", f.ID, p.Path)
			}
			if !p.Kind.valid() {
				return fmt.Errorf("page %s: unknown kind %q", p.Path, p.Kind)
			}
			if p.Kind == KindVerify && p.Schema == "" {
				return fmt.Errorf("page %s: verify page needs a schema", p.Path)
			}
			if p.Kind == KindIssue && p.Schema == "" && len(p.SchemaByRole) == 0 {
				return fmt.Errorf("page %s: issue page needs a schema", p.Path)
			}
			switch p.Polling.Fallback {
			case "", "incomplete", "always":
			default:
				return fmt.Errorf("page %s: unknown fallback %q", p.Path, p.Polling.Fallback)
			}
			if p.Discount < 0 || p.Discount > 100 {
				return fmt.Errorf("page %s: discount %d out of range", p.Path, p.Discount)
			}
			p.flow = f
			c.byPath[p.Path] = p
		}
	}

	for _, p := range c.byPath {
		targets := []string{p.Next, p.Back, p.Redirect}
		for _, t := range p.NextByRole {
			targets = append(targets, t)
		}
		for _, t := range p.BackByRole {
			targets = append(targets, t)
		}
		for _, t := range targets {
			if t == "" || t == Home {
				continue
			}
			if _, ok := c.byPath[strings.Trim(t, "/")]; !ok {
				return fmt.Errorf("page %s: unknown target %s", p.Path, t)
			}
		}
	}
	return nil
}

// Lookup returns the page registered for a path below the locale prefix.
func (c *Catalogue) Lookup(path string) (*Page, error) {
	p, ok := c.byPath[strings.Trim(path, "/")]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownPage)
	}
	return p, nil
}

// Pages lists every page of the catalogue in declaration order.
func (c *Catalogue) Pages() []*Page {
	var res []*Page
	for _, f := range c.Flows {
		res = append(res, f.Pages...)
	}
	return res
}

func (p *Page) Flow() *Flow {
	return p.flow
}

// Role resolves the role a page is rendered for: the chosen one when the flow
// knows it, the flow default otherwise.
func (p *Page) Role(chosen string) string {
	if p.flow == nil {
		return chosen
	}
	for _, r := range p.flow.Roles {
		if r == chosen {
			return chosen
		}
	}
	return p.flow.DefaultRole
}

// ValidRole reports whether role can be chosen in the page's flow.
func (p *Page) ValidRole(role string) bool {
	if p.flow == nil {
		return false
	}
	for _, r := range p.flow.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NextTarget is where the next button leads for a role.
func (p *Page) NextTarget(role string) string {
	if t, ok := p.NextByRole[p.Role(role)]; ok {
		return t
	}
	return p.Next
}

func (p *Page) BackTarget(role string) string {
	if t, ok := p.BackByRole[p.Role(role)]; ok {
		return t
	}
	return p.Back
}

func (p *Page) SchemaFor(role string) string {
	if s, ok := p.SchemaByRole[p.Role(role)]; ok {
		return s
	}
	return p.Schema
}

// ContentPath is the content page holding the copy of p for a role.
func (p *Page) ContentPath(role string) string {
	content := p.Content
	if content == "" {
		content = p.Path
	}
	return strings.ReplaceAll(content, "{role}", p.Role(role))
}

// StepIndex is the zero based position of the page in its wizard, or -1 for
// pages outside the step sequence.
func (p *Page) StepIndex() int {
	if p.flow == nil {
		return -1
	}
	last := p.Path[strings.LastIndex(p.Path, "/")+1:]
	for i, s := range p.flow.Steps {
		if s == last {
			return i
		}
	}
	return -1
}

var stepSuffix = regexp.MustCompile(`step-\d+(.*)?$`)

// ReplaceStep swaps the trailing step-N segment of path for step, keeping
// whatever followed it.
func ReplaceStep(path, step string) string {
	return stepSuffix.ReplaceAllString(path, step+"$1")
}
