// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package templates

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/quixsi/showcase/internal/flow"
	"github.com/quixsi/showcase/internal/locale"
	"github.com/quixsi/showcase/internal/model"
	"github.com/quixsi/showcase/internal/qr"
)

// pageView is handed to every page template.
type pageView struct {
	Locale  string
	Locales []string
	Path    string
	Kind    flow.Kind
	Page    *flow.Page
	Role    string
	Content *model.PageContent
	Steps   []stepView
	State   *model.DemoState
	Persona *model.Persona

	BackHref string
	NextHref string

	StreamURL   string
	IssueURL    string
	ManualStart bool

	// Discount is the percentage unlocked on a shop page, Totals the cart
	// priced with it.
	Discount int
	Totals   model.Totals
}

type stepView struct {
	Name    string
	Number  int
	Current bool
	Done    bool
}

func stepsOf(p *flow.Page) []stepView {
	idx := p.StepIndex()
	if idx < 0 {
		return nil
	}
	steps := p.Flow().Steps
	res := make([]stepView, len(steps))
	for i, s := range steps {
		res[i] = stepView{Name: s, Number: i + 1, Current: i == idx, Done: i < idx}
	}
	return res
}

// target turns a flow target into a localised URL.
func target(loc, t string) string {
	if t == "" {
		return ""
	}
	if t == flow.Home {
		return "/" + loc
	}
	return locale.Href(loc, t)
}

var funcs = template.FuncMap{
	"href": func(loc, h string) string {
		if h == flow.Home {
			return "/" + loc
		}
		return locale.Href(loc, h)
	},
	"switchLocale": locale.SwitchPath,
	"qr": func(data string) template.URL {
		u, err := qr.DataURL(data, qr.DefaultSize)
		if err != nil {
			return ""
		}
		return template.URL(u)
	},
	"completed": func(s *model.DemoState, caseID string) bool {
		return s != nil && s.CaseCompleted(caseID)
	},
	"upper": strings.ToUpper,
	"money": func(v float64) string { return fmt.Sprintf("%.2f €", v) },
	"inc":   func(i int) int { return i + 1 },
}
