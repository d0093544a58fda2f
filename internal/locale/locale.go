// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package locale resolves the language a page is rendered in. Every public
// URL starts with a locale segment (/es/..., /en/...).
package locale

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

const Default = "es"

var ErrUnsupported = errors.New("unsupported locale")

var (
	supported = []string{"es", "en"}
	matcher   = language.NewMatcher([]language.Tag{language.Spanish, language.English})
	absURL    = regexp.MustCompile(`(?i)^https?://`)
)

// Supported returns the locales content is available in, default first.
func Supported() []string {
	return append([]string(nil), supported...)
}

func Parse(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range supported {
		if l == s {
			return l, nil
		}
	}
	return "", ErrUnsupported
}

// FromPath extracts the leading locale segment of a URL path. Paths without
// one resolve to the default locale.
func FromPath(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if l, err := Parse(seg); err == nil {
		return l
	}
	return Default
}

// Negotiate picks the best supported locale for an Accept-Language header.
func Negotiate(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return supported[idx]
}

// SwitchPath rewrites the locale segment of path to next. A path without a
// locale segment gets one prepended.
func SwitchPath(path, next string) string {
	trimmed := strings.TrimPrefix(path, "/")
	seg, rest, _ := strings.Cut(trimmed, "/")
	if _, err := Parse(seg); err == nil {
		if rest == "" {
			return "/" + next
		}
		return "/" + next + "/" + rest
	}
	if trimmed == "" {
		return "/" + next
	}
	return "/" + next + "/" + trimmed
}

// Href localises a link taken from content. Absolute URLs and paths that
// already carry a locale are returned as they are.
func Href(loc, href string) string {
	switch {
	case href == "" || href == "#":
		return ""
	case absURL.MatchString(href):
		return href
	case strings.HasPrefix(href, "/es/") || strings.HasPrefix(href, "/en/") || href == "/es" || href == "/en":
		return href
	case strings.HasPrefix(href, "/"):
		return "/" + loc + href
	default:
		return "/" + loc + "/" + href
	}
}
