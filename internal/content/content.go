// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package content ships the default locale JSON of every demo page.
package content

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed all:locales
var locales embed.FS

// FS returns the locale tree rooted at dir, or the embedded one when dir is
// empty.
func FS(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(locales, "locales")
}
