// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package db

import "errors"

var ErrNotFound = errors.New("not found")
