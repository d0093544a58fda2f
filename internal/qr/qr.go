// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

// Package qr renders the codes scanned by wallet apps.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 220
	MinSize     = 64
	MaxSize     = 1024
)

var ErrEmpty = errors.New("qr: nothing to encode")

// ClampSize bounds size to [MinSize, MaxSize]. Zero or negative sizes yield
// DefaultSize.
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}

// PNG encodes data as a square PNG image of roughly size pixels.
func PNG(data string, size int) ([]byte, error) {
	if data == "" {
		return nil, ErrEmpty
	}
	png, err := qrcode.Encode(data, qrcode.Medium, ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// DataURL returns the PNG of data inlined for an img src attribute.
func DataURL(data string, size int) (string, error) {
	png, err := PNG(data, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
