// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package model

type ErrorReason int

const (
	ErrorReasonProcess ErrorReason = iota
	ErrorReasonContent
	ErrorReasonBackend
	ErrorReasonNotFound
)

func (r ErrorReason) String() string {
	switch r {
	case ErrorReasonContent:
		return "content"
	case ErrorReasonBackend:
		return "backend"
	case ErrorReasonNotFound:
		return "not_found"
	default:
		return "process"
	}
}
