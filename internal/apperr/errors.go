// Package apperr holds sentinel errors shared by the API, MCP and CLI layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrSearchUnavailable is returned when no search index is configured.
	ErrSearchUnavailable = errors.New("search unavailable")
)
