// Package errorz holds sentinel errors shared across layers. Handlers map them to status codes.
package errorz

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)
