// Package id provides the identifiers of persisted records. New ids are
// UUIDv7, so closings and movements sort by creation time.
package id

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ID is the identifier type of every table.
type ID = uuid.UUID

// ErrNil is returned by Parse for the all-zero UUID.
var ErrNil = errors.New("nil id")

// New generates a UUIDv7, falling back to v4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse reads a path or body id. Surrounding spaces are ignored and the
// nil UUID is rejected.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, err
	}
	if v == uuid.Nil {
		return uuid.Nil, ErrNil
	}
	return v, nil
}

func IsNil(v ID) bool {
	return v == uuid.Nil
}
