// Package sentinel holds infrastructure facts returned by stores.
//
// Stores wrap these; services translate them into domain errors:
//   - ErrNotFound: the row or key does not exist
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: the entity cannot take the requested change
//   - ErrUnavailable: the backing system could not be reached
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
