package storage

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict: otro handler guardó el mismo registro antes (version CAS).
	ErrConflict = errors.New("write conflict")
)
