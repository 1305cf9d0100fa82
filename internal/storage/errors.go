package storage

import "errors"

// Sentinel errors shared by every store backend.
var (
	ErrCardNotFound    = errors.New("storage: card not found")
	ErrSourceNotFound  = errors.New("storage: source not found")
	ErrVersionConflict = errors.New("storage: card was modified concurrently")
	ErrDuplicate       = errors.New("storage: already exists")
)
