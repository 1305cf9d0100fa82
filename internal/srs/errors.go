package srs

import "errors"

// Sentinel errors for the srs package.
var (
	ErrInvalidQuality   = errors.New("srs: invalid quality")
	ErrInvalidCardState = errors.New("srs: invalid card state")
)
