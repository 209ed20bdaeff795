package domain

import "errors"

// Sentinel errors for the domain layer.
//
// Absence is not an error at the repository boundary: GetByID returns
// (nil, nil) and Delete returns false. ErrNotFound is used by outer layers
// (HTTP, CLI) that must turn absence into a failure.
var (
	ErrValidation         = errors.New("domain: validation failed")
	ErrBackendUnavailable = errors.New("domain: backend unavailable")
	ErrConfiguration      = errors.New("domain: configuration error")
	ErrNotFound           = errors.New("domain: not found")
)
