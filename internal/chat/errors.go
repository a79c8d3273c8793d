package chat

import "errors"

// The service error taxonomy. The API layer maps these onto status
// codes (400 / 403 / 404 / 429); anything else is a 500.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
)
