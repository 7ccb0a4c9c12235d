package viewer

import "errors"

var (
	// ErrInvalidPosition is returned when a selected index has no spawn spot.
	ErrInvalidPosition = errors.New("position selected is invalid")
	// ErrInvalidSelector is returned when the positions argument cannot be parsed.
	ErrInvalidSelector = errors.New("invalid positions selector")
)
