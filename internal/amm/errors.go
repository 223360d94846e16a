package amm

import "errors"

var (
	// ErrInsufficientReserve means the requested output cannot be taken from
	// the pool without draining the output reserve.
	ErrInsufficientReserve = errors.New("requested output exceeds pool reserve")

	// ErrInvalidCommission means the commission rate is one or more.
	ErrInvalidCommission = errors.New("commission rate must be below one")
)
