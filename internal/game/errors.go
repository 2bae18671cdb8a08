package game

import "errors"

var (
	// ErrInvalidAction is returned for actions of the wrong arity or with
	// non-finite components.
	ErrInvalidAction = errors.New("invalid action")
	// ErrShotComplete is returned when a shot is launched before Reset.
	ErrShotComplete = errors.New("shot already complete, reset required")
	// ErrShotInFlight is returned when a shot is launched while the previous
	// flight has not been played out.
	ErrShotInFlight = errors.New("shot in flight")
	// ErrInvalidScene is returned for unusable scene geometry.
	ErrInvalidScene = errors.New("invalid scene")
)
