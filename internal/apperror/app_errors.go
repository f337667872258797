package apperror

import "errors"

var (
	ErrGameNotStarted    = errors.New("game not started")
	ErrInvalidPosition   = errors.New("invalid card positions")
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrCorruptedState    = errors.New("stored game state is corrupted")
	ErrConcurrentUpdate  = errors.New("game state changed concurrently, retries exhausted")
	ErrMissingPosition   = errors.New("pos1 and pos2 are required")
	ErrSessionIDRequired = errors.New("session id is required")
)
