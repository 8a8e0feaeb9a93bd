package apperror

import "errors"

var (
	ErrInvalidGridSize = errors.New("grid size is out of range")
	ErrInvalidCard     = errors.New("invalid card id")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNoActiveGame    = errors.New("no active game")
	ErrRecordNotFound  = errors.New("best record not found")
)
