package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrGameUnavailable = errors.New("game data unavailable")
	ErrInvalidConfig   = errors.New("invalid wager config")
)
