package apperror

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionFull       = errors.New("session is full")
	ErrSessionTerminated = errors.New("session is terminated")
	ErrModeMismatch      = errors.New("session mode mismatch")

	ErrGameOver     = errors.New("game is already over")
	ErrNotYourTurn  = errors.New("it's not your turn")
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrInvalidCell  = errors.New("invalid cell index")
	ErrNotSeated    = errors.New("player is not seated in this session")
)
