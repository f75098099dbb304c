package game

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrInvalidState      = errors.New("operation not allowed in current phase")
	ErrNotHost           = errors.New("only the host can do that")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrRoomFull          = errors.New("room full")
	ErrCapacityExceeded  = errors.New("room capacity exceeded")
	ErrGenerationFailure = errors.New("could not generate a unique room code")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrDuplicateVote     = errors.New("player already voted this round")
	ErrInvalidConfig     = errors.New("invalid room config")
	ErrInvalidName       = errors.New("invalid player name")
)
