package room

import (
	"errors"

	"github.com/cory-johannsen/impostor/internal/game/words"
)

// Request-boundary errors. Every one of them leaves room and registry state unchanged.
var (
	// ErrRoomNotFound is returned when no live room has the requested code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotHost is returned when a host-only operation is issued by another member.
	ErrNotHost = errors.New("only the host may do that")
	// ErrInvalidCategory is returned for categories missing from the word bank.
	ErrInvalidCategory = words.ErrInvalidCategory
	// ErrEmptyRoom is returned when a round is started in a room with no members.
	ErrEmptyRoom = errors.New("room has no players")
	// ErrCodeSpaceExhausted is returned when no unused room code could be generated.
	ErrCodeSpaceExhausted = errors.New("could not allocate a room code")
	// ErrSessionNotFound is returned when a session token does not belong to the room.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoomFull is returned when a join would exceed the room's player limit.
	ErrRoomFull = errors.New("room is full")
)
