package gameserver

import (
	"errors"

	"github.com/cory-johannsen/impostor/internal/game/room"
)

// Error codes reported to clients in failure acks.
const (
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeNotHost            = "NOT_HOST"
	CodeInvalidCategory    = "INVALID_CATEGORY"
	CodeEmptyRoom          = "EMPTY_ROOM"
	CodeCodeSpaceExhausted = "CODE_SPACE_EXHAUSTED"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeRoomFull           = "ROOM_FULL"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInternal           = "INTERNAL"
)

// errBadRequest marks malformed or invalid payloads.
var errBadRequest = errors.New("bad request")

var errorCodes = []struct {
	err  error
	code string
}{
	{room.ErrRoomNotFound, CodeRoomNotFound},
	{room.ErrNotHost, CodeNotHost},
	{room.ErrInvalidCategory, CodeInvalidCategory},
	{room.ErrEmptyRoom, CodeEmptyRoom},
	{room.ErrCodeSpaceExhausted, CodeCodeSpaceExhausted},
	{room.ErrSessionNotFound, CodeSessionNotFound},
	{room.ErrRoomFull, CodeRoomFull},
	{errBadRequest, CodeBadRequest},
}

// ErrorCode maps err to its client-facing code. Unknown errors are INTERNAL.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
