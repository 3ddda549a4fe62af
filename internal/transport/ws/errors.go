package ws

import (
	"errors"

	"github.com/zt1106/baodatui3/internal/dispatch"
	"github.com/zt1106/baodatui3/internal/model"
)

// Stable error codes carried on wire error frames. Clients branch on
// the code, not the message.
const (
	CodeUserNotFound   = "user_not_found"
	CodeRoomNotFound   = "room_not_found"
	CodeAlreadyInRoom  = "already_in_room"
	CodeUserNotInRoom  = "user_not_in_room"
	CodeRoomFull       = "room_full"
	CodeUnauthorized   = "unauthorized"
	CodeValidation     = "validation_error"
	CodeUnknownCommand = "unknown_command"
	CodeDecode         = "decode_error"
	CodeInternal       = "internal"
)

// errorCode maps a handler error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, model.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, model.ErrAlreadyInRoom):
		return CodeAlreadyInRoom
	case errors.Is(err, model.ErrUserNotInRoom):
		return CodeUserNotInRoom
	case errors.Is(err, model.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, model.ErrNotOwner):
		return CodeUnauthorized
	case errors.Is(err, model.ErrInvalidName):
		return CodeValidation
	case errors.Is(err, dispatch.ErrUnknownCommand):
		return CodeUnknownCommand
	case errors.Is(err, dispatch.ErrDecode):
		return CodeDecode
	default:
		return CodeInternal
	}
}
