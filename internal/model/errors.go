package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidName  = errors.New("invalid display name")

	// Room errors
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("user is already in a room")
	ErrUserNotInRoom = errors.New("user is not in a room")
	ErrNotOwner      = errors.New("user is not the room owner")
)
