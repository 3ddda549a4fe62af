package model

import (
	"github.com/zt1106/baodatui3/internal/notify"
	"github.com/zt1106/baodatui3/internal/store"
)

// RoomStatus represents the current state of a room
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "Waiting" // no game in progress
	RoomStatusInGame  RoomStatus = "InGame"  // placeholder, game engine is out of scope
)

// Room is a group of users waiting to play together. The owner is the
// first user in the member list; ownership is positional, not a field.
// A room never exists with an empty member list: the manager removes it
// when the last member leaves.
type Room struct {
	ID     uint32
	Users  []*store.Handle[*User]
	Config GameConfig
	Status RoomStatus

	// DetailChanged carries a fresh detailed projection after every
	// mutation. Immutable after construction.
	DetailChanged *notify.Channel[RoomDetailedInfo]
}

// NewRoom creates an empty room with default configuration. Membership
// is the manager's job; a freshly built room has no users yet.
func NewRoom() *Room {
	return &Room{
		Config:        DefaultGameConfig(),
		Status:        RoomStatusWaiting,
		DetailChanged: notify.NewChannel[RoomDetailedInfo](notify.DefaultWindow),
	}
}

// EntityID implements store.Entity.
func (r *Room) EntityID() uint32 { return r.ID }

// SetEntityID implements store.Entity.
func (r *Room) SetEntityID(id uint32) { r.ID = id }

// Owner returns the first member's handle. Callers must ensure the room
// is non-empty, which holds for any room still in the store.
func (r *Room) Owner() *store.Handle[*User] {
	return r.Users[0]
}

// SimpleInfo projects the fields shown in the lobby list. It reads only
// the room itself, no member locks are taken.
func (r *Room) SimpleInfo() RoomSimpleInfo {
	return RoomSimpleInfo{
		ID:           r.ID,
		Status:       r.Status,
		CurUserCount: len(r.Users),
		MaxUserCount: r.Config.Basic.MaxPlayerCount,
	}
}

// DetailedInfo projects the full room page view, locking each member
// briefly in turn.
func (r *Room) DetailedInfo() RoomDetailedInfo {
	infos := make([]UserInRoomInfo, 0, len(r.Users))
	for _, uh := range r.Users {
		uh.View(func(u *User) {
			infos = append(infos, u.InRoomInfo())
		})
	}
	return RoomDetailedInfo{
		ID:              r.ID,
		Status:          r.Status,
		UserInRoomInfos: infos,
		Config:          r.Config,
	}
}

// RoomSimpleInfo is the lobby-list projection of a room.
type RoomSimpleInfo struct {
	ID           uint32     `json:"id"`
	Status       RoomStatus `json:"status"`
	CurUserCount int        `json:"cur_user_count"`
	MaxUserCount int        `json:"max_user_count"`
}

// RoomDetailedInfo is the room-page projection of a room.
type RoomDetailedInfo struct {
	ID              uint32           `json:"id"`
	Status          RoomStatus       `json:"status"`
	UserInRoomInfos []UserInRoomInfo `json:"user_in_room_infos"`
	Config          GameConfig       `json:"config"`
}
