package model

// User is a connected (or previously connected) player. Users are
// created on first connection and live for the whole process; the UUID
// is the opaque reconnect token clients present at setup.
type User struct {
	ID                  uint32      `json:"id"`
	NickName            string      `json:"nick_name"`
	UUID                string      `json:"uuid"`
	LoginTimestamp      int64       `json:"login_timestamp"`
	Prepared            bool        `json:"prepared"`
	PreferredGameConfig *GameConfig `json:"preferred_game_config"`
}

// EntityID implements store.Entity.
func (u *User) EntityID() uint32 { return u.ID }

// SetEntityID implements store.Entity.
func (u *User) SetEntityID(id uint32) { u.ID = id }

// InRoomInfo projects the fields shown on the room page.
func (u *User) InRoomInfo() UserInRoomInfo {
	return UserInRoomInfo{
		Prepared: u.Prepared,
		NickName: u.NickName,
	}
}

// UserInRoomInfo is the per-member slice of a room's detailed view.
type UserInRoomInfo struct {
	Prepared bool   `json:"prepared"`
	NickName string `json:"nick_name"`
}
