// Package room manages room lifecycle: creation, membership, capacity,
// configuration, and idle-timeout reaping.
package room

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/zt1106/baodatui3/internal/model"
	"github.com/zt1106/baodatui3/internal/notify"
	"github.com/zt1106/baodatui3/internal/services/user"
	"github.com/zt1106/baodatui3/internal/settings"
	"github.com/zt1106/baodatui3/internal/store"
)

// Manager owns the room store and the user→room index. The index and a
// room's member list always change together under the manager mutex, so
// a user is in at most one room at any observable moment.
//
// Lock order is manager → room → user; nothing in this package takes
// locks the other way around.
type Manager struct {
	rooms *store.Store[*model.Room]
	users *user.Service

	mu     sync.RWMutex
	byUser map[uint32]*store.Handle[*model.Room]

	// roomsChanged re-delivers the full simple-info list after any
	// mutation that is visible in the lobby.
	roomsChanged *notify.Channel[[]model.RoomSimpleInfo]

	settings *settings.Settings
	logger   *slog.Logger
}

// NewManager creates the room manager.
func NewManager(users *user.Service, st *settings.Settings, logger *slog.Logger) *Manager {
	return &Manager{
		rooms:        store.New[*model.Room](),
		users:        users,
		byUser:       make(map[uint32]*store.Handle[*model.Room]),
		roomsChanged: notify.NewChannel[[]model.RoomSimpleInfo](notify.DefaultWindow),
		settings:     st,
		logger:       logger.With(slog.String("component", "rooms")),
	}
}

// RoomsChanged is the lobby-scope change feed. It carries a fresh
// snapshot of the full room list after each mutation burst.
func (m *Manager) RoomsChanged() *notify.Channel[[]model.RoomSimpleInfo] {
	return m.roomsChanged
}

// CreateRoom allocates a room with the user as sole (owner) member and
// starts its idle watcher.
func (m *Manager) CreateRoom(userID uint32) (*store.Handle[*model.Room], error) {
	uh, ok := m.users.Get(userID)
	if !ok {
		return nil, model.ErrUserNotFound
	}

	m.mu.Lock()
	if _, ok := m.byUser[userID]; ok {
		m.mu.Unlock()
		return nil, model.ErrAlreadyInRoom
	}
	r := model.NewRoom()
	r.Users = append(r.Users, uh)
	h := m.rooms.Insert(r)
	m.byUser[userID] = h
	m.mu.Unlock()

	m.startIdleWatcher(r.ID, r.DetailChanged)
	m.publishRoomsChanged()

	m.logger.Info("room created",
		slog.Uint64("room_id", uint64(r.ID)),
		slog.Uint64("owner_id", uint64(userID)))
	return h, nil
}

// JoinRoom appends the user to the room's member list. Failure order:
// membership first, existence second, capacity third. The capacity
// check and the append happen in one critical section on the room, so
// two concurrent joins can never both squeeze past a full room.
func (m *Manager) JoinRoom(userID, roomID uint32) error {
	m.mu.Lock()
	if _, ok := m.byUser[userID]; ok {
		m.mu.Unlock()
		return model.ErrAlreadyInRoom
	}
	h, ok := m.rooms.Get(roomID)
	if !ok {
		m.mu.Unlock()
		return model.ErrRoomNotFound
	}
	uh, ok := m.users.Get(userID)
	if !ok {
		m.mu.Unlock()
		return model.ErrUserNotFound
	}

	err := mutateRoom(h, func(r *model.Room) error {
		if len(r.Users) >= r.Config.Basic.MaxPlayerCount {
			return model.ErrRoomFull
		}
		r.Users = append(r.Users, uh)
		return nil
	})
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.byUser[userID] = h
	m.mu.Unlock()

	m.publishRoomsChanged()
	return nil
}

// LeaveRoom removes the user from the room and the index. The last
// member leaving removes the room itself.
func (m *Manager) LeaveRoom(userID, roomID uint32) error {
	m.mu.Lock()
	if _, ok := m.byUser[userID]; !ok {
		m.mu.Unlock()
		return model.ErrUserNotInRoom
	}
	h, ok := m.rooms.Get(roomID)
	if !ok {
		m.mu.Unlock()
		return model.ErrRoomNotFound
	}

	var empty bool
	_ = mutateRoom(h, func(r *model.Room) error {
		r.Users = slices.DeleteFunc(r.Users, func(member *store.Handle[*model.User]) bool {
			return member.ID() == userID
		})
		empty = len(r.Users) == 0
		return nil
	})
	delete(m.byUser, userID)
	if empty {
		// a room must always have at least one member
		m.removeRoomLocked(roomID)
	}
	m.mu.Unlock()

	m.publishRoomsChanged()
	return nil
}

// RoomByUser returns the room the user currently belongs to.
func (m *Manager) RoomByUser(userID uint32) (*store.Handle[*model.Room], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.byUser[userID]
	return h, ok
}

// UpdateConfig replaces the room's configuration wholesale and always
// publishes a detail change. Ownership is the caller layer's concern;
// the manager trusts its caller.
func (m *Manager) UpdateConfig(roomID uint32, cfg model.GameConfig) error {
	h, ok := m.rooms.Get(roomID)
	if !ok {
		return model.ErrRoomNotFound
	}
	_ = mutateRoom(h, func(r *model.Room) error {
		r.Config = cfg
		return nil
	})
	m.publishRoomsChanged()
	return nil
}

// RemoveRoom unconditionally removes a room, pruning index entries and
// closing its detail feed so subscribers and the idle watcher end.
func (m *Manager) RemoveRoom(roomID uint32) {
	m.mu.Lock()
	m.removeRoomLocked(roomID)
	m.mu.Unlock()
	m.publishRoomsChanged()
}

// removeRoomLocked must be called with m.mu held.
func (m *Manager) removeRoomLocked(roomID uint32) {
	h, ok := m.rooms.Get(roomID)
	if !ok {
		return
	}
	m.rooms.Remove(roomID)
	for uid, rh := range m.byUser {
		if rh == h {
			delete(m.byUser, uid)
		}
	}
	var feed *notify.Channel[model.RoomDetailedInfo]
	h.View(func(r *model.Room) {
		feed = r.DetailChanged
	})
	feed.Close()
	m.logger.Info("room removed", slog.Uint64("room_id", uint64(roomID)))
}

// ListSimpleInfo projects every live room, computed fresh per call.
func (m *Manager) ListSimpleInfo() []model.RoomSimpleInfo {
	handles := m.rooms.All()
	infos := make([]model.RoomSimpleInfo, 0, len(handles))
	for _, h := range handles {
		h.View(func(r *model.Room) {
			infos = append(infos, r.SimpleInfo())
		})
	}
	return infos
}

func (m *Manager) publishRoomsChanged() {
	m.roomsChanged.Publish(m.ListSimpleInfo())
}

// startIdleWatcher spawns the room's idle reaper: a bounded wait on the
// detail feed, repeated until either the feed closes (room removed) or
// a full timeout passes with no change, in which case the room goes
// away regardless of membership. The timeout is re-read each cycle.
func (m *Manager) startIdleWatcher(roomID uint32, feed *notify.Channel[model.RoomDetailedInfo]) {
	cur := feed.Subscribe()
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), m.settings.RoomIdleTimeout())
			_, ok := cur.Next(ctx)
			timedOut := ctx.Err() != nil
			cancel()
			if ok {
				continue
			}
			if timedOut {
				m.logger.Info("removing idle room", slog.Uint64("room_id", uint64(roomID)))
				m.RemoveRoom(roomID)
			}
			return
		}
	}()
}

// mutateRoom applies f under the room's write lock, then publishes the
// updated detail projection after the lock is released. Nothing is
// published when f fails.
func mutateRoom(h *store.Handle[*model.Room], f func(*model.Room) error) error {
	var (
		err    error
		detail model.RoomDetailedInfo
		feed   *notify.Channel[model.RoomDetailedInfo]
	)
	h.Update(func(r *model.Room) {
		if err = f(r); err != nil {
			return
		}
		detail = r.DetailedInfo()
		feed = r.DetailChanged
	})
	if err != nil {
		return err
	}
	feed.Publish(detail)
	return nil
}
