package command

import (
	"context"
	"log/slog"

	"github.com/zt1106/baodatui3/internal/dispatch"
	"github.com/zt1106/baodatui3/internal/model"
	"github.com/zt1106/baodatui3/internal/notify"
	"github.com/zt1106/baodatui3/internal/services/room"
	"github.com/zt1106/baodatui3/internal/services/user"
	"github.com/zt1106/baodatui3/internal/settings"
)

// streamSendBuffer keeps stream handlers from blocking on a consumer
// that is momentarily behind.
const streamSendBuffer = 16

// Deps are the services the command handlers close over.
type Deps struct {
	Users    *user.Service
	Rooms    *room.Manager
	Settings *settings.Settings
	Logger   *slog.Logger
}

type handlers struct {
	users    *user.Service
	rooms    *room.Manager
	settings *settings.Settings
	logger   *slog.Logger
}

// Register wires every command into the registry. It must be called
// exactly once at startup; duplicate registration panics by design.
func Register(reg *dispatch.Registry, deps Deps) {
	h := &handlers{
		users:    deps.Users,
		rooms:    deps.Rooms,
		settings: deps.Settings,
		logger:   deps.Logger.With(slog.String("component", "command")),
	}

	// users
	dispatch.RegisterRequest(reg, GetCurUser, h.getCurUser)
	dispatch.RegisterRequest(reg, ChangeCurUserName, h.changeCurUserName)

	// rooms
	dispatch.RegisterRequest(reg, CreateRoom, h.createRoom)
	dispatch.RegisterRequest(reg, ListRoomSimpleInfo, h.listRoomSimpleInfo)
	dispatch.RegisterRequest(reg, LeaveRoom, h.leaveRoom)
	dispatch.RegisterRequest(reg, EnterRoom, h.enterRoom)
	dispatch.RegisterRequest(reg, ChangeGameConfig, h.changeGameConfig)
	dispatch.RegisterStream(reg, AllRoomSimpleInfoStream, h.allRoomSimpleInfoStream)
	dispatch.RegisterStream(reg, RoomDetailedInfoStream, h.roomDetailedInfoStream)
}

func (h *handlers) getCurUser(ctx context.Context, callerID uint32, _ struct{}) (model.User, error) {
	return h.users.Snapshot(callerID)
}

func (h *handlers) changeCurUserName(ctx context.Context, callerID uint32, name string) (struct{}, error) {
	return struct{}{}, h.users.Rename(callerID, name)
}

func (h *handlers) createRoom(ctx context.Context, callerID uint32, _ struct{}) (struct{}, error) {
	_, err := h.rooms.CreateRoom(callerID)
	return struct{}{}, err
}

func (h *handlers) listRoomSimpleInfo(ctx context.Context, callerID uint32, _ struct{}) ([]model.RoomSimpleInfo, error) {
	return h.rooms.ListSimpleInfo(), nil
}

func (h *handlers) leaveRoom(ctx context.Context, callerID uint32, _ struct{}) (struct{}, error) {
	rh, ok := h.rooms.RoomByUser(callerID)
	if !ok {
		return struct{}{}, model.ErrUserNotInRoom
	}
	return struct{}{}, h.rooms.LeaveRoom(callerID, rh.ID())
}

func (h *handlers) enterRoom(ctx context.Context, callerID uint32, roomID uint32) (struct{}, error) {
	return struct{}{}, h.rooms.JoinRoom(callerID, roomID)
}

func (h *handlers) changeGameConfig(ctx context.Context, callerID uint32, cfg model.GameConfig) (struct{}, error) {
	rh, ok := h.rooms.RoomByUser(callerID)
	if !ok {
		return struct{}{}, model.ErrUserNotInRoom
	}
	var ownerID uint32
	rh.View(func(r *model.Room) {
		ownerID = r.Owner().ID()
	})
	if ownerID != callerID {
		return struct{}{}, model.ErrNotOwner
	}
	return struct{}{}, h.rooms.UpdateConfig(rh.ID(), cfg)
}

// allRoomSimpleInfoStream merges the debounced lobby feed with a
// passive heartbeat: whichever fires first per cycle produces the next
// snapshot, so long-idle subscribers still hear from the server.
func (h *handlers) allRoomSimpleInfoStream(ctx context.Context, callerID uint32, _ struct{}) (<-chan []model.RoomSimpleInfo, error) {
	cur := h.rooms.RoomsChanged().Subscribe()
	out := make(chan []model.RoomSimpleInfo, streamSendBuffer)

	go func() {
		defer close(out)
		for {
			// interval is read fresh so runtime changes apply next cycle
			waitCtx, cancel := context.WithTimeout(ctx, h.settings.PassiveNotifyInterval())
			infos, ok := cur.Next(waitCtx)
			timedOut := waitCtx.Err() != nil
			cancel()
			if !ok {
				if ctx.Err() != nil {
					return
				}
				if !timedOut {
					// feed closed rather than timed out
					return
				}
				infos = h.rooms.ListSimpleInfo()
			}
			select {
			case out <- infos:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// roomDetailedInfoStream follows the caller's current room. A caller
// who is not in a room gets an empty stream, not an error.
func (h *handlers) roomDetailedInfoStream(ctx context.Context, callerID uint32, _ struct{}) (<-chan model.RoomDetailedInfo, error) {
	out := make(chan model.RoomDetailedInfo, streamSendBuffer)

	rh, ok := h.rooms.RoomByUser(callerID)
	if !ok {
		close(out)
		return out, nil
	}
	var feed *notify.Channel[model.RoomDetailedInfo]
	rh.View(func(r *model.Room) {
		feed = r.DetailChanged
	})
	cur := feed.Subscribe()

	go func() {
		defer close(out)
		if detail, ok := cur.Current(); ok {
			select {
			case out <- detail:
			case <-ctx.Done():
				return
			}
		}
		for {
			detail, ok := cur.Next(ctx)
			if !ok {
				return
			}
			select {
			case out <- detail:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
