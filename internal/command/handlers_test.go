package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/zt1106/baodatui3/internal/dependencies/mocks"
	"github.com/zt1106/baodatui3/internal/dispatch"
	"github.com/zt1106/baodatui3/internal/model"
	"github.com/zt1106/baodatui3/internal/services/room"
	"github.com/zt1106/baodatui3/internal/services/user"
	"github.com/zt1106/baodatui3/internal/settings"
	"github.com/zt1106/baodatui3/internal/testutil"
)

// HandlersSuite exercises the full command surface through the
// registry, payloads in and payloads out, the way a transport would.
type HandlersSuite struct {
	suite.Suite
	users    *user.Service
	rooms    *room.Manager
	settings *settings.Settings
	registry *dispatch.Registry
	ctx      context.Context
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	logger := testutil.NopLogger()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.users = user.NewService(clk, mocks.NewMockRandom(), logger)
	s.settings = settings.New()
	s.rooms = room.NewManager(s.users, s.settings, logger)
	s.registry = dispatch.NewRegistry(logger)
	Register(s.registry, Deps{
		Users:    s.users,
		Rooms:    s.rooms,
		Settings: s.settings,
		Logger:   logger,
	})
	s.ctx = context.Background()
}

func (s *HandlersSuite) newUser() uint32 {
	return s.users.Login("").ID()
}

// request marshals in, dispatches, and unmarshals the response into out
// (out may be nil for empty responses).
func (s *HandlersSuite) request(cmd string, callerID uint32, in any, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		s.Require().NoError(err)
	}
	raw, err := s.registry.DispatchRequest(s.ctx, cmd, callerID, payload)
	if err != nil {
		return err
	}
	if out != nil {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return nil
}

func (s *HandlersSuite) TestGetCurUser() {
	id := s.newUser()

	var u model.User
	s.Require().NoError(s.request(GetCurUser, id, nil, &u))
	s.Equal(id, u.ID)
	s.NotEmpty(u.UUID)
}

func (s *HandlersSuite) TestGetCurUserUnknownCaller() {
	err := s.request(GetCurUser, 999, nil, nil)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *HandlersSuite) TestChangeCurUserName() {
	id := s.newUser()

	s.Require().NoError(s.request(ChangeCurUserName, id, "Ada", nil))

	var u model.User
	s.Require().NoError(s.request(GetCurUser, id, nil, &u))
	s.Equal("Ada", u.NickName)
}

func (s *HandlersSuite) TestChangeCurUserNameValidation() {
	id := s.newUser()

	s.ErrorIs(s.request(ChangeCurUserName, id, "", nil), model.ErrInvalidName)
	s.ErrorIs(s.request(ChangeCurUserName, id, "elevenchars", nil), model.ErrInvalidName)
}

func (s *HandlersSuite) TestLobbyScenario() {
	// first client creates a room
	owner := s.newUser()
	s.Require().NoError(s.request(CreateRoom, owner, nil, nil))

	var infos []model.RoomSimpleInfo
	s.Require().NoError(s.request(ListRoomSimpleInfo, owner, nil, &infos))
	s.Require().Len(infos, 1)
	s.Equal(1, infos[0].CurUserCount)

	// second client enters
	joiner := s.newUser()
	s.Require().NoError(s.request(EnterRoom, joiner, infos[0].ID, nil))

	s.Require().NoError(s.request(ListRoomSimpleInfo, owner, nil, &infos))
	s.Require().Len(infos, 1)
	s.Equal(2, infos[0].CurUserCount)

	// owner may change the configuration
	cfg := model.DefaultGameConfig()
	cfg.Basic.MaxPlayerCount = 4
	s.Require().NoError(s.request(ChangeGameConfig, owner, cfg, nil))

	// a non-owner may not
	s.ErrorIs(s.request(ChangeGameConfig, joiner, cfg, nil), model.ErrNotOwner)
}

func (s *HandlersSuite) TestChangeGameConfigNotInRoom() {
	id := s.newUser()
	err := s.request(ChangeGameConfig, id, model.DefaultGameConfig(), nil)
	s.ErrorIs(err, model.ErrUserNotInRoom)
}

func (s *HandlersSuite) TestLeaveRoom() {
	owner := s.newUser()
	s.Require().NoError(s.request(CreateRoom, owner, nil, nil))
	s.Require().NoError(s.request(LeaveRoom, owner, nil, nil))

	var infos []model.RoomSimpleInfo
	s.Require().NoError(s.request(ListRoomSimpleInfo, owner, nil, &infos))
	s.Empty(infos)
}

func (s *HandlersSuite) TestLeaveRoomNotInRoom() {
	id := s.newUser()
	s.ErrorIs(s.request(LeaveRoom, id, nil, nil), model.ErrUserNotInRoom)
}

func (s *HandlersSuite) TestEnterRoomNotFound() {
	id := s.newUser()
	s.ErrorIs(s.request(EnterRoom, id, uint32(999), nil), model.ErrRoomNotFound)
}

func (s *HandlersSuite) TestUnknownCommand() {
	_, err := s.registry.DispatchRequest(s.ctx, "NoSuchCommand", s.newUser(), nil)
	s.ErrorIs(err, dispatch.ErrUnknownCommand)
}

func (s *HandlersSuite) TestRoomDetailedInfoStreamEmptyWhenNotInRoom() {
	id := s.newUser()

	out, err := s.registry.DispatchStream(s.ctx, RoomDetailedInfoStream, id, nil)
	s.Require().NoError(err)

	select {
	case _, open := <-out:
		s.False(open)
	case <-time.After(time.Second):
		s.Fail("stream for a roomless caller should close immediately")
	}
}

func (s *HandlersSuite) TestRoomDetailedInfoStreamOnConfigChange() {
	owner := s.newUser()
	s.Require().NoError(s.request(CreateRoom, owner, nil, nil))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	out, err := s.registry.DispatchStream(ctx, RoomDetailedInfoStream, owner, nil)
	s.Require().NoError(err)

	cfg := model.DefaultGameConfig()
	cfg.Basic.MaxPlayerCount = 4
	s.Require().NoError(s.request(ChangeGameConfig, owner, cfg, nil))

	select {
	case raw := <-out:
		var detail model.RoomDetailedInfo
		s.Require().NoError(json.Unmarshal(raw, &detail))
		s.Equal(4, detail.Config.Basic.MaxPlayerCount)
		s.Len(detail.UserInRoomInfos, 1)
	case <-time.After(time.Second):
		s.Fail("no detail update received")
	}
}

func (s *HandlersSuite) TestRoomDetailedInfoStreamOnJoin() {
	owner := s.newUser()
	s.Require().NoError(s.request(CreateRoom, owner, nil, nil))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	out, err := s.registry.DispatchStream(ctx, RoomDetailedInfoStream, owner, nil)
	s.Require().NoError(err)

	var infos []model.RoomSimpleInfo
	s.Require().NoError(s.request(ListRoomSimpleInfo, owner, nil, &infos))
	joiner := s.newUser()
	s.Require().NoError(s.request(EnterRoom, joiner, infos[0].ID, nil))

	select {
	case raw := <-out:
		var detail model.RoomDetailedInfo
		s.Require().NoError(json.Unmarshal(raw, &detail))
		s.Len(detail.UserInRoomInfos, 2)
	case <-time.After(time.Second):
		s.Fail("no detail update received")
	}
}

func (s *HandlersSuite) TestAllRoomSimpleInfoStreamOnMutation() {
	watcher := s.newUser()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	out, err := s.registry.DispatchStream(ctx, AllRoomSimpleInfoStream, watcher, nil)
	s.Require().NoError(err)

	builder := s.newUser()
	s.Require().NoError(s.request(CreateRoom, builder, nil, nil))

	select {
	case raw := <-out:
		var infos []model.RoomSimpleInfo
		s.Require().NoError(json.Unmarshal(raw, &infos))
		s.Len(infos, 1)
	case <-time.After(time.Second):
		s.Fail("no lobby update received")
	}
}

func (s *HandlersSuite) TestAllRoomSimpleInfoStreamPassiveHeartbeat() {
	s.settings.SetPassiveNotifyInterval(30 * time.Millisecond)
	watcher := s.newUser()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	out, err := s.registry.DispatchStream(ctx, AllRoomSimpleInfoStream, watcher, nil)
	s.Require().NoError(err)

	// no mutations at all, the heartbeat alone must deliver
	select {
	case raw := <-out:
		var infos []model.RoomSimpleInfo
		s.Require().NoError(json.Unmarshal(raw, &infos))
		s.Empty(infos)
	case <-time.After(time.Second):
		s.Fail("no heartbeat received")
	}
}

func (s *HandlersSuite) TestStreamEndsWhenRoomRemoved() {
	owner := s.newUser()
	s.Require().NoError(s.request(CreateRoom, owner, nil, nil))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	out, err := s.registry.DispatchStream(ctx, RoomDetailedInfoStream, owner, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.request(LeaveRoom, owner, nil, nil))

	s.Eventually(func() bool {
		select {
		case _, open := <-out:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
