package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zt1106/baodatui3/internal/dispatch"
	"github.com/zt1106/baodatui3/internal/model"
	"github.com/zt1106/baodatui3/internal/services/user"
	"github.com/zt1106/baodatui3/internal/store"
)

// setupWait bounds how long a fresh connection may sit silent before
// sending its setup frame.
const setupWait = 10 * time.Second

// Handler upgrades HTTP requests to websocket connections and runs the
// setup handshake: the first frame must be a setup frame, whose uuid
// (if any) resolves the reconnecting user.
type Handler struct {
	users    *user.Service
	registry *dispatch.Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the websocket entry handler.
func NewHandler(users *user.Service, registry *dispatch.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}

	uh, ok := h.setup(sock)
	if !ok {
		_ = sock.Close()
		return
	}

	c := newConn(sock, uh.ID(), h.registry, h.logger)
	c.run()
}

// setup reads the setup frame, resolves the user and replies with a
// ready frame carrying the user's state (including the uuid a fresh
// client needs for reconnecting).
func (h *Handler) setup(sock *websocket.Conn) (*store.Handle[*model.User], bool) {
	if err := sock.SetReadDeadline(time.Now().Add(setupWait)); err != nil {
		return nil, false
	}
	_, data, err := sock.ReadMessage()
	if err != nil {
		h.logger.Warn("setup read failed", slog.Any("error", err))
		return nil, false
	}

	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Type != frameSetup {
		h.logger.Warn("expected setup frame")
		return nil, false
	}

	uh := h.users.Login(f.UUID)
	snapshot, err := h.users.Snapshot(uh.ID())
	if err != nil {
		return nil, false
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, false
	}
	ready, err := json.Marshal(serverFrame{Type: frameReady, Payload: payload})
	if err != nil {
		return nil, false
	}

	if err := sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return nil, false
	}
	if err := sock.WriteMessage(websocket.TextMessage, ready); err != nil {
		h.logger.Warn("ready write failed", slog.Any("error", err))
		return nil, false
	}
	return uh, true
}
