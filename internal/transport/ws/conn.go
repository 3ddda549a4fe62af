package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zt1106/baodatui3/internal/dispatch"
)

const (
	// timeout for a single write to the socket.
	writeWait = 10 * time.Second

	// how long to wait for a pong before considering the peer gone.
	pongWait = 60 * time.Second

	// ping cadence, must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// largest inbound frame we accept.
	maxMessageSize = 64 * 1024

	// outbound frame queue per connection.
	sendQueueSize = 256
)

// conn is one authenticated websocket connection. The read pump owns
// inbound frames and the subscription table; the write pump owns the
// socket for writes. Everything outbound goes through the send queue.
type conn struct {
	ws     *websocket.Conn
	userID uint32

	registry *dispatch.Registry

	// ctx covers the whole connection; cancelling it ends every
	// in-flight request and subscription.
	ctx    context.Context
	cancel context.CancelFunc

	send chan []byte

	mu   sync.Mutex
	subs map[uint64]context.CancelFunc

	logger *slog.Logger
}

func newConn(ws *websocket.Conn, userID uint32, registry *dispatch.Registry, logger *slog.Logger) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		ws:       ws,
		userID:   userID,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendQueueSize),
		subs:     make(map[uint64]context.CancelFunc),
		logger:   logger.With(slog.Uint64("user_id", uint64(userID))),
	}
}

// run blocks until the connection is gone. It starts the write pump and
// runs the read pump on the calling goroutine.
func (c *conn) run() {
	go c.writePump()
	c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.cancel()
		_ = c.ws.Close()
		c.logger.Info("connection closed")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("read error", slog.Any("error", err))
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *conn) handleFrame(data []byte) {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("invalid frame", slog.Any("error", err))
		return
	}

	switch f.Type {
	case frameRequest:
		go c.handleRequest(f)
	case frameStream:
		c.handleStream(f)
	case frameCancel:
		c.cancelStream(f.ID)
	default:
		c.logger.Warn("unsupported frame type", slog.String("type", f.Type))
	}
}

// handleRequest runs on its own goroutine so a slow handler never
// stalls the read pump.
func (c *conn) handleRequest(f clientFrame) {
	payload, err := c.registry.DispatchRequest(c.ctx, f.Command, c.userID, f.Payload)
	if err != nil {
		c.sendError(f.ID, err)
		return
	}
	c.sendFrame(serverFrame{Type: frameResponse, ID: f.ID, Payload: payload})
}

func (c *conn) handleStream(f clientFrame) {
	ctx, cancel := context.WithCancel(c.ctx)

	c.mu.Lock()
	if _, ok := c.subs[f.ID]; ok {
		c.mu.Unlock()
		cancel()
		c.logger.Warn("duplicate stream id", slog.Uint64("frame_id", f.ID))
		return
	}
	c.subs[f.ID] = cancel
	c.mu.Unlock()

	items, err := c.registry.DispatchStream(ctx, f.Command, c.userID, f.Payload)
	if err != nil {
		c.removeSub(f.ID)
		cancel()
		c.sendError(f.ID, err)
		return
	}

	go func() {
		defer func() {
			c.removeSub(f.ID)
			cancel()
		}()
		for payload := range items {
			c.sendFrame(serverFrame{Type: frameItem, ID: f.ID, Payload: payload})
		}
		c.sendFrame(serverFrame{Type: frameComplete, ID: f.ID})
	}()
}

func (c *conn) cancelStream(id uint64) {
	c.mu.Lock()
	cancel, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *conn) removeSub(id uint64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *conn) sendError(id uint64, err error) {
	c.sendFrame(serverFrame{
		Type:  frameError,
		ID:    id,
		Code:  errorCode(err),
		Error: err.Error(),
	})
}

// sendFrame queues an outbound frame. It blocks until the queue has
// room or the connection is gone, so stream items keep their order.
func (c *conn) sendFrame(f serverFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Error("frame marshal failed", slog.Any("error", err))
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
