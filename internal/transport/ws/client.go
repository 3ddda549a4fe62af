package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zt1106/baodatui3/internal/model"
)

// RequestError is a wire error frame surfaced to a client caller.
type RequestError struct {
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is the caller side of the wire protocol. It multiplexes
// concurrent requests and stream subscriptions over one websocket
// connection, matching replies to callers by frame id.
type Client struct {
	sock *websocket.Conn

	// User is the state returned by the ready frame. User.UUID is the
	// token to present on reconnect.
	User model.User

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan serverFrame
	streams map[uint64]*ClientStream

	done    chan struct{}
	readErr error
}

// Dial connects, performs the setup handshake and starts the read
// loop. An empty token requests a fresh user.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	sock, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{
		sock:    sock,
		pending: make(map[uint64]chan serverFrame),
		streams: make(map[uint64]*ClientStream),
		done:    make(chan struct{}),
	}

	if err := c.writeFrame(clientFrame{Type: frameSetup, UUID: token}); err != nil {
		_ = sock.Close()
		return nil, err
	}

	_, data, err := sock.ReadMessage()
	if err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("reading ready frame: %w", err)
	}
	var ready serverFrame
	if err := json.Unmarshal(data, &ready); err != nil || ready.Type != frameReady {
		_ = sock.Close()
		return nil, fmt.Errorf("unexpected setup reply")
	}
	if err := json.Unmarshal(ready.Payload, &c.User); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("decoding ready payload: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// Request issues a request command and decodes the response into out
// (out may be nil to discard it).
func (c *Client) Request(ctx context.Context, command string, in, out any) error {
	payload, err := marshalPayload(in)
	if err != nil {
		return err
	}

	id, reply := c.registerPending()
	defer c.dropPending(id)

	if err := c.writeFrame(clientFrame{Type: frameRequest, ID: id, Command: command, Payload: payload}); err != nil {
		return err
	}

	select {
	case f := <-reply:
		if f.Type == frameError {
			return &RequestError{Code: f.Code, Message: f.Error}
		}
		if out != nil {
			return json.Unmarshal(f.Payload, out)
		}
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed: %w", c.readErr)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientStream is a live stream subscription. Items closes when the
// server completes the stream, rejects it, or the connection drops;
// Err reports why once Items is closed.
type ClientStream struct {
	Items <-chan json.RawMessage

	items chan json.RawMessage
	err   error

	id     uint64
	client *Client
}

// Err returns the stream's terminal error, if any. Valid once Items is
// closed. A server-side rejection surfaces as a *RequestError.
func (s *ClientStream) Err() error {
	return s.err
}

// Cancel asks the server to stop the stream. Items still closes via the
// server's complete frame.
func (s *ClientStream) Cancel() error {
	return s.client.writeFrame(clientFrame{Type: frameCancel, ID: s.id})
}

// Stream subscribes to a stream command. It returns as soon as the
// subscription frame is on the wire; rejection shows up as a closed
// Items channel with Err set.
func (c *Client) Stream(ctx context.Context, command string, in any) (*ClientStream, error) {
	payload, err := marshalPayload(in)
	if err != nil {
		return nil, err
	}

	items := make(chan json.RawMessage, sendQueueSize)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	st := &ClientStream{Items: items, items: items, id: id, client: c}
	c.streams[id] = st
	c.mu.Unlock()

	if err := c.writeFrame(clientFrame{Type: frameStream, ID: id, Command: command, Payload: payload}); err != nil {
		c.dropStream(id)
		return nil, err
	}
	return st, nil
}

// Close tears the connection down; all in-flight calls fail.
func (c *Client) Close() error {
	return c.sock.Close()
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		for id, st := range c.streams {
			st.err = c.readErr
			close(st.items)
			delete(c.streams, id)
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		c.route(f)
	}
}

func (c *Client) route(f serverFrame) {
	switch f.Type {
	case frameResponse:
		c.ack(f)
	case frameError:
		// an error frame ends a stream and answers a request alike
		c.mu.Lock()
		st, isStream := c.streams[f.ID]
		if isStream {
			st.err = &RequestError{Code: f.Code, Message: f.Error}
			close(st.items)
			delete(c.streams, f.ID)
		}
		c.mu.Unlock()
		if !isStream {
			c.ack(f)
		}
	case frameItem:
		c.mu.Lock()
		st, ok := c.streams[f.ID]
		c.mu.Unlock()
		if ok {
			st.items <- f.Payload
		}
	case frameComplete:
		c.mu.Lock()
		st, ok := c.streams[f.ID]
		delete(c.streams, f.ID)
		c.mu.Unlock()
		if ok {
			close(st.items)
		}
	}
}

func (c *Client) ack(f serverFrame) {
	c.mu.Lock()
	reply, ok := c.pending[f.ID]
	c.mu.Unlock()
	if ok {
		select {
		case reply <- f:
		default:
		}
	}
}

func (c *Client) registerPending() (uint64, chan serverFrame) {
	reply := make(chan serverFrame, 1)
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = reply
	c.mu.Unlock()
	return id, reply
}

func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) dropStream(id uint64) {
	c.mu.Lock()
	st, ok := c.streams[id]
	delete(c.streams, id)
	c.mu.Unlock()
	if ok {
		close(st.items)
	}
}

func (c *Client) writeFrame(f clientFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

func marshalPayload(in any) (json.RawMessage, error) {
	if in == nil {
		return nil, nil
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return payload, nil
}
