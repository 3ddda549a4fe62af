// Package ws is the websocket transport: one goroutine pair per
// connection, JSON text frames, commands dispatched through the
// registry.
package ws

import "encoding/json"

// Client to server frame types.
const (
	frameSetup   = "setup"
	frameRequest = "request"
	frameStream  = "stream"
	frameCancel  = "cancel"
)

// Server to client frame types.
const (
	frameReady    = "ready"
	frameResponse = "response"
	frameError    = "error"
	frameItem     = "item"
	frameComplete = "complete"
)

// clientFrame is every inbound frame. The setup frame carries only
// UUID; request and stream frames carry Command and Payload; cancel
// carries only ID.
type clientFrame struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	UUID    string          `json:"uuid,omitempty"`
}

// serverFrame is every outbound frame. ID echoes the client's frame id
// except on ready, which has none.
type serverFrame struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}
