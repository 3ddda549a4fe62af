// Package dispatch maps command names to typed request/response and
// request/stream handlers.
//
// Type erasure happens exactly once, at registration: a typed handler
// is wrapped into a raw one that decodes the payload, invokes the
// handler and encodes the result. Everything above the registry works
// with typed values and never sees wire bytes; everything below (the
// transport) only ever sees command names and opaque payloads.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// streamBuffer is the per-subscription buffer between the encode pump
// and the transport.
const streamBuffer = 16

// RequestFunc is a typed request/response handler. callerID is the
// authenticated user behind the connection issuing the call.
type RequestFunc[Req, Res any] func(ctx context.Context, callerID uint32, req Req) (Res, error)

// StreamFunc is a typed request/stream handler. The returned channel is
// owned by the handler and must be closed when the stream ends.
type StreamFunc[Req, T any] func(ctx context.Context, callerID uint32, req Req) (<-chan T, error)

type rawRequestFunc func(ctx context.Context, callerID uint32, payload []byte) ([]byte, error)

type rawStreamFunc func(ctx context.Context, callerID uint32, payload []byte) (<-chan []byte, error)

// Registry holds the command table. Registration happens once at
// startup; dispatch is concurrent afterwards.
type Registry struct {
	mu       sync.RWMutex
	requests map[string]rawRequestFunc
	streams  map[string]rawStreamFunc
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		requests: make(map[string]rawRequestFunc),
		streams:  make(map[string]rawStreamFunc),
		logger:   logger.With(slog.String("component", "dispatch")),
	}
}

// RegisterRequest registers a request/response handler under command.
// Registering any handler twice under one name is a programming
// mistake, not a runtime condition, so it panics.
func RegisterRequest[Req, Res any](r *Registry, command string, handler RequestFunc[Req, Res]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertUnregistered(command)

	r.requests[command] = func(ctx context.Context, callerID uint32, payload []byte) ([]byte, error) {
		req, err := decode[Req](payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecode, command, err)
		}
		res, err := handler(ctx, callerID, req)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEncode, command, err)
		}
		return out, nil
	}
}

// RegisterStream registers a request/stream handler under command.
// Duplicate names panic, as with RegisterRequest.
func RegisterStream[Req, T any](r *Registry, command string, handler StreamFunc[Req, T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assertUnregistered(command)

	logger := r.logger
	r.streams[command] = func(ctx context.Context, callerID uint32, payload []byte) (<-chan []byte, error) {
		req, err := decode[Req](payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecode, command, err)
		}
		items, err := handler(ctx, callerID, req)
		if err != nil {
			return nil, err
		}

		out := make(chan []byte, streamBuffer)
		go func() {
			defer close(out)
			for {
				select {
				case item, ok := <-items:
					if !ok {
						return
					}
					encoded, err := json.Marshal(item)
					if err != nil {
						// drop only this item, the subscription lives on
						logger.Warn("dropping stream item that failed to encode",
							slog.String("command", command),
							slog.Any("error", err))
						continue
					}
					select {
					case out <- encoded:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

// assertUnregistered must be called with the write lock held. A command
// name is unique across both kinds of handler.
func (r *Registry) assertUnregistered(command string) {
	if _, ok := r.requests[command]; ok {
		panic(fmt.Sprintf("dispatch: handler for %q registered twice", command))
	}
	if _, ok := r.streams[command]; ok {
		panic(fmt.Sprintf("dispatch: handler for %q registered twice", command))
	}
}

// DispatchRequest resolves command, decodes payload, runs the handler
// and returns the encoded response.
func (r *Registry) DispatchRequest(ctx context.Context, command string, callerID uint32, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.requests[command]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return h(ctx, callerID, payload)
}

// DispatchStream resolves command, decodes payload and starts the
// subscription pump. The returned channel closes when the handler's
// stream ends or ctx is cancelled.
func (r *Registry) DispatchStream(ctx context.Context, command string, callerID uint32, payload []byte) (<-chan []byte, error) {
	r.mu.RLock()
	h, ok := r.streams[command]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return h(ctx, callerID, payload)
}

// decode tolerates an absent payload for no-argument commands.
func decode[Req any](payload []byte) (Req, error) {
	var req Req
	if len(payload) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, err
	}
	return req, nil
}
