package dispatch

import "errors"

// Boundary errors. Handler errors pass through dispatch untouched;
// these cover the dispatch layer itself.
var (
	// ErrUnknownCommand means no handler is registered under the name.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDecode means the raw payload could not be decoded into the
	// handler's request type.
	ErrDecode = errors.New("decode request")

	// ErrEncode means a handler response could not be encoded.
	ErrEncode = errors.New("encode response")
)
