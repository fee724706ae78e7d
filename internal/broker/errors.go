package broker

import "errors"

// Error kinds from spec.md §7. Attach returns ErrCapacityExceeded or
// an error wrapping ErrUpstreamDial; the read loops wrap
// ErrMalformedJSON and ErrIDOverflow into their log entries. No caller
// branches on the kind: any Attach error leads to the client socket
// being closed.
var (
	// ErrCapacityExceeded is returned by Attach when the broker
	// already holds max_clients live clients, or has handed out every
	// client id the codec can encode.
	ErrCapacityExceeded = errors.New("broker: capacity exceeded")

	// ErrUpstreamDial is returned by Attach when dialing the upstream
	// browser socket fails. Transient, reported to the one attaching
	// client, never retried automatically.
	ErrUpstreamDial = errors.New("broker: upstream dial failed")

	// ErrIDOverflow is logged (wrapped) when a client's request id does
	// not fit in the id partition's low field; the client is detached.
	ErrIDOverflow = errors.New("broker: request id overflow")

	// ErrMalformedJSON is logged (wrapped) when a client or upstream
	// frame fails to parse as JSON, or its id is missing (client
	// frames) or not numeric. A client is detached; an upstream frame
	// is dropped.
	ErrMalformedJSON = errors.New("broker: malformed JSON frame")
)
