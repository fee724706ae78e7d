// Package jsonx indirects JSON encode/decode through one of two
// backends, selected at startup by the DTP_JSON_EXPERIMENTAL feature
// flag (see internal/config). Both backends expose the same
// Marshal/Unmarshal signatures as encoding/json, so callers never
// branch on which one is active.
package jsonx

import (
	stdjson "encoding/json"

	expjson "github.com/go-json-experiment/json"
)

// Codec is the marshal/unmarshal pair the rest of the proxy uses.
// Its concrete implementation is fixed once at startup by New.
type Codec struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

// New returns the standard-library codec, or the experimental
// github.com/go-json-experiment/json codec when experimental is true.
// The experimental codec trades a small amount of spec compliance
// strictness for throughput; it is a pure performance toggle and
// never changes the observable wire format for the messages this
// proxy handles.
func New(experimental bool) *Codec {
	if experimental {
		return &Codec{
			marshal:   func(v any) ([]byte, error) { return expjson.Marshal(v) },
			unmarshal: func(data []byte, v any) error { return expjson.Unmarshal(data, v) },
		}
	}
	return &Codec{
		marshal:   stdjson.Marshal,
		unmarshal: stdjson.Unmarshal,
	}
}

// Marshal encodes v using the active backend.
func (c *Codec) Marshal(v any) ([]byte, error) { return c.marshal(v) }

// Unmarshal decodes data into v using the active backend.
func (c *Codec) Unmarshal(data []byte, v any) error { return c.unmarshal(data, v) }
