// Package idcodec packs and unpacks the (client_id, request_id) pair
// the proxy uses to route an upstream reply back to the client that
// sent the matching request. It is pure and safe for concurrent use.
package idcodec

import (
	"fmt"
	"math/bits"
)

// idBits is the width of the encoded id space. 31, not 32, so the
// result stays a safe non-negative integer under any JSON numeric
// representation a client or browser might use.
const idBits = 31

// Codec packs/unpacks ids for a fixed max-clients capacity. The zero
// value is not usable; construct with New.
type Codec struct {
	clientBits uint // width of the high (client_id) field
	maxClients int  // effective capacity, 2^clientBits
	maxRequest int  // largest request_id that fits in the low field
}

// New builds a Codec for the given client capacity. maxClients must be
// at least 1. The effective capacity is rounded up to the next power
// of two (2^clientBits), which may exceed maxClients.
func New(maxClients int) (*Codec, error) {
	if maxClients < 1 {
		return nil, fmt.Errorf("idcodec: max clients must be >= 1, got %d", maxClients)
	}

	clientBits := bitsFor(maxClients)
	if clientBits >= idBits {
		return nil, fmt.Errorf("idcodec: max clients %d requires %d bits, which leaves no room for request ids", maxClients, clientBits)
	}

	return &Codec{
		clientBits: clientBits,
		maxClients: 1 << clientBits,
		maxRequest: (1 << (idBits - clientBits)) - 1,
	}, nil
}

// bitsFor returns ceil(log2(n)) for n >= 1, with bitsFor(1) == 0.
func bitsFor(n int) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len(uint(n - 1)))
}

// MaxClients returns the effective client capacity, 2^clientBits.
func (c *Codec) MaxClients() int { return c.maxClients }

// MaxRequestID returns the largest request id that Encode will accept.
func (c *Codec) MaxRequestID() int { return c.maxRequest }

// Encode packs clientID and requestID into a single upstream id.
// clientID is assumed to be in range [0, MaxClients()) by construction;
// callers enforce this, Encode does not validate it. requestID greater
// than MaxRequestID() is rejected as an overflow.
func (c *Codec) Encode(clientID, requestID int) (int, error) {
	if requestID < 0 || requestID > c.maxRequest {
		return 0, fmt.Errorf("idcodec: request id %d overflows %d available bits (max %d)", requestID, idBits-c.clientBits, c.maxRequest)
	}
	return (clientID << (idBits - c.clientBits)) | requestID, nil
}

// Decode is the exact inverse of Encode: it recovers (clientID,
// requestID) from an encoded upstream id.
func (c *Codec) Decode(encoded int) (clientID, requestID int) {
	clientID = encoded >> (idBits - c.clientBits)
	requestID = encoded & c.maxRequest
	return clientID, requestID
}
