package idcodec

import "testing"

func TestNewBitsForCapacity(t *testing.T) {
	tests := []struct {
		name           string
		maxClients     int
		wantClientBits uint
		wantCapacity   int
		wantMaxRequest int
	}{
		{"single client", 1, 0, 1, (1 << 31) - 1},
		{"two clients", 2, 1, 2, (1 << 30) - 1},
		{"four clients", 4, 2, 4, (1 << 29) - 1},
		{"three rounds up to four", 3, 2, 4, (1 << 29) - 1},
		{"five rounds up to eight", 5, 3, 8, (1 << 28) - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.maxClients)
			if err != nil {
				t.Fatalf("New(%d) error: %v", tt.maxClients, err)
			}
			if c.clientBits != tt.wantClientBits {
				t.Errorf("clientBits = %d, want %d", c.clientBits, tt.wantClientBits)
			}
			if c.MaxClients() != tt.wantCapacity {
				t.Errorf("MaxClients() = %d, want %d", c.MaxClients(), tt.wantCapacity)
			}
			if c.MaxRequestID() != tt.wantMaxRequest {
				t.Errorf("MaxRequestID() = %d, want %d", c.MaxRequestID(), tt.wantMaxRequest)
			}
		})
	}
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) should error")
	}
	if _, err := New(-1); err == nil {
		t.Error("New(-1) should error")
	}
	if _, err := New(1 << 31); err == nil {
		t.Error("New(1<<31) should error, no room left for request ids")
	}
}

// TestRoundTrip checks invariant 1 from the spec: decode(encode(c, r)) == (c, r)
// for every (c, r) in range.
func TestRoundTrip(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	for client := 0; client < c.MaxClients(); client++ {
		for _, req := range []int{0, 1, 7, c.MaxRequestID() / 2, c.MaxRequestID()} {
			encoded, err := c.Encode(client, req)
			if err != nil {
				t.Fatalf("Encode(%d, %d): %v", client, req, err)
			}
			gotClient, gotReq := c.Decode(encoded)
			if gotClient != client || gotReq != req {
				t.Errorf("Decode(Encode(%d, %d)) = (%d, %d), want (%d, %d)", client, req, gotClient, gotReq, client, req)
			}
		}
	}
}

// TestOverflow checks invariant 2: Encode raises iff request_id exceeds MaxRequestID.
func TestOverflow(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Encode(0, c.MaxRequestID()); err != nil {
		t.Errorf("Encode at boundary should not overflow: %v", err)
	}
	if _, err := c.Encode(0, c.MaxRequestID()+1); err == nil {
		t.Error("Encode one past the boundary should overflow")
	}
	if _, err := c.Encode(0, -1); err == nil {
		t.Error("Encode with negative request id should error")
	}
}

// TestS1RoundTripBoundaries reproduces scenario S1 from the spec exactly:
// max_clients=4, B=2, 31-B=29.
func TestS1RoundTripBoundaries(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := c.Encode(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if encoded != 0x60000000 {
		t.Errorf("Encode(3, 0) = %#x, want 0x60000000", encoded)
	}
	gotClient, gotReq := c.Decode(0x60000000)
	if gotClient != 3 || gotReq != 0 {
		t.Errorf("Decode(0x60000000) = (%d, %d), want (3, 0)", gotClient, gotReq)
	}

	maxReq := (1 << 29) - 1
	encoded, err = c.Encode(0, maxReq)
	if err != nil {
		t.Fatal(err)
	}
	if encoded != 0x1FFFFFFF {
		t.Errorf("Encode(0, 2^29-1) = %#x, want 0x1FFFFFFF", encoded)
	}
	gotClient, gotReq = c.Decode(0x1FFFFFFF)
	if gotClient != 0 || gotReq != maxReq {
		t.Errorf("Decode(0x1FFFFFFF) = (%d, %d), want (0, %d)", gotClient, gotReq, maxReq)
	}

	if _, err := c.Encode(0, 1<<29); err == nil {
		t.Error("Encode(0, 2^29) should overflow")
	}
}

// TestS2SingleClientRequestReply reproduces scenario S2: max_clients=2, B=1.
func TestS2SingleClientRequestReply(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := c.Encode(0, 7)
	if err != nil {
		t.Fatal(err)
	}
	if encoded != 7 {
		t.Errorf("Encode(0, 7) = %d, want 7", encoded)
	}

	encoded, err = c.Encode(1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if encoded != 0x40000007 {
		t.Errorf("Encode(1, 7) = %#x, want 0x40000007", encoded)
	}

	gotClient, gotReq := c.Decode(0x40000007)
	if gotClient != 1 || gotReq != 7 {
		t.Errorf("Decode(0x40000007) = (%d, %d), want (1, 7)", gotClient, gotReq)
	}
}
