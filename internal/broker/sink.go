package broker

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// sink delivers outbound frames to one client's websocket, decoupling
// the broker's fan-out/routing goroutines from that client's write
// speed. Two implementations trade bounded-with-drops for
// unbounded-without-drops; neither blocks the pusher. Which one is active is fixed at broker
// construction by the DTP_QUEUE_BACKEND feature flag (see
// internal/config).
type sink interface {
	// push enqueues a frame for delivery. Never blocks.
	push(msg []byte)
	// run drains the sink onto conn until close is called or a write
	// fails. Intended to be the body of the client's write goroutine.
	run(conn *websocket.Conn, logger zerolog.Logger)
	// close stops run and releases resources. Safe to call once.
	close()
}

// chanSink is a small bounded channel. A full channel means the
// client isn't keeping up; the newest frame is silently dropped
// rather than blocking the broker's fan-out loop, since spec.md §5
// states fan-out need not be atomic and clients may observe events at
// different wall-clock moments. A push after close is also dropped.
type chanSink struct {
	mu        sync.Mutex
	ch        chan []byte
	closed    bool
	closeOnce sync.Once
}

const chanSinkBuffer = 256

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan []byte, chanSinkBuffer)}
}

func (s *chanSink) push(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		// Buffer full: drop rather than block the caller.
	}
}

func (s *chanSink) run(conn *websocket.Conn, logger zerolog.Logger) {
	for msg := range s.ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug().Err(err).Msg("client write failed")
			return
		}
	}
}

func (s *chanSink) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// queueSink backs outbound frames with an unbounded FIFO
// (github.com/eapache/queue), so a momentarily slow client never
// drops a frame, at the cost of unbounded memory growth if it never
// catches up. Selected by DTP_QUEUE_BACKEND=true.
type queueSink struct {
	mu        sync.Mutex
	cond      *sync.Cond
	q         *queue.Queue
	closed    bool
	closeOnce sync.Once
}

func newQueueSink() *queueSink {
	s := &queueSink{q: queue.New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *queueSink) push(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.q.Add(msg)
	s.cond.Signal()
}

func (s *queueSink) run(conn *websocket.Conn, logger zerolog.Logger) {
	for {
		s.mu.Lock()
		for s.q.Length() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.q.Length() == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		msg := s.q.Remove().([]byte)
		s.mu.Unlock()

		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug().Err(err).Msg("client write failed")
			return
		}
	}
}

func (s *queueSink) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cond.Broadcast()
	})
}

func newSink(queueBackend bool) sink {
	if queueBackend {
		return newQueueSink()
	}
	return newChanSink()
}
