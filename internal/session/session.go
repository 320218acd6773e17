// Package session owns the server-side representation of one connected
// client: its connection, its outbound byte queue and writer fiber, its
// inbound reader fiber, and its last-known player state. The model loop is
// the only code that ever mutates Nick or Position; everything else here
// is either session-local (the outbound queue, the live flag) or
// read-only from the model's perspective.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/adred-codev/craftd/internal/protocol"
)

// Position is a session's last reported location and look angles.
type Position struct {
	X, Y, Z, RX, RY float64
}

// Counter is satisfied by a prometheus.Counter; kept minimal so this
// package doesn't need to import the metrics package.
type Counter interface {
	Inc()
}

// EventSink receives events parsed off a session's socket. The model
// implements this; sessions never call back into the model directly
// beyond these three hooks, preserving the single-consumer ordering the
// model depends on.
type EventSink interface {
	OnConnect(s *Session)
	OnDisconnect(s *Session)
	OnData(s *Session, line string)
}

// Session is one connected client.
type Session struct {
	ID int // client_id; 0 until the model assigns one on connect

	conn net.Conn
	sink EventSink

	bufferSize int
	outbound   chan []byte
	closeOnce  sync.Once
	running    atomic.Bool

	limiter        *rate.Limiter
	inboundDropped Counter

	broadcastDropped Counter

	mu       sync.RWMutex
	nick     string
	position Position
}

// Config bundles the tunables a Session needs at construction.
type Config struct {
	BufferSize       int
	OutboundQueue    int
	InboundRatePerS  float64
	InboundBurst     int
	InboundDropped   Counter
	BroadcastDropped Counter
}

// New wraps conn as a Session reporting events to sink.
func New(conn net.Conn, sink EventSink, cfg Config) *Session {
	s := &Session{
		conn:             conn,
		sink:             sink,
		bufferSize:       cfg.BufferSize,
		outbound:         make(chan []byte, cfg.OutboundQueue),
		limiter:          rate.NewLimiter(rate.Limit(cfg.InboundRatePerS), cfg.InboundBurst),
		inboundDropped:   cfg.InboundDropped,
		broadcastDropped: cfg.BroadcastDropped,
		nick:             "",
	}
	s.running.Store(true)
	return s
}

// Nick returns the session's current nickname.
func (s *Session) Nick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick
}

// SetNick updates the session's nickname. Only called from the model loop.
func (s *Session) SetNick(nick string) {
	s.mu.Lock()
	s.nick = nick
	s.mu.Unlock()
}

// GetPosition returns the session's last reported position.
func (s *Session) GetPosition() Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// SetPosition updates the session's last reported position. Only called
// from the model loop.
func (s *Session) SetPosition(p Position) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
}

// Running reports whether the session is still considered live.
func (s *Session) Running() bool {
	return s.running.Load()
}

// RemoteAddr exposes the underlying connection's remote address for
// logging.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Send encodes tag and args as a frame and enqueues it for the writer
// fiber. If the outbound queue is full the frame is dropped and the
// session is closed — a slow client must not be allowed to grow memory
// without bound.
func (s *Session) Send(tag string, args ...any) {
	s.SendRaw(protocol.Encode(tag, args...))
}

// SendRaw enqueues pre-encoded bytes, following the same bounded-queue,
// disconnect-on-overflow policy as Send.
func (s *Session) SendRaw(b []byte) {
	if !s.running.Load() {
		return
	}
	select {
	case s.outbound <- b:
	default:
		if s.broadcastDropped != nil {
			s.broadcastDropped.Inc()
		}
		s.Close()
	}
}

// Close marks the session not-running and closes its connection exactly
// once. Safe to call from any fiber.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.running.Store(false)
		_ = s.conn.Close()
	})
}

// RunReader reads frames off the socket until EOF or error, enqueueing
// on_data events (and a final on_disconnect) on sink. It never returns
// until the connection ends. Runs on its own goroutine. The connect event
// itself is raised by the listener, not here, before this goroutine is
// even started — mirroring the listener as on_connect's source.
func (s *Session) RunReader() {
	var pending []byte

	defer s.sink.OnDisconnect(s)

	buf := make([]byte, s.bufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			pending = append(pending, stripCR(buf[:n])...)
			for {
				idx := indexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := string(pending[:idx])
				pending = pending[idx+1:]

				if s.limiter.Allow() {
					s.sink.OnData(s, line)
				} else if s.inboundDropped != nil {
					s.inboundDropped.Inc()
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// RunWriter drains the outbound queue: block up to 5 seconds for the
// first chunk, then greedily coalesce whatever else is already queued
// without waiting, and send the concatenation in one write. Coalescing is
// a throughput optimization only; correctness never depends on it.
func (s *Session) RunWriter() {
	for s.running.Load() {
		var first []byte
		select {
		case b, ok := <-s.outbound:
			if !ok {
				return
			}
			first = b
		case <-time.After(5 * time.Second):
			continue
		}

		batch := first
	drain:
		for {
			select {
			case b, ok := <-s.outbound:
				if !ok {
					break drain
				}
				batch = append(batch, b...)
			default:
				break drain
			}
		}

		if _, err := s.conn.Write(batch); err != nil {
			s.Close()
			return
		}
	}
}

func stripCR(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != '\r' {
			out = append(out, c)
		}
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
