// Package transport owns the TCP listener: accepting connections, enforcing
// the configured connection ceiling, and spawning each session's reader and
// writer fibers.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/craftd/internal/session"
)

// Config bundles the listener's tunables.
type Config struct {
	Addr            string
	MaxConnections  int
	BufferSize      int
	OutboundQueue   int
	InboundRatePerS float64
	InboundBurst    int
}

// Counter is satisfied by a prometheus.Counter.
type Counter interface {
	Inc()
}

// Listener accepts client connections and turns each into a running
// session wired to sink.
type Listener struct {
	cfg    Config
	sink   session.EventSink
	logger zerolog.Logger

	inboundDropped   Counter
	broadcastDropped Counter

	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	connected int
}

// New builds a Listener. Counters may be nil.
func New(cfg Config, sink session.EventSink, logger zerolog.Logger, inboundDropped, broadcastDropped Counter) *Listener {
	return &Listener{
		cfg:              cfg,
		sink:             sink,
		logger:           logger,
		inboundDropped:   inboundDropped,
		broadcastDropped: broadcastDropped,
	}
}

// Run binds the listener and accepts connections until ctx is cancelled or
// a non-temporary accept error occurs. It blocks until the accept loop
// exits and every spawned session has been torn down.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.cfg.Addr, err)
	}
	l.ln = ln
	l.logger.Info().Str("addr", l.cfg.Addr).Msg("listening")

	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				l.wg.Wait()
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			l.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}

		if !l.admit() {
			l.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("rejecting connection: at capacity")
			_ = conn.Close()
			continue
		}

		l.wg.Add(1)
		go l.handle(conn)
	}
}

// admit reserves a connection slot, reporting false if the server is
// already at MaxConnections.
func (l *Listener) admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.MaxConnections > 0 && l.connected >= l.cfg.MaxConnections {
		return false
	}
	l.connected++
	return true
}

func (l *Listener) release() {
	l.mu.Lock()
	l.connected--
	l.mu.Unlock()
}

// handle wires one accepted connection into a Session, raises on_connect
// on the sink before starting the session's fibers, and runs until the
// session ends.
func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer l.release()

	s := session.New(conn, l.sink, session.Config{
		BufferSize:       l.cfg.BufferSize,
		OutboundQueue:    l.cfg.OutboundQueue,
		InboundRatePerS:  l.cfg.InboundRatePerS,
		InboundBurst:     l.cfg.InboundBurst,
		InboundDropped:   l.inboundDropped,
		BroadcastDropped: l.broadcastDropped,
	})

	l.sink.OnConnect(s)

	var fibers sync.WaitGroup
	fibers.Add(2)
	go func() {
		defer fibers.Done()
		s.RunWriter()
	}()
	go func() {
		defer fibers.Done()
		s.RunReader()
	}()
	fibers.Wait()
}
