// Package model implements the world actor: a single consumer goroutine
// that processes every mutation and broadcast decision from an inbound
// event queue, owns the roster of connected sessions, and is the only code
// that touches the block store.
package model

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/craftd/internal/audit"
	"github.com/adred-codev/craftd/internal/metrics"
	"github.com/adred-codev/craftd/internal/protocol"
	"github.com/adred-codev/craftd/internal/session"
	"github.com/adred-codev/craftd/internal/store"
)

// Config bundles the Model's tunables.
type Config struct {
	CommitInterval time.Duration
}

// Model is the serialized world actor. Every exported method that mutates
// world state runs on the single loop goroutine started by Run; the
// EventSink methods (OnConnect/OnDisconnect/OnData) only enqueue.
type Model struct {
	events chan func()

	store   *store.Store
	metrics *metrics.Registry
	audit   audit.Publisher
	logger  zerolog.Logger
	rng     *rand.Rand

	commitInterval time.Duration
	lastCommit     time.Time

	roster         []*session.Session
	connectedCount atomic.Int32
}

// New builds a Model over an already-open store.
func New(st *store.Store, reg *metrics.Registry, pub audit.Publisher, logger zerolog.Logger, cfg Config) *Model {
	return &Model{
		events:         make(chan func(), 4096),
		store:          st,
		metrics:        reg,
		audit:          pub,
		logger:         logger,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		commitInterval: cfg.CommitInterval,
	}
}

// ClientCount reports the number of connected sessions. Safe to call from
// any goroutine (used by the metrics/health HTTP server).
func (m *Model) ClientCount() int {
	return int(m.connectedCount.Load())
}

// Run drains the event queue on the calling goroutine until ctx is
// cancelled. Between events, if at least commitInterval has elapsed since
// the last commit, it commits the store — the same idle-driven commit
// cadence the protocol description depends on.
func (m *Model) Run(ctx context.Context) {
	m.lastCommit = time.Now()
	if err := m.store.Commit(); err != nil {
		m.logger.Error().Err(err).Msg("initial commit failed")
	}

	for {
		if time.Since(m.lastCommit) >= m.commitInterval {
			m.commitStore()
		}

		select {
		case <-ctx.Done():
			m.commitStore()
			return
		case ev := <-m.events:
			m.dispatchSafely(ev)
		case <-time.After(5 * time.Second):
		}
	}
}

// dispatchSafely runs ev, logging and continuing past any panic so one bad
// handler never takes down the loop serving every other client.
func (m *Model) dispatchSafely(ev func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("model event handler panic recovered")
		}
	}()
	ev()
}

func (m *Model) commitStore() {
	if err := m.store.Commit(); err != nil {
		m.logger.Error().Err(err).Msg("store commit failed")
		return
	}
	m.lastCommit = time.Now()
	if m.metrics != nil {
		m.metrics.StoreCommits.Inc()
	}
}

// enqueue posts ev onto the model's single-consumer event queue. Called
// from listener and session goroutines; never called from the loop
// goroutine itself.
func (m *Model) enqueue(ev func()) {
	m.events <- ev
}

// OnConnect satisfies session.EventSink; the listener calls this once per
// accepted connection, before the session's reader/writer fibers start.
func (m *Model) OnConnect(s *session.Session) {
	m.enqueue(func() { m.onConnect(s) })
}

// OnDisconnect satisfies session.EventSink; the session's reader fiber
// calls this on EOF or read error.
func (m *Model) OnDisconnect(s *session.Session) {
	m.enqueue(func() { m.onDisconnect(s) })
}

// OnData satisfies session.EventSink; the session's reader fiber calls
// this once per complete inbound line.
func (m *Model) OnData(s *session.Session, line string) {
	m.enqueue(func() { m.onData(s, line) })
}

func (m *Model) onConnect(s *session.Session) {
	id := m.nextClientID()
	s.ID = id
	nick := fmt.Sprintf("player%d", id)
	s.SetNick(nick)
	s.SetPosition(session.Position{})

	m.roster = append(m.roster, s)
	m.connectedCount.Add(1)
	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
	}

	pos := s.GetPosition()
	s.Send(protocol.TagYou, id, pos.X, pos.Y, pos.Z, pos.RX, pos.RY)
	s.Send(protocol.TagTalk, "Welcome to Craft!")
	s.Send(protocol.TagTalk, `Type "/help" for chat commands.`)

	m.broadcastPosition(s)
	m.sendExistingPositions(s)
	m.broadcastNick(s)
	m.sendExistingNicks(s)
	m.broadcastTalkAll(fmt.Sprintf("%s has joined the game.", nick))

	m.publishAudit("connect", map[string]any{"client_id": id, "nick": nick})
}

func (m *Model) onDisconnect(s *session.Session) {
	m.removeFromRoster(s)
	m.connectedCount.Add(-1)
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec()
	}

	m.broadcastDisconnect(s)
	m.broadcastTalkAll(fmt.Sprintf("%s has disconnected from the server.", s.Nick()))

	m.publishAudit("disconnect", map[string]any{"client_id": s.ID, "nick": s.Nick()})
}

func (m *Model) onData(s *session.Session, line string) {
	frame := protocol.ParseLine(line)
	switch frame.Tag {
	case protocol.TagChunk:
		if a, ok := protocol.ParseChunkArgs(frame.Args); ok {
			m.onChunk(s, a)
		}
	case protocol.TagBlock:
		if a, ok := protocol.ParseBlockArgs(frame.Args); ok {
			m.onBlock(s, a)
		}
	case protocol.TagPosition:
		if a, ok := protocol.ParsePositionArgs(frame.Args); ok {
			m.onPosition(s, a)
		}
	case protocol.TagTalk:
		m.onTalk(s, protocol.ParseTalkText(frame.Args))
	default:
		// unknown tag: silently ignored
	}
}

func (m *Model) onPosition(s *session.Session, a protocol.PositionArgs) {
	s.SetPosition(session.Position{X: a.X, Y: a.Y, Z: a.Z, RX: a.RX, RY: a.RY})
	m.broadcastPosition(s)
}

func (m *Model) publishAudit(kind string, fields map[string]any) {
	if m.audit == nil {
		return
	}
	m.audit.Publish(audit.Event{Kind: kind, Fields: fields})
}

func (m *Model) nextClientID() int {
	used := make(map[int]bool, len(m.roster))
	for _, s := range m.roster {
		used[s.ID] = true
	}
	id := 1
	for used[id] {
		id++
	}
	return id
}
