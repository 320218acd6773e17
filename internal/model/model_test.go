package model

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/craftd/internal/protocol"
	"github.com/adred-codev/craftd/internal/session"
	"github.com/adred-codev/craftd/internal/store"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "craft.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, nil, nil, zerolog.Nop(), Config{CommitInterval: time.Minute})
}

// newTestSession builds a Session whose outbound frames can be read back
// via a drain goroutine, without running RunReader (Run is never started;
// tests call handlers directly from the test goroutine, which stands in
// for the model's single loop goroutine).
func newTestSession(t *testing.T, m *Model) (*session.Session, *frameReader) {
	t.Helper()
	server, client := net.Pipe()
	s := session.New(server, m, session.Config{
		BufferSize:      1024,
		OutboundQueue:   64,
		InboundRatePerS: 1000,
		InboundBurst:    1000,
	})
	go s.RunWriter()
	fr := newFrameReader(client)
	t.Cleanup(func() { s.Close(); client.Close() })
	return s, fr
}

// frameReader accumulates newline-delimited frames written by a session's
// writer fiber on a background goroutine, so tests can assert on them
// without hand-rolling buffered reads.
type frameReader struct {
	lines chan string
}

func newFrameReader(conn net.Conn) *frameReader {
	fr := &frameReader{lines: make(chan string, 256)}
	go func() {
		buf := make([]byte, 4096)
		var pending []byte
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				for {
					idx := -1
					for i, b := range pending {
						if b == '\n' {
							idx = i
							break
						}
					}
					if idx < 0 {
						break
					}
					fr.lines <- string(pending[:idx])
					pending = pending[idx+1:]
				}
			}
			if err != nil {
				close(fr.lines)
				return
			}
		}
	}()
	return fr
}

func (fr *frameReader) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-fr.lines:
		if !ok {
			t.Fatal("frame reader closed with no more lines")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return ""
}

func TestOnConnectJoinBootstrap(t *testing.T) {
	m := newTestModel(t)
	s, fr := newTestSession(t, m)

	m.onConnect(s)

	if got := fr.next(t); got != "U,1,0,0,0,0,0" {
		t.Fatalf("first frame: got %q", got)
	}
	if got := fr.next(t); got != "T,Welcome to Craft!" {
		t.Fatalf("second frame: got %q", got)
	}
	if got := fr.next(t); got != `T,Type "/help" for chat commands.` {
		t.Fatalf("third frame: got %q", got)
	}
}

func TestUniqueClientIDsAndReclamation(t *testing.T) {
	m := newTestModel(t)
	s1, _ := newTestSession(t, m)
	s2, _ := newTestSession(t, m)
	s3, _ := newTestSession(t, m)

	m.onConnect(s1)
	m.onConnect(s2)
	if s1.ID == s2.ID {
		t.Fatalf("expected distinct ids, got %d and %d", s1.ID, s2.ID)
	}

	m.onDisconnect(s1)
	m.onConnect(s3)
	if s3.ID != s1.ID {
		t.Fatalf("expected reclaimed id %d, got %d", s1.ID, s3.ID)
	}
}

func TestSelfSuppressionOfPosition(t *testing.T) {
	m := newTestModel(t)
	s1, fr1 := newTestSession(t, m)
	m.onConnect(s1)
	drainJoinFrames(t, fr1, 4) // U, 2 welcome lines, and its own join announcement

	m.onPosition(s1, protocol.PositionArgs{X: 1, Y: 2, Z: 3, RX: 0, RY: 0})

	select {
	case line, ok := <-fr1.lines:
		if ok {
			t.Fatalf("session received a frame from its own position update: %q", line)
		}
	case <-time.After(200 * time.Millisecond):
		// No frame arrived, as expected: self-broadcast is suppressed.
	}
}

func TestOtherSessionReceivesBroadcastPosition(t *testing.T) {
	m := newTestModel(t)
	s1, _ := newTestSession(t, m)
	s2, fr2 := newTestSession(t, m)
	m.onConnect(s1)
	m.onConnect(s2)
	drainUntil(t, fr2, "T,player2 has joined the game.")

	m.onPosition(s1, protocol.PositionArgs{X: 1, Y: 2, Z: 3, RX: 0, RY: 0})

	found := false
	for i := 0; i < 10 && !found; i++ {
		select {
		case line := <-fr2.lines:
			if line == "P,1,1,2,3,0,0" {
				found = true
			}
		case <-time.After(200 * time.Millisecond):
			i = 10
		}
	}
	if !found {
		t.Fatal("expected the other session to receive the broadcast position")
	}
}

func TestGotoWithNoArgNeverTargetsSelf(t *testing.T) {
	m := newTestModel(t)
	s1, _ := newTestSession(t, m)
	m.onConnect(s1)

	// With no other players connected, /goto must refuse rather than loop
	// back onto the lone candidate — the roster passed to the random draw
	// is always pre-filtered to exclude the caller.
	m.onGotoCmd(s1, nil)
	if s1.GetPosition() != (session.Position{}) {
		t.Fatalf("lone player should not have been teleported, got %+v", s1.GetPosition())
	}
}

func drainJoinFrames(t *testing.T, fr *frameReader, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		fr.next(t)
	}
}

func drainUntil(t *testing.T, fr *frameReader, target string) {
	t.Helper()
	for i := 0; i < 50; i++ {
		if fr.next(t) == target {
			return
		}
	}
	t.Fatalf("never observed frame %q", target)
}
