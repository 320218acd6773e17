package model

import (
	"github.com/adred-codev/craftd/internal/protocol"
	"github.com/adred-codev/craftd/internal/session"
)

// othersExcept returns the roster with one session filtered out. Used both
// for fan-out (don't echo a sender's own update back to itself) and for
// picking a teleport target (don't teleport a player to themselves).
func (m *Model) othersExcept(exclude *session.Session) []*session.Session {
	out := make([]*session.Session, 0, len(m.roster))
	for _, s := range m.roster {
		if s != exclude {
			out = append(out, s)
		}
	}
	return out
}

func (m *Model) findByNick(nick string) *session.Session {
	for _, s := range m.roster {
		if s.Nick() == nick {
			return s
		}
	}
	return nil
}

func (m *Model) removeFromRoster(target *session.Session) {
	kept := m.roster[:0]
	for _, s := range m.roster {
		if s != target {
			kept = append(kept, s)
		}
	}
	m.roster = kept
}

// broadcastPosition sends s's current position to every other connected
// session. The sender never receives its own position back.
func (m *Model) broadcastPosition(s *session.Session) {
	p := s.GetPosition()
	for _, other := range m.othersExcept(s) {
		other.Send(protocol.TagPosition, s.ID, p.X, p.Y, p.Z, p.RX, p.RY)
	}
}

// sendExistingPositions brings a newly joined session up to date on every
// other player already in the world.
func (m *Model) sendExistingPositions(s *session.Session) {
	for _, other := range m.othersExcept(s) {
		p := other.GetPosition()
		s.Send(protocol.TagPosition, other.ID, p.X, p.Y, p.Z, p.RX, p.RY)
	}
}

// broadcastNick announces s's nick to every other session. The sender is
// deliberately excluded: it already knows its own nick, and nothing else
// in the protocol needs to be told its own state back.
func (m *Model) broadcastNick(s *session.Session) {
	for _, other := range m.othersExcept(s) {
		other.Send(protocol.TagNick, s.ID, s.Nick())
	}
}

// sendExistingNicks brings a newly joined session up to date on every
// other player's nick.
func (m *Model) sendExistingNicks(s *session.Session) {
	for _, other := range m.othersExcept(s) {
		s.Send(protocol.TagNick, other.ID, other.Nick())
	}
}

// broadcastDisconnect tells every remaining session that target left.
func (m *Model) broadcastDisconnect(target *session.Session) {
	for _, other := range m.roster {
		other.Send(protocol.TagDisconnect, target.ID)
	}
}

// broadcastBlockExcept fans a block edit (primary or ghost) out to every
// session except the one that caused it.
func (m *Model) broadcastBlockExcept(exclude *session.Session, p, q int, a protocol.BlockArgs) {
	for _, other := range m.othersExcept(exclude) {
		other.Send(protocol.TagBlock, p, q, a.X, a.Y, a.Z, a.W)
	}
}

// broadcastTalkAll sends a server-originated chat line to every connected
// session, including whichever session (if any) triggered it.
func (m *Model) broadcastTalkAll(text string) {
	for _, s := range m.roster {
		s.Send(protocol.TagTalk, text)
	}
}
