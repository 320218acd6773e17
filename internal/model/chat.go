package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adred-codev/craftd/internal/protocol"
	"github.com/adred-codev/craftd/internal/session"
	"github.com/adred-codev/craftd/internal/world"
)

// spawnPosition is SPAWN_POINT: every /spawn and join-time bootstrap places
// a player here.
var spawnPosition = session.Position{}

const maxPQMagnitude = 1000

var helpLines = [3]string{
	`Chat commands: /nick [name], /spawn, /goto [player], /pq p,q, /players, /help`,
	`/nick renames you; /goto with no name teleports to a random player`,
	`/pq p,q teleports to the origin of chunk (p, q)`,
}

// onTalk dispatches an inbound T frame. Text beginning with "/" is tried
// against the chat command grammar: a matched command runs its handler,
// and an unmatched command replies to the sender only. Text not beginning
// with "/" is broadcast to every session, the sender included, as
// "nick> text".
func (m *Model) onTalk(s *session.Session, text string) {
	if strings.HasPrefix(text, "/") {
		if name, groups, ok := protocol.MatchChatCommand(text); ok {
			m.dispatchChatCommand(s, name, groups)
			return
		}
		s.Send(protocol.TagTalk, fmt.Sprintf(`Unrecognized command: "%s"`, text))
		return
	}
	m.broadcastTalkAll(fmt.Sprintf("%s> %s", s.Nick(), text))
}

func (m *Model) dispatchChatCommand(s *session.Session, name string, groups []string) {
	switch name {
	case "nick":
		m.onNick(s, groups)
	case "spawn":
		m.onSpawnCmd(s)
	case "goto":
		m.onGotoCmd(s, groups)
	case "pq":
		m.onPQCmd(s, groups)
	case "help":
		m.onHelpCmd(s)
	case "players":
		m.onPlayersCmd(s)
	}
}

// onNick with no argument replies with the current nick; with an argument
// it renames s, broadcasting both the rename announcement and the updated
// nick record.
func (m *Model) onNick(s *session.Session, groups []string) {
	if len(groups) == 0 || groups[0] == "" {
		s.Send(protocol.TagTalk, fmt.Sprintf("Your nick is %s.", s.Nick()))
		return
	}
	old := s.Nick()
	m.broadcastTalkAll(fmt.Sprintf("%s is now known as %s.", old, groups[0]))
	s.SetNick(groups[0])
	m.broadcastNick(s)
}

// teleport moves s to pos: s learns its own new position via U (the same
// frame a fresh connect receives), while everyone else learns it via the
// ordinary P broadcast.
func (m *Model) teleport(s *session.Session, pos session.Position) {
	s.SetPosition(pos)
	s.Send(protocol.TagYou, s.ID, pos.X, pos.Y, pos.Z, pos.RX, pos.RY)
	m.broadcastPosition(s)
}

func (m *Model) onSpawnCmd(s *session.Session) {
	m.teleport(s, spawnPosition)
}

// onGotoCmd teleports s to a named player, or to a random other player
// when no name is given. The random draw comes from the roster with s
// already filtered out, so a lone player never gets offered themselves as
// a candidate — the spec's resolution of the source's self-teleport bug.
func (m *Model) onGotoCmd(s *session.Session, groups []string) {
	candidates := m.othersExcept(s)

	var target *session.Session
	if len(groups) > 0 && groups[0] != "" {
		target = m.findByNick(groups[0])
		if target == nil {
			s.Send(protocol.TagTalk, fmt.Sprintf("Player %s not found.", groups[0]))
			return
		}
	} else {
		if len(candidates) == 0 {
			s.Send(protocol.TagTalk, "No other players to go to.")
			return
		}
		target = candidates[m.rng.Intn(len(candidates))]
	}

	m.teleport(s, target.GetPosition())
}

// onPQCmd teleports s to the origin of chunk (p, q), silently dropping the
// command when either coordinate exceeds the allowed magnitude.
func (m *Model) onPQCmd(s *session.Session, groups []string) {
	if len(groups) != 2 {
		return
	}
	p, err1 := strconv.Atoi(groups[0])
	q, err2 := strconv.Atoi(groups[1])
	if err1 != nil || err2 != nil {
		return
	}
	if abs(p) > maxPQMagnitude || abs(q) > maxPQMagnitude {
		return
	}

	m.teleport(s, session.Position{
		X: float64(p * world.ChunkSize),
		Y: 0,
		Z: float64(q * world.ChunkSize),
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (m *Model) onHelpCmd(s *session.Session) {
	for _, line := range helpLines {
		s.Send(protocol.TagTalk, line)
	}
}

func (m *Model) onPlayersCmd(s *session.Session) {
	names := make([]string, 0, len(m.roster))
	for _, other := range m.roster {
		names = append(names, other.Nick())
	}
	s.Send(protocol.TagTalk, fmt.Sprintf("Players: %s", strings.Join(names, ", ")))
}
