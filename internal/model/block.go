package model

import (
	"github.com/adred-codev/craftd/internal/protocol"
	"github.com/adred-codev/craftd/internal/session"
	"github.com/adred-codev/craftd/internal/world"
)

// onChunk answers a chunk request: every row currently stored for (p, q)
// with rowid greater than the client's cursor, followed by a K frame
// carrying the new cursor so the client can ask incrementally next time.
func (m *Model) onChunk(s *session.Session, a protocol.ChunkArgs) {
	rows, maxRowID, err := m.store.ScanChunk(a.P, a.Q, a.Key)
	if err != nil {
		m.logger.Error().Err(err).Int("p", a.P).Int("q", a.Q).Msg("scan chunk failed")
		return
	}
	for _, r := range rows {
		s.Send(protocol.TagBlock, a.P, a.Q, r.X, r.Y, r.Z, r.W)
	}
	if maxRowID > 0 {
		s.Send(protocol.TagKey, a.P, a.Q, maxRowID)
	}

	if m.metrics != nil {
		m.metrics.ChunkRequests.Inc()
	}
}

// onBlock applies a client's block edit: validates it, persists it at its
// own chunk, propagates ghost replicas to every neighbor chunk the block
// sits on the seam of, and broadcasts both the primary edit and its ghosts
// to every other connected client.
func (m *Model) onBlock(s *session.Session, a protocol.BlockArgs) {
	if !validBlock(a) {
		return
	}

	p, q := world.Chunked(a.X), world.Chunked(a.Z)
	if _, err := m.store.Upsert(p, q, a.X, a.Y, a.Z, a.W); err != nil {
		m.logger.Error().Err(err).Msg("upsert block failed")
		return
	}
	m.broadcastBlockExcept(s, p, q, a)
	if m.metrics != nil {
		m.metrics.BlocksWritten.Inc()
	}

	ghost := a
	ghost.W = -a.W
	for _, target := range world.GhostTargets(p, q, a.X, a.Z) {
		gp, gq := target[0], target[1]
		if _, err := m.store.Upsert(gp, gq, ghost.X, ghost.Y, ghost.Z, ghost.W); err != nil {
			m.logger.Error().Err(err).Msg("upsert ghost block failed")
			continue
		}
		m.broadcastBlockExcept(s, gp, gq, ghost)
		if m.metrics != nil {
			m.metrics.GhostsWritten.Inc()
		}
	}
}

// validBlock rejects an edit whose y sits outside the playable column or
// whose block kind exceeds the highest defined kind. w == 0 (removal) is
// always allowed regardless of MaxBlockKind.
func validBlock(a protocol.BlockArgs) bool {
	if a.Y < world.MinY || a.Y > world.MaxY {
		return false
	}
	if a.W < 0 || a.W > world.MaxBlockKind {
		return false
	}
	return true
}
