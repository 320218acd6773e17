// Package protocol implements craftd's line-oriented wire grammar: tag
// constants, frame encoding, and the stateless argument parsers the model's
// dispatch table uses to turn a frame's fields into typed handler calls.
package protocol

import "strings"

// Tag letters, exactly as they appear as the first comma-separated field
// of a frame.
const (
	TagYou        = "U" // S->C: id, x, y, z, rx, ry
	TagBlock      = "B" // both: (p, q,) x, y, z, w
	TagChunk      = "C" // C->S: p, q, [key]
	TagPosition   = "P" // both: (id,) x, y, z, rx, ry
	TagDisconnect = "D" // S->C: id
	TagTalk       = "T" // both: free-form text
	TagKey        = "K" // S->C: p, q, max_rowid
	TagNick       = "N" // S->C: id, nick
)

// Frame is a decoded inbound line: a tag and its remaining comma-separated
// fields.
type Frame struct {
	Tag  string
	Args []string
}

// ParseLine splits a single newline-stripped, \r-stripped line into a
// Frame. An empty line yields an empty tag, which the dispatcher's table
// lookup will simply not find — unknown tags are silently ignored per the
// protocol's error taxonomy.
func ParseLine(line string) Frame {
	parts := strings.Split(line, ",")
	return Frame{Tag: parts[0], Args: parts[1:]}
}

// Encode renders a tag plus arguments as a single outbound line,
// terminated by \n, with fields stringified and comma-joined.
func Encode(tag string, args ...any) []byte {
	var b strings.Builder
	b.WriteString(tag)
	for _, a := range args {
		b.WriteByte(',')
		writeField(&b, a)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
