package protocol

import (
	"regexp"
	"strings"
)

// BlockArgs is the parsed payload of a client->server B frame: x, y, z, w.
// The server computes (p, q) itself; the client never sends them.
type BlockArgs struct {
	X, Y, Z, W int
}

// ParseBlockArgs requires exactly 4 well-formed integer fields.
func ParseBlockArgs(args []string) (BlockArgs, bool) {
	if len(args) != 4 {
		return BlockArgs{}, false
	}
	x, ok := parseInt(args[0])
	if !ok {
		return BlockArgs{}, false
	}
	y, ok := parseInt(args[1])
	if !ok {
		return BlockArgs{}, false
	}
	z, ok := parseInt(args[2])
	if !ok {
		return BlockArgs{}, false
	}
	w, ok := parseInt(args[3])
	if !ok {
		return BlockArgs{}, false
	}
	return BlockArgs{X: x, Y: y, Z: z, W: w}, true
}

// ChunkArgs is the parsed payload of a C frame: p, q, and an optional
// cursor key (defaulting to 0, meaning "send everything").
type ChunkArgs struct {
	P, Q int
	Key  int64
}

// ParseChunkArgs accepts 2 or 3 fields; a missing key defaults to 0.
func ParseChunkArgs(args []string) (ChunkArgs, bool) {
	if len(args) != 2 && len(args) != 3 {
		return ChunkArgs{}, false
	}
	p, ok := parseInt(args[0])
	if !ok {
		return ChunkArgs{}, false
	}
	q, ok := parseInt(args[1])
	if !ok {
		return ChunkArgs{}, false
	}
	var key int64
	if len(args) == 3 && strings.TrimSpace(args[2]) != "" {
		key, ok = parseInt64(args[2])
		if !ok {
			return ChunkArgs{}, false
		}
	}
	return ChunkArgs{P: p, Q: q, Key: key}, true
}

// PositionArgs is the parsed payload of a client->server P frame: x, y, z,
// rx, ry. The client never sends its own id.
type PositionArgs struct {
	X, Y, Z, RX, RY float64
}

// ParsePositionArgs requires exactly 5 well-formed float fields.
func ParsePositionArgs(args []string) (PositionArgs, bool) {
	if len(args) != 5 {
		return PositionArgs{}, false
	}
	vals := make([]float64, 5)
	for i, a := range args {
		f, ok := parseFloat(a)
		if !ok {
			return PositionArgs{}, false
		}
		vals[i] = f
	}
	return PositionArgs{X: vals[0], Y: vals[1], Z: vals[2], RX: vals[3], RY: vals[4]}, true
}

// ParseTalkText reassembles a T frame's remaining fields, restoring any
// commas that were present in the original chat text.
func ParseTalkText(args []string) string {
	return strings.Join(args, ",")
}

// ChatCommand pairs a symbolic command name with the regex that
// recognizes it in chat text beginning with "/". The table is ordered;
// the first pattern that matches wins.
type ChatCommand struct {
	Name    string
	Pattern *regexp.Regexp
}

// ChatCommands is the compiled, ordered slash-command grammar.
var ChatCommands = []ChatCommand{
	{"nick", regexp.MustCompile(`^/nick(?:\s+([^,\s]+))?$`)},
	{"spawn", regexp.MustCompile(`^/spawn$`)},
	{"goto", regexp.MustCompile(`^/goto(?:\s+(\S+))?$`)},
	{"pq", regexp.MustCompile(`^/pq\s+(-?[0-9]+)\s*,?\s*(-?[0-9]+)$`)},
	{"help", regexp.MustCompile(`^/help$`)},
	{"players", regexp.MustCompile(`^/players$`)},
}

// MatchChatCommand tries text against the ordered chat grammar and
// returns the winning command's name and captured groups (without the
// full-match element).
func MatchChatCommand(text string) (name string, groups []string, ok bool) {
	for _, c := range ChatCommands {
		if m := c.Pattern.FindStringSubmatch(text); m != nil {
			return c.Name, m[1:], true
		}
	}
	return "", nil, false
}
