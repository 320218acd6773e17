package protocol

import "testing"

func TestParseLine(t *testing.T) {
	f := ParseLine("B,16,50,0,5")
	if f.Tag != "B" || len(f.Args) != 4 {
		t.Fatalf("got %+v", f)
	}
}

func TestEncodeBlock(t *testing.T) {
	got := string(Encode(TagBlock, 0, 0, 16, 50, 0, 5))
	want := "B,0,0,16,50,0,5\n"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestParseBlockArgs(t *testing.T) {
	a, ok := ParseBlockArgs([]string{"16", "50", "0", "5"})
	if !ok || a != (BlockArgs{X: 16, Y: 50, Z: 0, W: 5}) {
		t.Fatalf("got %+v ok=%v", a, ok)
	}
	if _, ok := ParseBlockArgs([]string{"16", "50", "0"}); ok {
		t.Error("expected arity mismatch to fail")
	}
	if _, ok := ParseBlockArgs([]string{"x", "50", "0", "5"}); ok {
		t.Error("expected unparseable field to fail")
	}
}

func TestParseChunkArgsDefaultKey(t *testing.T) {
	a, ok := ParseChunkArgs([]string{"0", "0"})
	if !ok || a.Key != 0 {
		t.Fatalf("got %+v ok=%v", a, ok)
	}
	a, ok = ParseChunkArgs([]string{"0", "0", "42"})
	if !ok || a.Key != 42 {
		t.Fatalf("got %+v ok=%v", a, ok)
	}
}

func TestParseTalkTextRejoinsCommas(t *testing.T) {
	got := ParseTalkText([]string{"hello", "world"})
	if got != "hello,world" {
		t.Errorf("got %q", got)
	}
}

func TestMatchChatCommandPQ(t *testing.T) {
	name, groups, ok := MatchChatCommand("/pq 5,5")
	if !ok || name != "pq" || len(groups) != 2 || groups[0] != "5" || groups[1] != "5" {
		t.Fatalf("got name=%q groups=%v ok=%v", name, groups, ok)
	}
}

func TestMatchChatCommandUnrecognized(t *testing.T) {
	if _, _, ok := MatchChatCommand("/nonexistent"); ok {
		t.Error("expected no match")
	}
}
