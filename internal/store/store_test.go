package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "craft.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertAssignsIncreasingRowID(t *testing.T) {
	st := openTestStore(t)

	id1, err := st.Upsert(0, 0, 1, 10, 1, 5)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	id2, err := st.Upsert(0, 0, 2, 10, 2, 5)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("expected strictly increasing rowids, got %d then %d", id1, id2)
	}
}

func TestUpsertReplaceProducesNewRowID(t *testing.T) {
	st := openTestStore(t)

	first, err := st.Upsert(0, 0, 1, 10, 1, 5)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := st.Upsert(0, 0, 1, 10, 1, 9)
	if err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	if second <= first {
		t.Fatalf("replace should yield a fresh, larger rowid: first=%d second=%d", first, second)
	}

	rows, _, err := st.ScanChunk(0, 0, 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row after replace, got %d", len(rows))
	}
	if rows[0].W != 9 {
		t.Fatalf("expected latest w=9, got %d", rows[0].W)
	}
}

func TestScanChunkIncrementalCursor(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.Upsert(2, 3, 64, 10, 96, 4); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, key, err := st.ScanChunk(2, 3, 0)
	if err != nil || len(rows) != 1 || key == 0 {
		t.Fatalf("first scan: rows=%v key=%d err=%v", rows, key, err)
	}

	rows, nextKey, err := st.ScanChunk(2, 3, key)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(rows) != 0 || nextKey != 0 {
		t.Fatalf("expected no new rows at the same cursor, got rows=%v key=%d", rows, nextKey)
	}

	if _, err := st.Upsert(2, 3, 65, 10, 96, 7); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows, finalKey, err := st.ScanChunk(2, 3, key)
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if len(rows) != 1 || finalKey <= key {
		t.Fatalf("expected exactly one new row with an advancing cursor, got rows=%v key=%d (prev %d)", rows, finalKey, key)
	}
}

func TestCommitSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "craft.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.Upsert(0, 0, 5, 10, 5, 3); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, priorMax, err := reopened.ScanChunk(0, 0, 0)
	if err != nil {
		t.Fatalf("scan after reopen: %v", err)
	}
	if len(rows) != 1 || rows[0].W != 3 {
		t.Fatalf("expected committed row to survive reopen, got %v", rows)
	}

	newID, err := reopened.Upsert(0, 0, 6, 10, 6, 1)
	if err != nil {
		t.Fatalf("upsert after reopen: %v", err)
	}
	if newID <= priorMax {
		t.Fatalf("expected a rowid greater than the pre-restart max %d, got %d", priorMax, newID)
	}
}
