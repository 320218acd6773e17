// Package store is craftd's durable block repository: a SQLite-backed table
// keyed by (p, q, x, y, z), with per-chunk range scans driven by the
// database's own monotonic rowid and periodic explicit commit.
//
// The store is only ever touched from the model's single goroutine; it
// holds exactly one connection and one long-lived transaction, committed
// on a timer, mirroring the non-autocommit sqlite3 connection the original
// server kept open between its periodic commits.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Row is one block row as returned by ScanChunk.
type Row struct {
	RowID int64
	X, Y, Z, W int
}

// Store is the durable block repository.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// Open creates (or attaches to) the SQLite database at dsn, applies
// migrations, and begins the first pending transaction.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single long-lived write transaction makes no sense across
	// multiple connections; pin the pool to one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("begin initial transaction: %w", err)
	}

	return &Store{db: db, tx: tx}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// Upsert inserts or replaces the row at (p, q, x, y, z), returning the
// rowid the store assigned it. Because the unique index forces a
// delete-then-insert on conflict, a replace always receives a fresh,
// larger rowid than the row it replaced.
func (s *Store) Upsert(p, q, x, y, z, w int) (int64, error) {
	res, err := s.tx.Exec(
		`INSERT OR REPLACE INTO block (p, q, x, y, z, w) VALUES (?, ?, ?, ?, ?, ?)`,
		p, q, x, y, z, w,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert block: %w", err)
	}
	return res.LastInsertId()
}

// ScanChunk returns every row in chunk (p, q) with rowid > after, plus the
// maximum rowid among the returned rows (0 if none were returned). Row
// order is unspecified; callers treat the result as a set.
func (s *Store) ScanChunk(p, q int, after int64) ([]Row, int64, error) {
	rows, err := s.tx.Query(
		`SELECT rowid, x, y, z, w FROM block WHERE p = ? AND q = ? AND rowid > ?`,
		p, q, after,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scan chunk: %w", err)
	}
	defer rows.Close()

	var out []Row
	var maxRowID int64
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RowID, &r.X, &r.Y, &r.Z, &r.W); err != nil {
			return nil, 0, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, r)
		if r.RowID > maxRowID {
			maxRowID = r.RowID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan chunk rows: %w", err)
	}
	return out, maxRowID, nil
}

// Commit flushes the pending transaction durably and opens the next one.
func (s *Store) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin next transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Close commits any pending writes and closes the underlying connection.
func (s *Store) Close() error {
	if s.tx != nil {
		_ = s.tx.Commit()
	}
	return s.db.Close()
}
