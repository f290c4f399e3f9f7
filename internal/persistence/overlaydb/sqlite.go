// Package overlaydb stores evicted chunk overlay records in SQLite.
package overlaydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"harvestcraft.ai/internal/sim/terrain/chunk"
)

var ErrSeedMismatch = errors.New("overlay db belongs to a different seed")

type SQLite struct {
	db   *sql.DB
	once sync.Once
}

func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite serializes writers anyway and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS overlays (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

// EnsureSeed binds a fresh database to seed and rejects databases written
// for another seed; their edits would land on different terrain.
func (s *SQLite) EnsureSeed(ctx context.Context, seed int64) error {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='seed'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES('seed',?)`, strconv.FormatInt(seed, 10))
		return err
	case err != nil:
		return err
	}
	if stored != strconv.FormatInt(seed, 10) {
		return fmt.Errorf("%w: db=%s world=%d", ErrSeedMismatch, stored, seed)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, k chunk.Key) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM overlays WHERE cx=? AND cz=?`, k.CX, k.CZ).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *SQLite) Save(ctx context.Context, k chunk.Key, data []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO overlays(cx,cz,data,updated_at) VALUES(?,?,?,?)`, k.CX, k.CZ, data, now)
	return err
}

func (s *SQLite) Delete(ctx context.Context, k chunk.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM overlays WHERE cx=? AND cz=?`, k.CX, k.CZ)
	return err
}

func (s *SQLite) Keys(ctx context.Context) ([]chunk.Key, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cx,cz FROM overlays ORDER BY cx,cz`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []chunk.Key
	for rows.Next() {
		var k chunk.Key
		if err := rows.Scan(&k.CX, &k.CZ); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Stats summarizes the stored records.
type Stats struct {
	Chunks int
	Bytes  int64
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(data)),0) FROM overlays`).Scan(&st.Chunks, &st.Bytes)
	return st, err
}
