package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS challenges (
	id          TEXT PRIMARY KEY,
	molecule_id INTEGER NOT NULL DEFAULT 0,
	payload     BLOB NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_challenges_created ON challenges(created_at);
`

// payload is the msgpack-encoded part of a stored challenge. The image is
// not kept; only the answer key is needed to verify.
type payload struct {
	Regions []string `msgpack:"regions"`
	Answers []string `msgpack:"answers"`
}

// SQLiteStore persists challenges in a SQLite database so they survive a
// restart and can be shared by processes on one host.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("challenge store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("challenge store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("challenge store: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, c *Challenge) error {
	blob, err := msgpack.Marshal(payload{Regions: c.Regions, Answers: c.Answers})
	if err != nil {
		return fmt.Errorf("challenge store: encode: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO challenges (id, molecule_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.MoleculeID, blob, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("challenge store: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Take(ctx context.Context, id string) (*Challenge, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("challenge store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	c := &Challenge{ID: id}
	var blob []byte
	err = tx.QueryRowContext(ctx,
		`SELECT molecule_id, payload, created_at FROM challenges WHERE id = ?`, id,
	).Scan(&c.MoleculeID, &blob, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("challenge store: select: %w", err)
	}

	var p payload
	if err := msgpack.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("challenge store: decode %s: %w", id, err)
	}
	c.Regions, c.Answers = p.Regions, p.Answers

	if _, err := tx.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("challenge store: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("challenge store: commit: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM challenges WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("challenge store: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("challenge store: purge: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
