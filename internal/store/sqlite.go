package store

import (
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned for unknown, expired or already used challenges.
var ErrNotFound = errors.New("challenge not found")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL;")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL;")

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS challenges (
  id TEXT PRIMARY KEY,
  answer_hash TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_challenges_expires ON challenges(expires_at);
`)
	return err
}

func hashAnswer(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Create records the answer for a new challenge.
func (s *Store) Create(id, answer string, ttl time.Duration) error {
	if id == "" {
		return fmt.Errorf("challenge id required")
	}
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO challenges(id,answer_hash,created_at,expires_at) VALUES(?,?,?,?)`,
		id, hashAnswer(answer), now.Unix(), now.Add(ttl).Unix(),
	)
	return err
}

// Consume deletes the challenge and reports whether answer matched it. A
// challenge can be consumed once, right or wrong.
func (s *Store) Consume(id, answer string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		hash      string
		expiresAt int64
	)
	err = tx.QueryRow(`SELECT answer_hash,expires_at FROM challenges WHERE id=?`, id).Scan(&hash, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	} else if err != nil {
		return false, err
	}
	if _, err := tx.Exec(`DELETE FROM challenges WHERE id=?`, id); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	if time.Now().Unix() > expiresAt {
		return false, ErrNotFound
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(hashAnswer(answer))) == 1, nil
}

// Purge removes challenges that expired before now.
func (s *Store) Purge(now time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM challenges WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
