// Package store persists client-side settings, most importantly the code of
// the room the user is currently joined to.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotJoined is returned by RequireRoomCode when no room code is stored.
// Room-scoped operations must fail with this before touching the network.
var ErrNotJoined = errors.New("not joined to a room")

const (
	keyRoomCode = "room_code"
	keyVolume   = "volume"
	keyClientID = "client_id"
)

// Store wraps the SQLite settings database in ~/.auxroom.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the settings database in the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	path := filepath.Join(dir, "settings.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure settings database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the database, for change watching.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// RoomCode returns the stored room code, if any.
func (s *Store) RoomCode() (string, bool, error) {
	return s.get(keyRoomCode)
}

// RequireRoomCode returns the stored room code or ErrNotJoined.
func (s *Store) RequireRoomCode() (string, error) {
	code, ok, err := s.RoomCode()
	if err != nil {
		return "", err
	}
	if !ok || code == "" {
		return "", ErrNotJoined
	}
	return code, nil
}

// SetRoomCode overwrites the stored room code.
func (s *Store) SetRoomCode(code string) error {
	return s.set(keyRoomCode, code)
}

// ClearRoomCode removes the stored room code.
func (s *Store) ClearRoomCode() error {
	return s.delete(keyRoomCode)
}

// ClientID returns this installation's stable client id, generating and
// persisting one on first use. It identifies the client on the sync channel.
func (s *Store) ClientID() (string, error) {
	id, ok, err := s.get(keyClientID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.set(keyClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

// Volume returns the last persisted volume in [0,1], or the given default.
func (s *Store) Volume(fallback float64) float64 {
	value, ok, err := s.get(keyVolume)
	if err != nil || !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}

// SetVolume persists the volume so the next session starts with it.
func (s *Store) SetVolume(v float64) error {
	return s.set(keyVolume, strconv.FormatFloat(v, 'f', -1, 64))
}
