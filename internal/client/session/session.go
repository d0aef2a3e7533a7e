// Package session persists the signed-in user's token under the client
// config directory. Login populates it, logout clears it.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrNoSession is returned when no usable session is stored.
var ErrNoSession = errors.New("no valid session (login required)")

// Session is the cached auth state of one user.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

// Valid reports whether the token is present and unexpired at now.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && s.UserID != uuid.Nil && now.Before(s.ExpiresAt)
}

// DefaultDir returns $XDG_CONFIG_HOME/kriya, falling back to ~/.config/kriya.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "kriya")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "kriya")
}

// Store reads and writes session.json in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir is the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path() string { return filepath.Join(s.dir, "session.json") }

// Save replaces the stored session.
func (s *Store) Save(sess Session) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.path(), b, 0o600)
}

// Load returns the stored session, or ErrNoSession when it is missing,
// unreadable or expired.
func (s *Store) Load() (Session, error) {
	b, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return Session{}, ErrNoSession
	}
	if !sess.Valid(s.now()) {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Clear removes the stored session. A missing session is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// WriteFileAtomic writes data to a temp file in the same directory and
// renames it over name.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}
