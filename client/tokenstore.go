package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore persists the bearer token between runs. Load reports whether a
// token is present; implementations must be safe for concurrent use.
type TokenStore interface {
	Load() (token string, ok bool)
	Save(token string) error
	Clear() error
}

// tokenFile is the on-disk shape used by FileTokenStore.
type tokenFile struct {
	AuthToken string `json:"auth_token"`
}

// FileTokenStore keeps the token in a single JSON file, created with 0600
// permissions.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore creates a store backed by the file at path. The file and
// its directory are created lazily on the first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// DefaultTokenPath returns the conventional token location under the user
// config directory.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gatehouse", "session.json"), nil
}

// Load reads the stored token. A missing or unreadable file means no token.
func (s *FileTokenStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil || tf.AuthToken == "" {
		return "", false
	}
	return tf.AuthToken, true
}

func (s *FileTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(tokenFile{AuthToken: token})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryTokenStore holds the token in memory. Tests and short-lived tools
// use it; nothing survives the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
	ok    bool
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.ok
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.ok = token, true
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.ok = "", false
	return nil
}
