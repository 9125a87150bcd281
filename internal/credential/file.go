package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileVersion is the on-disk schema version.
const fileVersion = 1

// FileStore keeps the secret in a JSON file readable only by the owner.
type FileStore struct {
	path    string
	account string
	service string
	mu      sync.RWMutex
}

// credentialFile is the structure of the credential file.
type credentialFile struct {
	Version int       `json:"version"`
	Account string    `json:"account"`
	Service string    `json:"service"`
	Secret  string    `json:"secret"`
	SavedAt time.Time `json:"saved_at"`
}

// DefaultFilePath returns ~/.config/gitlab-mcp/credentials.json.
func DefaultFilePath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "gitlab-mcp", "credentials.json")
}

// NewFileStore creates a file-backed store at path for (account, service).
func NewFileStore(path, account, service string) *FileStore {
	return &FileStore{path: path, account: account, service: service}
}

// Path returns the credential file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store. A file written for a different slot reads as empty.
func (s *FileStore) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}

	var cf credentialFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return "", fmt.Errorf("parse credential file: %w", err)
	}
	if cf.Account != s.account || cf.Service != s.service || cf.Secret == "" {
		return "", ErrNotFound
	}
	return cf.Secret, nil
}

// Set implements Store.
func (s *FileStore) Set(secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	data, err := json.MarshalIndent(credentialFile{
		Version: fileVersion,
		Account: s.account,
		Service: s.service,
		Secret:  secret,
		SavedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file and rename over the old one.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credential file: %w", err)
	}
	return nil
}

// String describes the backend for status output.
func (s *FileStore) String() string {
	return "file (" + s.path + ")"
}
