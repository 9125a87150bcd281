package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps the secret in the OS keychain (macOS Keychain,
// Secret Service on Linux, Credential Manager on Windows).
type KeyringStore struct {
	account string
	service string
}

// NewKeyringStore creates a keyring-backed store for (account, service).
func NewKeyringStore(account, service string) *KeyringStore {
	return &KeyringStore{account: account, service: service}
}

// Get implements Store.
func (s *KeyringStore) Get() (string, error) {
	secret, err := keyring.Get(s.service, s.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	if secret == "" {
		return "", ErrNotFound
	}
	return secret, nil
}

// Set implements Store.
func (s *KeyringStore) Set(secret string) error {
	if err := keyring.Set(s.service, s.account, secret); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *KeyringStore) Delete() error {
	err := keyring.Delete(s.service, s.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}

// Available reports whether the keyring backend answers a lookup. A missing
// entry counts as available.
func (s *KeyringStore) Available() bool {
	_, err := keyring.Get(s.service, s.account)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// String describes the backend for status output.
func (s *KeyringStore) String() string {
	return fmt.Sprintf("keyring (service=%s, account=%s)", s.service, s.account)
}
