// Package credential stores the single bearer token gitlab-mcp holds for the
// remote API. The token lives at a fixed (account, service) slot; saving
// again overwrites it.
package credential

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the slot is empty.
var ErrNotFound = errors.New("credential not found")

// Store is durable secret storage addressed by one fixed slot.
type Store interface {
	// Get returns the stored secret or ErrNotFound.
	Get() (string, error)

	// Set stores secret, replacing any previous value.
	Set(secret string) error

	// Delete clears the slot. Deleting an empty slot is not an error.
	Delete() error
}

// Mode selects the Store backend.
type Mode string

const (
	// ModeAuto uses the OS keyring when available and falls back to a file.
	ModeAuto Mode = "auto"

	// ModeKeyring uses the OS keyring only.
	ModeKeyring Mode = "keyring"

	// ModeFile uses a JSON file with 0600 permissions.
	ModeFile Mode = "file"
)

// ParseMode parses a mode string. Empty selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeKeyring:
		return ModeKeyring, nil
	case ModeFile:
		return ModeFile, nil
	default:
		return "", fmt.Errorf("unknown storage mode %q (want auto, keyring or file)", s)
	}
}

// Options addresses the credential slot.
type Options struct {
	Account string
	Service string

	// Path is the file used by ModeFile and as the ModeAuto fallback.
	// Empty selects DefaultFilePath().
	Path string
}

// New returns a Store for mode.
func New(mode Mode, opts Options) (Store, error) {
	if opts.Account == "" || opts.Service == "" {
		return nil, errors.New("credential: account and service are required")
	}

	switch mode {
	case ModeKeyring:
		return NewKeyringStore(opts.Account, opts.Service), nil

	case ModeFile:
		return newFileStoreFromOptions(opts), nil

	case ModeAuto, "":
		ks := NewKeyringStore(opts.Account, opts.Service)
		if ks.Available() {
			return ks, nil
		}
		return newFileStoreFromOptions(opts), nil

	default:
		return nil, fmt.Errorf("credential: unknown storage mode %q", mode)
	}
}

func newFileStoreFromOptions(opts Options) *FileStore {
	path := opts.Path
	if path == "" {
		path = DefaultFilePath()
	}
	return NewFileStore(path, opts.Account, opts.Service)
}
