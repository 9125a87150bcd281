// Package browser opens URLs in the user's browser.
package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// ErrUnsupportedPlatform is returned on platforms without a launcher.
var ErrUnsupportedPlatform = errors.New("opening a browser is not supported on this platform")

// Launcher opens a URL.
type Launcher interface {
	Open(url string) error
}

// System launches URLs with the platform's open command.
// Name selects a specific browser; empty uses the default.
type System struct {
	Name string

	goos  string
	start func(name string, args ...string) error
}

// NewSystem returns a launcher for the current platform.
func NewSystem(name string) *System {
	return &System{Name: name, goos: runtime.GOOS, start: startCommand}
}

// Open implements Launcher.
func (s *System) Open(url string) error {
	name, args, err := Command(s.goos, s.Name, url)
	if err != nil {
		return err
	}
	if err := s.start(name, args...); err != nil {
		return fmt.Errorf("launch browser: %w (open %s manually)", err, url)
	}
	return nil
}

// Command returns the program and arguments used to open url on goos.
func Command(goos, browserName, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		if browserName != "" {
			return "open", []string{"-a", browserName, url}, nil
		}
		return "open", []string{url}, nil
	case "windows":
		return "", nil, fmt.Errorf("%w: %s (open %s manually)", ErrUnsupportedPlatform, goos, url)
	default:
		if browserName != "" {
			return browserName, []string{url}, nil
		}
		return "xdg-open", []string{url}, nil
	}
}

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}
