package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Default values used when no layer sets a field.
const (
	DefaultAuthServiceURL = "http://localhost:3001"
	DefaultQRCodeURL      = "http://localhost:3000"
	DefaultCallbackURL    = "http://localhost:4000/auth/callback"
	DefaultEditorScheme   = "cursor"

	DefaultStorageMode    = "auto"
	DefaultStorageAccount = "gitlab-mcp"
	DefaultStorageService = "gitlab-mcp-token"

	DefaultValidateTimeout = 10 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultStartTimeout    = 10 * time.Second
	DefaultPollInterval    = 2 * time.Second
	DefaultAuthTimeout     = 3 * time.Minute
	DefaultSessionTTL      = 10 * time.Minute
	DefaultSweepInterval   = 5 * time.Minute
)

// Config is the resolved configuration after layering and defaults.
type Config struct {
	// AuthServiceURL hosts /api/user/validate.
	AuthServiceURL string
	// QRCodeURL is the identity flow entry page opened in the browser.
	QRCodeURL string
	// CallbackURL is where the identity provider redirects with the token.
	CallbackURL string
	// ListenAddr is the local auth server address. Defaults to the callback host.
	ListenAddr string
	// Browser names a specific browser; empty uses the platform default.
	Browser string
	// EditorScheme is the URL scheme used to jump back into the editor.
	EditorScheme string

	Storage  StorageConfig
	Timeouts Timeouts
}

// StorageConfig addresses the credential slot.
type StorageConfig struct {
	Mode    string
	Account string
	Service string
	Path    string
}

// Timeouts groups every duration the handshake uses.
type Timeouts struct {
	Validate     time.Duration
	Request      time.Duration
	Start        time.Duration
	PollInterval time.Duration
	Auth         time.Duration
	SessionTTL   time.Duration
	Sweep        time.Duration
}

// Layer is one unresolved configuration source. Empty fields are unset.
// Durations stay strings until Resolve.
type Layer struct {
	AuthServiceURL string
	QRCodeURL      string
	CallbackURL    string
	Listen         string
	Browser        string
	EditorScheme   string

	StorageMode    string
	StorageAccount string
	StorageService string
	StoragePath    string

	ValidateTimeout string
	RequestTimeout  string
	StartTimeout    string
	PollInterval    string
	AuthTimeout     string
	SessionTTL      string
	SweepInterval   string
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, _ := Resolve(Layer{})
	return cfg
}

// Resolve applies defaults to l and parses its durations and URLs.
func Resolve(l Layer) (*Config, error) {
	cfg := &Config{
		AuthServiceURL: orDefault(l.AuthServiceURL, DefaultAuthServiceURL),
		QRCodeURL:      orDefault(l.QRCodeURL, DefaultQRCodeURL),
		CallbackURL:    orDefault(l.CallbackURL, DefaultCallbackURL),
		ListenAddr:     l.Listen,
		Browser:        l.Browser,
		EditorScheme:   orDefault(l.EditorScheme, DefaultEditorScheme),
		Storage: StorageConfig{
			Mode:    orDefault(l.StorageMode, DefaultStorageMode),
			Account: orDefault(l.StorageAccount, DefaultStorageAccount),
			Service: orDefault(l.StorageService, DefaultStorageService),
			Path:    l.StoragePath,
		},
	}

	var errs []error
	parse := func(field, raw string, def time.Duration) time.Duration {
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return def
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", field, raw))
			return def
		}
		return d
	}
	cfg.Timeouts = Timeouts{
		Validate:     parse("validate", l.ValidateTimeout, DefaultValidateTimeout),
		Request:      parse("request", l.RequestTimeout, DefaultRequestTimeout),
		Start:        parse("start", l.StartTimeout, DefaultStartTimeout),
		PollInterval: parse("poll-interval", l.PollInterval, DefaultPollInterval),
		Auth:         parse("auth", l.AuthTimeout, DefaultAuthTimeout),
		SessionTTL:   parse("session-ttl", l.SessionTTL, DefaultSessionTTL),
		Sweep:        parse("sweep", l.SweepInterval, DefaultSweepInterval),
	}

	for name, raw := range map[string]string{
		"auth-service-url": cfg.AuthServiceURL,
		"qrcode-url":       cfg.QRCodeURL,
		"callback-url":     cfg.CallbackURL,
	} {
		if err := checkURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if cfg.ListenAddr == "" {
		if u, err := url.Parse(cfg.CallbackURL); err == nil && u.Host != "" {
			cfg.ListenAddr = listenAddrFor(u)
		}
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("listen: %w", err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// TokenServerURL is the base URL of the local auth server, derived from the
// callback URL's scheme and host.
func (c *Config) TokenServerURL() string {
	u, err := url.Parse(c.CallbackURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// listenAddrFor returns host:port for u, filling in the scheme's default
// port when the URL has none.
func listenAddrFor(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
