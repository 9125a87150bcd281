// Package token decides whether the cached bearer token is still usable and
// starts the browser flow when it is not.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/gitlab-mcp/internal/browser"
	"github.com/standardbeagle/gitlab-mcp/internal/credential"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
)

// ValidatePath is the remote validation endpoint, relative to the auth service.
const ValidatePath = "/api/user/validate"

// ErrEmptyToken is returned when a callback carries no token.
var ErrEmptyToken = errors.New("auth token is required")

// StartupOutcome is the result of CheckOnStartup.
type StartupOutcome int

const (
	// OutcomeValid means a stored token was accepted; no browser flow started.
	OutcomeValid StartupOutcome = iota
	// OutcomeAuthStarted means no token was stored and a browser flow started.
	OutcomeAuthStarted
	// OutcomeReauthStarted means the stored token was rejected, cleared, and a
	// browser flow started.
	OutcomeReauthStarted
)

func (o StartupOutcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeAuthStarted:
		return "auth_started"
	case OutcomeReauthStarted:
		return "reauth_started"
	default:
		return "unknown"
	}
}

// ValidationResponse is the body returned by the validation endpoint.
type ValidationResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Error     string `json:"error,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Options configures a Service.
type Options struct {
	AuthServiceURL string
	QRCodeURL      string
	CallbackURL    string

	// ValidateTimeout bounds a single validation request.
	ValidateTimeout time.Duration

	// HTTPClient is the base client for validation. Nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// Service coordinates the credential store, remote validation and the
// browser launcher.
type Service struct {
	opts     Options
	store    credential.Store
	launcher browser.Launcher
	logger   logging.Logger

	// validateGroup collapses concurrent validations of the same token.
	validateGroup singleflight.Group
}

// NewService creates a token service.
func NewService(opts Options, store credential.Store, launcher browser.Launcher, logger logging.Logger) *Service {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Service{opts: opts, store: store, launcher: launcher, logger: logging.Component(logger, "token")}
}

// CheckOnStartup validates the stored token and starts the browser flow when
// there is none or the validator rejects it. Only a failure to clear a
// rejected token is returned as an error.
func (s *Service) CheckOnStartup(ctx context.Context) (StartupOutcome, error) {
	tok, err := s.StoredToken()
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		s.logger.Warn("failed to read stored token, treating as absent", "error", err)
	}

	if tok == "" {
		s.logger.Info("no token found, starting auth flow")
		s.startAuthFlowLogged("", "")
		return OutcomeAuthStarted, nil
	}

	s.logger.Info("token found, validating", "token", logging.Redact(tok))
	if s.Validate(ctx, tok) {
		s.logger.Info("token is valid, ready to use")
		return OutcomeValid, nil
	}

	s.logger.Info("token is invalid or expired, clearing and starting auth flow")
	if err := s.store.Delete(); err != nil {
		return OutcomeReauthStarted, fmt.Errorf("clear rejected token: %w", err)
	}
	s.startAuthFlowLogged("", "")
	return OutcomeReauthStarted, nil
}

// Validate asks the remote validator about tok. Only an explicit 401/403, or
// a successful response with valid=false, returns false. Every other failure
// returns true.
func (s *Service) Validate(ctx context.Context, tok string) bool {
	v, _, _ := s.validateGroup.Do(tok, func() (any, error) {
		return s.validate(ctx, tok), nil
	})
	return v.(bool)
}

func (s *Service) validate(ctx context.Context, tok string) bool {
	endpoint := strings.TrimRight(s.opts.AuthServiceURL, "/") + ValidatePath

	if s.opts.ValidateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ValidateTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		s.logger.Warn("token validation request could not be built, assuming valid", "error", err)
		return true
	}
	req.Header.Set("Content-Type", "application/json")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.HTTPClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
	}))

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Warn("token validation unreachable, assuming valid", "url", endpoint, "error", err)
		return true
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		s.logger.Info("token rejected by validator", "status", resp.StatusCode)
		return false
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		s.logger.Warn("token validation returned unexpected status, assuming valid", "status", resp.StatusCode)
		return true
	}

	var vr ValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		s.logger.Warn("token validation response unreadable, assuming valid", "error", err)
		return true
	}

	if !vr.Valid {
		s.logger.Info("token validation failed", "error", vr.Error, "reason", vr.Reason)
		return false
	}

	if vr.ExpiresAt > 0 {
		s.logger.Info("token is valid", "user_id", vr.UserID, "expires_at", time.UnixMilli(vr.ExpiresAt).UTC())
	} else {
		s.logger.Info("token is valid", "user_id", vr.UserID)
	}
	return true
}

// ProcessCallback persists a token delivered by the callback endpoint.
func (s *Service) ProcessCallback(tok string) error {
	if tok == "" {
		return ErrEmptyToken
	}
	if err := s.store.Set(tok); err != nil {
		s.logger.Error("failed to save token", "error", err)
		return fmt.Errorf("save token: %w", err)
	}
	s.logger.Info("authentication completed successfully")
	return nil
}

// StoredToken returns the cached token, or credential.ErrNotFound.
func (s *Service) StoredToken() (string, error) {
	return s.store.Get()
}

// Logout clears the cached token.
func (s *Service) Logout() error {
	if err := s.store.Delete(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	s.logger.Info("token cleared")
	return nil
}

// StartAuthFlow opens the identity flow in the browser. sessionID and
// currentPath travel in the callback URL so the callback can resolve the
// session and jump back into the editor. The URL is returned even when the
// browser cannot be opened so the caller can show it.
func (s *Service) StartAuthFlow(currentPath, sessionID string) (string, error) {
	authURL, err := s.AuthURL(currentPath, sessionID)
	if err != nil {
		return "", err
	}
	if s.launcher == nil {
		return authURL, errors.New("no browser launcher configured")
	}
	if err := s.launcher.Open(authURL); err != nil {
		return authURL, err
	}
	s.logger.Info("browser opened for authentication", "url", authURL)
	return authURL, nil
}

func (s *Service) startAuthFlowLogged(currentPath, sessionID string) {
	authURL, err := s.StartAuthFlow(currentPath, sessionID)
	if err != nil {
		s.logger.Warn("failed to open browser, open the URL manually", "url", authURL, "error", err)
	}
}

// AuthURL builds {qrCodeURL}?callback=<callbackURL?sessionId=&currentPath=>.
func (s *Service) AuthURL(currentPath, sessionID string) (string, error) {
	callback, err := url.Parse(s.opts.CallbackURL)
	if err != nil {
		return "", fmt.Errorf("parse callback url: %w", err)
	}
	q := callback.Query()
	if sessionID != "" {
		q.Set("sessionId", sessionID)
	}
	if currentPath != "" {
		q.Set("currentPath", currentPath)
	}
	callback.RawQuery = q.Encode()

	entry, err := url.Parse(s.opts.QRCodeURL)
	if err != nil {
		return "", fmt.Errorf("parse qrcode url: %w", err)
	}
	eq := entry.Query()
	eq.Set("callback", callback.String())
	entry.RawQuery = eq.Encode()
	return entry.String(), nil
}
