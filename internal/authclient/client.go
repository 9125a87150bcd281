// Package authclient drives the local auth server: it starts a session and
// polls its status until the user finishes signing in.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/standardbeagle/gitlab-mcp/internal/authserver"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
	"github.com/standardbeagle/gitlab-mcp/internal/session"
)

// Defaults for the polling loop.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultTimeout        = 3 * time.Minute
	DefaultRequestTimeout = 5 * time.Second
	DefaultStartTimeout   = 10 * time.Second
)

// Failure messages carried in Result.Error.
const (
	MsgAuthFailed     = "Authentication failed"
	MsgSessionExpired = "Session expired"
	MsgCancelled      = "Authentication cancelled"
)

// Result is the single outcome of waiting on a session.
type Result struct {
	Success bool
	Token   string
	Error   string
}

// Options configures a Client. Zero values take the package defaults.
type Options struct {
	HTTPClient     *http.Client
	PollInterval   time.Duration
	Timeout        time.Duration
	RequestTimeout time.Duration
	StartTimeout   time.Duration
	Logger         logging.Logger
}

// Client talks to an auth server at a base URL.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	pollInterval   time.Duration
	timeout        time.Duration
	requestTimeout time.Duration
	startTimeout   time.Duration
	logger         logging.Logger
}

// New creates a Client for the auth server at baseURL.
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     opts.HTTPClient,
		pollInterval:   opts.PollInterval,
		timeout:        opts.Timeout,
		requestTimeout: opts.RequestTimeout,
		startTimeout:   opts.StartTimeout,
		logger:         opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.startTimeout <= 0 {
		c.startTimeout = DefaultStartTimeout
	}
	c.logger = logging.Component(c.logger, "authclient")
	return c
}

// Timeout returns the overall wait limit.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Start asks the server for a new session and opens the sign-in page.
func (c *Client) Start(ctx context.Context, currentPath string) (authserver.StartResponse, error) {
	var out authserver.StartResponse

	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	u := c.baseURL + authserver.PathStart
	if currentPath != "" {
		u += "?" + url.Values{"currentPath": {currentPath}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return out, fmt.Errorf("build start request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("start session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er authserver.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil && er.Error != "" {
			return out, fmt.Errorf("start session: %s", er.Error)
		}
		return out, fmt.Errorf("start session: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode start response: %w", err)
	}
	if out.SessionID == "" {
		return out, errors.New("start session: empty session id")
	}
	return out, nil
}

// Status fetches the current state of a session. A 404 is a valid answer
// and comes back as status "not_found".
func (c *Client) Status(ctx context.Context, sessionID string) (authserver.StatusResponse, error) {
	var out authserver.StatusResponse

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	u := c.baseURL + authserver.PathStatus + "?" + url.Values{"sessionId": {sessionID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("poll status: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Any 404 means the session is gone, whatever the body says.
		out.Status = authserver.StatusNotFound
		out.Error = authserver.MsgSessionNotFound
		return out, nil
	default:
		return out, fmt.Errorf("poll status: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode status response: %w", err)
	}
	return out, nil
}

// WaitForToken polls sessionID until it resolves, the timeout passes, or
// ctx is cancelled. The first poll is sent immediately and the timeout is
// counted from that moment. Polling errors are retried on the next tick.
func (c *Client) WaitForToken(ctx context.Context, sessionID string) Result {
	logger := c.logger.With("session_id", sessionID)

	firstPoll := time.Now()
	waitCtx, cancel := context.WithDeadline(ctx, firstPoll.Add(c.timeout))
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				logger.Info("authentication wait cancelled")
				return Result{Error: MsgCancelled}
			}
			logger.Warn("authentication timed out", "timeout", c.timeout.String(), "elapsed", time.Since(firstPoll).String())
			return Result{Error: fmt.Sprintf("Authentication timeout (%s)", c.timeout)}
		case <-timer.C:
		}

		if res, done := c.pollOnce(waitCtx, logger, sessionID); done {
			return res
		}
		timer.Reset(c.pollInterval)
	}
}

// pollOnce reports a terminal Result, or done=false when the session is
// still pending or the poll failed transiently.
func (c *Client) pollOnce(ctx context.Context, logger logging.Logger, sessionID string) (Result, bool) {
	st, err := c.Status(ctx, sessionID)
	if err != nil {
		logger.Debug("status poll failed, retrying", "error", err)
		return Result{}, false
	}

	switch st.Status {
	case string(session.StatusSuccess):
		logger.Info("authentication succeeded")
		return Result{Success: true, Token: st.AuthToken}, true
	case string(session.StatusFailed):
		msg := st.Error
		if msg == "" {
			msg = MsgAuthFailed
		}
		logger.Warn("authentication failed", "error", msg)
		return Result{Error: msg}, true
	case string(session.StatusExpired), authserver.StatusNotFound:
		logger.Warn("session expired")
		return Result{Error: MsgSessionExpired}, true
	}

	logger.Debug("session pending", "status", st.Status)
	return Result{}, false
}

// Run starts a session and waits for it. The error is set only when the
// session could not be started.
func (c *Client) Run(ctx context.Context, currentPath string) (Result, error) {
	start, err := c.Start(ctx, currentPath)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("waiting for authentication", "session_id", start.SessionID, "url", start.QRCodeURL)
	return c.WaitForToken(ctx, start.SessionID), nil
}
