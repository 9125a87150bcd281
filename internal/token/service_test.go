package token

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gitlab-mcp/internal/credential"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
)

// memStore is an in-memory credential.Store.
type memStore struct {
	mu        sync.Mutex
	secret    string
	getErr    error
	setErr    error
	deleteErr error
	deletes   int
}

func (m *memStore) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.secret == "" {
		return "", credential.ErrNotFound
	}
	return m.secret, nil
}

func (m *memStore) Set(secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.secret = secret
	return nil
}

func (m *memStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.secret = ""
	return nil
}

// recordingLauncher records opened URLs.
type recordingLauncher struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (l *recordingLauncher) Open(u string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, u)
	return l.err
}

func (l *recordingLauncher) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

func newTestService(t *testing.T, authURL string, store credential.Store, launcher *recordingLauncher) *Service {
	t.Helper()
	return NewService(Options{
		AuthServiceURL:  authURL,
		QRCodeURL:       "https://qr.example.com/",
		CallbackURL:     "http://localhost:4000/auth/callback",
		ValidateTimeout: 2 * time.Second,
	}, store, launcher, logging.Nop())
}

func validator(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ValidatePath, r.URL.Path)
		assert.Equal(t, "Bearer stored-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// unreachableURL returns a URL nothing listens on.
func unreachableURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return "http://" + addr
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   bool
	}{
		{"valid response", http.StatusOK, ValidationResponse{Valid: true, UserID: "u1", ExpiresAt: 1735689600000}, true},
		{"valid false", http.StatusOK, ValidationResponse{Valid: false, Error: "expired", Reason: "token_expired"}, false},
		{"unauthorized", http.StatusUnauthorized, map[string]string{"error": "nope"}, false},
		{"forbidden", http.StatusForbidden, nil, false},
		{"server error fails open", http.StatusInternalServerError, nil, true},
		{"bad gateway fails open", http.StatusBadGateway, nil, true},
		{"not found fails open", http.StatusNotFound, nil, true},
		{"undecodable body fails open", http.StatusOK, "not an object", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := validator(t, tt.status, tt.body)
			s := newTestService(t, srv.URL, &memStore{}, &recordingLauncher{})
			assert.Equal(t, tt.want, s.Validate(context.Background(), "stored-token"))
		})
	}
}

func TestValidate_ConnectionFailureFailsOpen(t *testing.T) {
	s := newTestService(t, unreachableURL(t), &memStore{}, &recordingLauncher{})
	assert.True(t, s.Validate(context.Background(), "stored-token"))
}

func TestValidate_TimeoutFailsOpen(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := NewService(Options{
		AuthServiceURL:  srv.URL,
		CallbackURL:     "http://localhost:4000/auth/callback",
		QRCodeURL:       "https://qr.example.com/",
		ValidateTimeout: 50 * time.Millisecond,
	}, &memStore{}, &recordingLauncher{}, nil)

	assert.True(t, s.Validate(context.Background(), "stored-token"))
}

func TestValidate_ConcurrentCallsShareRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		json.NewEncoder(w).Encode(ValidationResponse{Valid: false})
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL, &memStore{}, &recordingLauncher{})

	const callers = 5
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		go func() { results <- s.Validate(context.Background(), "stored-token") }()
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < callers; i++ {
		assert.False(t, <-results)
	}
	assert.Equal(t, int32(1), hits.Load())
}

// =============================================================================
// CheckOnStartup
// =============================================================================

func TestCheckOnStartup_NoToken(t *testing.T) {
	launcher := &recordingLauncher{}
	s := newTestService(t, unreachableURL(t), &memStore{}, launcher)

	outcome, err := s.CheckOnStartup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthStarted, outcome)
	assert.Len(t, launcher.Opened(), 1)
}

func TestCheckOnStartup_ReadErrorTreatedAsAbsent(t *testing.T) {
	launcher := &recordingLauncher{}
	store := &memStore{getErr: errors.New("keychain locked")}
	s := newTestService(t, unreachableURL(t), store, launcher)

	outcome, err := s.CheckOnStartup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthStarted, outcome)
	assert.Len(t, launcher.Opened(), 1)
}

func TestCheckOnStartup_ValidToken(t *testing.T) {
	srv := validator(t, http.StatusOK, ValidationResponse{Valid: true})
	launcher := &recordingLauncher{}
	store := &memStore{secret: "stored-token"}
	s := newTestService(t, srv.URL, store, launcher)

	outcome, err := s.CheckOnStartup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
	assert.Empty(t, launcher.Opened())
	assert.Equal(t, "stored-token", store.secret)
}

func TestCheckOnStartup_ValidatorUnreachableFailsOpen(t *testing.T) {
	launcher := &recordingLauncher{}
	store := &memStore{secret: "stored-token"}
	s := newTestService(t, unreachableURL(t), store, launcher)

	outcome, err := s.CheckOnStartup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeValid, outcome)
	assert.Empty(t, launcher.Opened(), "an unreachable validator must not force re-authentication")
	assert.Equal(t, 0, store.deletes)
	assert.Equal(t, "stored-token", store.secret)
}

func TestCheckOnStartup_RejectedTokenCleared(t *testing.T) {
	srv := validator(t, http.StatusUnauthorized, nil)
	launcher := &recordingLauncher{}
	store := &memStore{secret: "stored-token"}
	s := newTestService(t, srv.URL, store, launcher)

	outcome, err := s.CheckOnStartup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReauthStarted, outcome)
	assert.Equal(t, 1, store.deletes)
	assert.Empty(t, store.secret)
	assert.Len(t, launcher.Opened(), 1)
}

func TestCheckOnStartup_ClearFailureReturned(t *testing.T) {
	srv := validator(t, http.StatusForbidden, nil)
	launcher := &recordingLauncher{}
	store := &memStore{secret: "stored-token", deleteErr: errors.New("keychain write denied")}
	s := newTestService(t, srv.URL, store, launcher)

	_, err := s.CheckOnStartup(context.Background())
	require.Error(t, err)
	assert.Empty(t, launcher.Opened())
}

func TestCheckOnStartup_BrowserFailureNotFatal(t *testing.T) {
	launcher := &recordingLauncher{err: errors.New("unsupported platform")}
	s := newTestService(t, unreachableURL(t), &memStore{}, launcher)

	outcome, err := s.CheckOnStartup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthStarted, outcome)
}

func TestCheckOnStartup_Idempotent(t *testing.T) {
	srv := validator(t, http.StatusOK, ValidationResponse{Valid: true})
	s := newTestService(t, srv.URL, &memStore{secret: "stored-token"}, &recordingLauncher{})

	for i := 0; i < 3; i++ {
		outcome, err := s.CheckOnStartup(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeValid, outcome)
	}
}

// =============================================================================
// ProcessCallback / Logout
// =============================================================================

func TestProcessCallback(t *testing.T) {
	store := &memStore{secret: "old"}
	s := newTestService(t, unreachableURL(t), store, &recordingLauncher{})

	require.NoError(t, s.ProcessCallback("new-token"))
	assert.Equal(t, "new-token", store.secret)
}

func TestProcessCallback_Empty(t *testing.T) {
	store := &memStore{secret: "old"}
	s := newTestService(t, unreachableURL(t), store, &recordingLauncher{})

	assert.ErrorIs(t, s.ProcessCallback(""), ErrEmptyToken)
	assert.Equal(t, "old", store.secret)
}

func TestProcessCallback_StoreFailure(t *testing.T) {
	storeErr := errors.New("disk full")
	s := newTestService(t, unreachableURL(t), &memStore{setErr: storeErr}, &recordingLauncher{})

	assert.ErrorIs(t, s.ProcessCallback("tok"), storeErr)
}

func TestLogout(t *testing.T) {
	store := &memStore{secret: "tok"}
	s := newTestService(t, unreachableURL(t), store, &recordingLauncher{})

	require.NoError(t, s.Logout())
	_, err := s.StoredToken()
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

// =============================================================================
// AuthURL / StartAuthFlow
// =============================================================================

func TestAuthURL(t *testing.T) {
	s := newTestService(t, unreachableURL(t), &memStore{}, &recordingLauncher{})

	raw, err := s.AuthURL("/home/dev/project/main.go", "abc123")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "qr.example.com", u.Host)

	callback, err := url.Parse(u.Query().Get("callback"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", callback.Path)
	assert.Equal(t, "abc123", callback.Query().Get("sessionId"))
	assert.Equal(t, "/home/dev/project/main.go", callback.Query().Get("currentPath"))
}

func TestAuthURL_NoParams(t *testing.T) {
	s := newTestService(t, unreachableURL(t), &memStore{}, &recordingLauncher{})

	raw, err := s.AuthURL("", "")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000/auth/callback", u.Query().Get("callback"))
}

func TestStartAuthFlow_ReturnsURLOnLaunchFailure(t *testing.T) {
	launcher := &recordingLauncher{err: errors.New("no display")}
	s := newTestService(t, unreachableURL(t), &memStore{}, launcher)

	authURL, err := s.StartAuthFlow("", "sid")
	require.Error(t, err)
	assert.NotEmpty(t, authURL)
	assert.Equal(t, []string{authURL}, launcher.Opened())
}

func TestStartupOutcome_String(t *testing.T) {
	assert.Equal(t, "valid", OutcomeValid.String())
	assert.Equal(t, "auth_started", OutcomeAuthStarted.String())
	assert.Equal(t, "reauth_started", OutcomeReauthStarted.String())
}
