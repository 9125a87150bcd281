package authserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/standardbeagle/gitlab-mcp/internal/session"
	"github.com/standardbeagle/gitlab-mcp/internal/token"
)

// Error messages returned to clients.
const (
	MsgMissingAuthCode  = "Missing authCode parameter"
	MsgMissingSessionID = "Missing sessionId parameter"
	MsgSessionNotFound  = "Session not found or expired"
)

// StatusNotFound is reported for unknown or expired session ids.
const StatusNotFound = "not_found"

// StartResponse is the body of a successful start request.
type StartResponse struct {
	SessionID string `json:"sessionId"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
}

// StatusResponse is the body of a status poll.
type StatusResponse struct {
	Status    string `json:"status"`
	AuthToken string `json:"authToken,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request except status lookups.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess := s.registry.Create()
	currentPath := r.URL.Query().Get("currentPath")

	authURL, err := s.tokens.StartAuthFlow(currentPath, sess.ID)
	if err != nil {
		if authURL == "" {
			s.registry.UpdateStatus(sess.ID, session.StatusFailed, "", err.Error())
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.logger.Warn("failed to open browser, open the URL manually", "session_id", sess.ID, "url", authURL, "error", err)
	}

	s.logger.Info("validation started", "session_id", sess.ID)
	writeJSON(w, http.StatusOK, StartResponse{SessionID: sess.ID, QRCodeURL: authURL})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		writeError(w, http.StatusBadRequest, MsgMissingSessionID)
		return
	}

	sess, ok := s.registry.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, StatusResponse{Status: StatusNotFound, Error: MsgSessionNotFound})
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    string(sess.Status),
		AuthToken: sess.AuthToken,
		Error:     sess.Error,
	})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	authCode := q.Get("authCode")
	sessionID := q.Get("sessionId")
	currentPath := q.Get("currentPath")
	logger := s.logger.With("session_id", sessionID)

	if authCode == "" {
		s.failSession(sessionID, MsgMissingAuthCode)
		logger.Warn("callback rejected", "error", MsgMissingAuthCode)
		writeError(w, http.StatusBadRequest, MsgMissingAuthCode)
		return
	}

	if err := s.tokens.ProcessCallback(authCode); err != nil {
		s.failSession(sessionID, err.Error())
		logger.Error("failed to persist token", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, token.ErrEmptyToken) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	if sessionID != "" {
		if s.registry.UpdateStatus(sessionID, session.StatusSuccess, authCode, "") {
			logger.Info("session marked as successful")
		} else {
			logger.Warn("failed to update session, not found or already resolved")
		}
	}

	page, err := renderSuccessPage(s.editorScheme, currentPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: s.registry.Count()})
}

func (s *Server) failSession(id, msg string) {
	if id == "" {
		return
	}
	s.registry.UpdateStatus(id, session.StatusFailed, "", msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}
