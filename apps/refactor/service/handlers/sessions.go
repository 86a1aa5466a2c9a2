package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/pitabwire/util"

	"github.com/antinvestor/codecraft/internal/store"
)

const defaultSessionListLimit = 50

// SessionsHandler serves persisted refactor sessions.
type SessionsHandler struct {
	sessions store.SessionRepository
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions store.SessionRepository) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// SessionListResponse is the list response envelope.
type SessionListResponse struct {
	Sessions []*store.RefactorSession `json:"sessions"`
	Count    int                      `json:"count"`
}

// ServeHTTP handles GET /api/v1/sessions and GET /api/v1/sessions/{id}.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Only GET method is allowed", nil)
		return
	}

	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sessions"), "/")
	if sessionID == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, sessionID)
}

func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	session, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found",
				"Session "+sessionID+" does not exist", nil)
			return
		}
		util.Log(ctx).WithError(err).Error("session lookup failed")
		writeError(w, http.StatusInternalServerError, "storage_error",
			"Failed to look up session", nil)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultSessionListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_error",
				"limit must be a positive integer", map[string]string{"field": "limit"})
			return
		}
		limit = parsed
	}

	sessions, err := h.sessions.List(ctx, limit)
	if err != nil {
		util.Log(ctx).WithError(err).Error("session list failed")
		writeError(w, http.StatusInternalServerError, "storage_error",
			"Failed to list sessions", nil)
		return
	}

	writeJSON(w, http.StatusOK, SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}
