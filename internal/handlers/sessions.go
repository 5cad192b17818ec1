package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/internal/logger"
	"github.com/jwebster45206/novel-engine/internal/services/events"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest defines the request body for starting a session.
// Every field is optional.
type CreateSessionRequest struct {
	Profile    string `json:"profile,omitempty"`
	StartScene string `json:"start_scene,omitempty"`
}

// SessionHandler serves the session API.
type SessionHandler struct {
	sessions    *state.Registry
	broadcaster *events.Broadcaster // nil when events are not enabled
	logger      *slog.Logger
}

func NewSessionHandler(sessions *state.Registry, broadcaster *events.Broadcaster, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// ServeHTTP handles HTTP requests for sessions
// Routes:
// POST   /v1/sessions              - Start a session
// GET    /v1/sessions/{id}         - Current view
// DELETE /v1/sessions/{id}         - End a session
// POST   /v1/sessions/{id}/intents - Apply an intent
// GET    /v1/sessions/{id}/saves   - Save slot summaries
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		h.writeError(w, http.StatusNotFound, "Not found")
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	session, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.writeJSON(w, http.StatusOK, session.View())
	case sub == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case sub == "intents" && r.Method == http.MethodPost:
		h.handleIntent(w, r, session)
	case sub == "saves" && r.Method == http.MethodGet:
		h.handleSaves(w, r, session)
	case sub == "" || sub == "intents" || sub == "saves":
		h.logger.Warn("Method not allowed for session endpoint", "method", r.Method, "path", r.URL.Path)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		h.writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleSaves(w http.ResponseWriter, r *http.Request, session *state.Session) {
	summaries, err := session.Saves(r.Context())
	if err != nil {
		logger.WithError(h.logger, err).Error("Failed to read save slots")
		h.writeError(w, http.StatusInternalServerError, "Failed to read save slots")
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("Invalid JSON in request body", "error", err)
			h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
	}

	session, err := h.sessions.Create(r.Context(), state.Options{
		Profile:    strings.TrimSpace(req.Profile),
		StartScene: strings.TrimSpace(req.StartScene),
	})
	if err != nil {
		logger.WithError(h.logger, err).Warn("Failed to create session", "start_scene", req.StartScene)
		if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrInvalidScene) {
			h.writeError(w, http.StatusBadRequest, "Failed to start session: "+err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	logger.WithSession(h.logger, session.ID.String()).Info("Session started", "profile", session.Profile)
	h.writeJSON(w, http.StatusCreated, session.View())
}

func (h *SessionHandler) handleIntent(w http.ResponseWriter, r *http.Request, session *state.Session) {
	log := logger.WithSession(h.logger, session.ID.String())

	var in state.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.Warn("Invalid JSON in intent", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	view, err := session.Dispatch(r.Context(), in)
	switch {
	case errors.Is(err, state.ErrUnknownIntent), errors.Is(err, state.ErrInvalidIntent):
		log.Warn("Rejected intent", "type", in.Type, "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, state.ErrSessionClosed):
		h.writeError(w, http.StatusGone, "Session closed")
		return
	case err != nil:
		logger.WithError(log, err).Error("Intent failed", "type", in.Type)
		h.writeError(w, http.StatusInternalServerError, "Intent failed")
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.sessions.Delete(id); err != nil {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if h.broadcaster != nil {
		if err := h.broadcaster.PublishSessionClosed(context.WithoutCancel(r.Context()), id); err != nil {
			h.logger.Warn("Failed to publish session close", "session_id", id.String(), "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}
