package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inferno-games/quantum-salvation/internal/session"
	"github.com/inferno-games/quantum-salvation/internal/storage"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// SessionResponse is the read model returned for a session.
type SessionResponse struct {
	ID              string                 `json:"id"`
	CreatedAt       time.Time              `json:"created_at"`
	Chapter         story.ChapterID        `json:"chapter"`
	MainProgress    float64                `json:"main_progress"`
	World           story.WorldState       `json:"world"`
	EndingPath      story.EndingID         `json:"ending_path,omitempty"`
	CurrentEnding   story.EndingID         `json:"current_ending"`
	PossibleEndings []story.EndingID       `json:"possible_endings,omitempty"`
	ActiveMission   *mission.ActiveMission `json:"active_mission,omitempty"`
	Completed       []mission.ID           `json:"completed_missions,omitempty"`
	Cinematic       *CinematicStatus       `json:"cinematic,omitempty"`
}

// CinematicStatus reports sequencer state for a session view.
type CinematicStatus struct {
	ID              string `json:"id"`
	SceneIndex      int    `json:"scene_index"`
	Paused          bool   `json:"paused,omitempty"`
	PendingDecision string `json:"pending_decision,omitempty"`
}

// SessionHandler handles the /v1/sessions surface.
// Routes:
// POST /v1/sessions                - Create a new session
// GET /v1/sessions/{id}            - Read session state
// DELETE /v1/sessions/{id}         - Delete a session
// POST /v1/sessions/{id}/actions   - Apply a player action
// POST /v1/sessions/{id}/tick      - Advance the simulation clock
type SessionHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewSessionHandler(manager *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")

	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	segments := strings.SplitN(path, "/", 2)
	id, err := uuid.Parse(segments[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", segments[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
		return
	}
	switch segments[1] {
	case "actions":
		h.handleAction(w, r, id)
	case "tick":
		h.handleTick(w, r, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context())
	if err != nil {
		h.logger.Error("Failed to create session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, sessionView(s))
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.sessionError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sessionView(s))
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.sessionError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type TickRequest struct {
	Delta float64 `json:"delta"` // seconds of simulated time
}

func (h *SessionHandler) handleTick(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req TickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Delta <= 0 {
		writeError(w, h.logger, http.StatusBadRequest, "delta must be positive")
		return
	}

	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.sessionError(w, id, err)
		return
	}
	s.Tick(req.Delta)

	if err := h.manager.Save(r.Context(), s); err != nil {
		h.logger.Error("Failed to save session after tick", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sessionView(s))
}

func (h *SessionHandler) sessionError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	h.logger.Error("Session lookup failed", "session_id", id, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
}

func sessionView(s *session.Session) *SessionResponse {
	st := s.Engine.State()
	resp := &SessionResponse{
		ID:              s.ID.String(),
		CreatedAt:       s.CreatedAt,
		Chapter:         st.CurrentChapter,
		MainProgress:    st.MainProgress,
		World:           st.World,
		EndingPath:      s.Engine.EndingPath(),
		CurrentEnding:   s.Engine.DetermineEnding(),
		PossibleEndings: s.Engine.PossibleEndings(),
		ActiveMission:   s.Tracker.Active(),
		Completed:       s.Tracker.CompletedMissions(),
	}
	if cs := s.Sequencer.Status(); cs.IsPlaying {
		resp.Cinematic = &CinematicStatus{
			ID:              string(cs.ActiveCinematic),
			SceneIndex:      cs.SceneIndex,
			Paused:          cs.IsPaused,
			PendingDecision: cs.PendingDecision,
		}
	}
	return resp
}
