package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/inferno-games/quantum-salvation/internal/session"
	"github.com/inferno-games/quantum-salvation/pkg/cinematic"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// ActionRequest is one player-facing command. Type selects the operation;
// the remaining fields are read per type.
type ActionRequest struct {
	Type string `json:"type"`

	Location  string  `json:"location,omitempty"`
	Item      string  `json:"item,omitempty"`
	Flag      string  `json:"flag,omitempty"`
	Value     any     `json:"value,omitempty"`
	Choice    string  `json:"choice,omitempty"`
	Mission   string  `json:"mission,omitempty"`
	Objective string  `json:"objective,omitempty"`
	Clue      string  `json:"clue,omitempty"`
	Note      string  `json:"note,omitempty"`
	Lore      string  `json:"lore,omitempty"`
	Evidence  string  `json:"evidence,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Cinematic string  `json:"cinematic,omitempty"`
	Chapter   string  `json:"chapter,omitempty"`
	Success   *bool   `json:"success,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

// ActionResponse reports whether the command took effect plus the updated
// session view. Accepted false is not an HTTP error: a rejected command
// (duplicate objective, unknown choice, second active mission) is a normal
// domain outcome.
type ActionResponse struct {
	Accepted bool             `json:"accepted"`
	Session  *SessionResponse `json:"session"`
}

func (h *SessionHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.sessionError(w, id, err)
		return
	}

	accepted, err := applyAction(s, &req)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Info("action applied", "session_id", id, "action", req.Type, "accepted", accepted)

	if err := h.manager.Save(r.Context(), s); err != nil {
		h.logger.Error("Failed to save session after action", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ActionResponse{Accepted: accepted, Session: sessionView(s)})
}

// applyAction dispatches one command against the session runtime. The bool
// result mirrors the core operations' idempotency: false means the command
// was understood but had no effect.
func applyAction(s *session.Session, req *ActionRequest) (bool, error) {
	switch req.Type {
	case "location_entered":
		if req.Location == "" {
			return false, fmt.Errorf("location is required")
		}
		s.Engine.EnterLocation(req.Location)
		return true, nil

	case "item_collected":
		if req.Item == "" {
			return false, fmt.Errorf("item is required")
		}
		s.Engine.CollectItem(req.Item)
		return true, nil

	case "flag_set":
		if req.Flag == "" {
			return false, fmt.Errorf("flag is required")
		}
		s.Engine.SetFlag(req.Flag, req.Value)
		return true, nil

	case "dialogue_choice":
		if req.Choice == "" {
			return false, fmt.Errorf("choice is required")
		}
		return s.Sequencer.SubmitDecision(req.Choice), nil

	case "lore_discovered":
		if req.Lore == "" {
			return false, fmt.Errorf("lore is required")
		}
		return s.Engine.DiscoverLore(story.LoreID(req.Lore), story.LoreEntry{Title: req.Title, Text: req.Text}), nil

	case "evidence_collected":
		if req.Evidence == "" {
			return false, fmt.Errorf("evidence is required")
		}
		return s.Engine.CollectEvidence(story.EvidenceID(req.Evidence), story.EvidenceEntry{Name: req.Title, Description: req.Text}), nil

	case "research_advanced":
		if req.Amount == 0 {
			return false, fmt.Errorf("amount is required")
		}
		s.Engine.AdvanceResearch(req.Amount)
		return true, nil

	case "mission_started":
		if req.Mission == "" {
			return false, fmt.Errorf("mission is required")
		}
		return s.Tracker.StartMission(mission.ID(req.Mission)), nil

	case "objective_completed":
		if req.Mission == "" || req.Objective == "" {
			return false, fmt.Errorf("mission and objective are required")
		}
		return s.Tracker.CompleteObjective(mission.ID(req.Mission), mission.ObjectiveID(req.Objective)), nil

	case "mission_completed":
		success := true
		if req.Success != nil {
			success = *req.Success
		}
		return s.Tracker.CompleteMission(success), nil

	case "mission_failed":
		return s.Tracker.FailMission(), nil

	case "clue_discovered":
		if req.Clue == "" {
			return false, fmt.Errorf("clue is required")
		}
		return s.Tracker.DiscoverClue(mission.ClueID(req.Clue)), nil

	case "note_added":
		if req.Note == "" {
			return false, fmt.Errorf("note is required")
		}
		return s.Tracker.AddNote(req.Note), nil

	case "cinematic_played":
		if req.Cinematic == "" {
			return false, fmt.Errorf("cinematic is required")
		}
		_, ok := s.Sequencer.Play(cinematic.ID(req.Cinematic))
		return ok, nil

	case "cinematic_skipped":
		return s.Sequencer.Skip(), nil

	case "cinematic_pause_toggled":
		s.Sequencer.TogglePause()
		return true, nil

	case "chapter_completed":
		if req.Chapter == "" {
			return false, fmt.Errorf("chapter is required")
		}
		if err := s.CompleteChapter(story.ChapterID(req.Chapter)); err != nil {
			return false, nil
		}
		return true, nil

	default:
		return false, fmt.Errorf("unknown action type %q", req.Type)
	}
}
