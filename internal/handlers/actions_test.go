package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferno-games/quantum-salvation/pkg/mission"
)

func postAction(t *testing.T, h *SessionHandler, sessionID, body string) (*httptest.ResponseRecorder, *ActionResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/actions", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		return w, nil
	}
	var resp ActionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, &resp
}

func TestActionHandler_MissionFlow(t *testing.T) {
	h := newTestHandler(t)
	created := createSession(t, h)

	w, resp := postAction(t, h, created.ID, `{"type": "mission_started", "mission": "m001"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Accepted)
	require.NotNil(t, resp.Session.ActiveMission)
	assert.Equal(t, mission.ID("m001"), resp.Session.ActiveMission.ID)

	// Entering the hospital auto-completes the location objective.
	_, resp = postAction(t, h, created.ID, `{"type": "location_entered", "location": "mercy_general"}`)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Session.ActiveMission.Objectives["reach_hospital"])
	assert.Equal(t, 50, resp.Session.ActiveMission.Progress)

	_, resp = postAction(t, h, created.ID, `{"type": "item_collected", "item": "patient_zero_sample"}`)
	assert.Equal(t, 100, resp.Session.ActiveMission.Progress)

	_, resp = postAction(t, h, created.ID, `{"type": "mission_completed"}`)
	assert.True(t, resp.Accepted)
	assert.Nil(t, resp.Session.ActiveMission)
	assert.Equal(t, []mission.ID{"m001"}, resp.Session.Completed)

	// Starting a completed mission is rejected as a domain outcome, not an
	// HTTP error.
	w, resp = postAction(t, h, created.ID, `{"type": "mission_started", "mission": "m001"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Accepted)
}

func TestActionHandler_DialogueChoice(t *testing.T) {
	h := newTestHandler(t)
	created := createSession(t, h)

	// Reach the decision point of the opening cinematic.
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+created.ID+"/tick", bytes.NewBufferString(`{"delta": 2}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tickResp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tickResp))
	require.NotNil(t, tickResp.Cinematic)
	assert.Equal(t, "accept_mission", tickResp.Cinematic.PendingDecision)

	_, resp := postAction(t, h, created.ID, `{"type": "dialogue_choice", "choice": "accept"}`)
	assert.True(t, resp.Accepted)
	assert.Empty(t, resp.Session.Cinematic.PendingDecision)

	// Unknown choice with nothing pending.
	_, resp = postAction(t, h, created.ID, `{"type": "dialogue_choice", "choice": "accept"}`)
	assert.False(t, resp.Accepted)
}

func TestActionHandler_StateActions(t *testing.T) {
	h := newTestHandler(t)
	created := createSession(t, h)

	_, resp := postAction(t, h, created.ID, `{"type": "flag_set", "flag": "met_virgil", "value": true}`)
	assert.True(t, resp.Accepted)

	_, resp = postAction(t, h, created.ID, `{"type": "lore_discovered", "lore": "entanglement_notes", "title": "Entanglement Notes"}`)
	assert.True(t, resp.Accepted)

	// Lore is write-once.
	_, resp = postAction(t, h, created.ID, `{"type": "lore_discovered", "lore": "entanglement_notes"}`)
	assert.False(t, resp.Accepted)

	_, resp = postAction(t, h, created.ID, `{"type": "research_advanced", "amount": 25}`)
	assert.True(t, resp.Accepted)
	assert.GreaterOrEqual(t, resp.Session.World.ResearchProgress, 25.0)

	_, resp = postAction(t, h, created.ID, `{"type": "evidence_collected", "evidence": "patient_zero_sample", "title": "Patient Zero Sample"}`)
	assert.True(t, resp.Accepted)
}

func TestActionHandler_Validation(t *testing.T) {
	h := newTestHandler(t)
	created := createSession(t, h)

	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"type": "teleport"}`},
		{"missing location", `{"type": "location_entered"}`},
		{"missing flag", `{"type": "flag_set"}`},
		{"missing mission", `{"type": "mission_started"}`},
		{"missing objective", `{"type": "objective_completed", "mission": "m001"}`},
		{"malformed body", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := postAction(t, h, created.ID, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestActionHandler_SessionNotFound(t *testing.T) {
	h := newTestHandler(t)

	w, _ := postAction(t, h, "8b89a2a3-52a5-4d04-8f9b-4f4b36b4a5d5", `{"type": "flag_set", "flag": "x", "value": 1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
