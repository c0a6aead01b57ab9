package story

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(Config{TotalDuration: 72 * time.Hour, InitialSeverity: 20})
	e.SetFlag("met_virgil", true)
	e.ModifyRelationship("dr_beatrice", 25)
	e.AdvanceResearch(40)
	e.TriggerEvent("containment_breach", nil)
	e.RecordDecision("quarantine_city", "enforce", DecisionContext{Type: DecisionPragmatic})

	snap := e.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.False(t, snap.SavedAt.IsZero())

	// Snapshots serialize as opaque JSON
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, _ := newTestEngine(Config{})
	require.NoError(t, restored.Restore(&decoded))

	assert.Equal(t, true, restored.GetFlag("met_virgil", false))
	assert.Equal(t, 25.0, restored.State().Relationships["dr_beatrice"])
	assert.Equal(t, 40.0, restored.State().World.ResearchProgress)
	require.Len(t, restored.State().Decisions, 1)

	// The triggered-event guard survives the round trip
	assert.False(t, restored.TriggerEvent("containment_breach", nil))
	assert.True(t, restored.Triggered("research_milestone_25"))
}

func TestRestore_FailsClosed(t *testing.T) {
	e, _ := newTestEngine(Config{})
	e.SetFlag("met_virgil", true)

	assert.Error(t, e.Restore(nil))
	assert.Error(t, e.Restore(&Snapshot{Version: 1}))
	assert.Error(t, e.Restore(&Snapshot{Version: SnapshotVersion + 1, State: NewState(time.Hour, 0, "descent")}))

	// State untouched after every rejected restore
	assert.Equal(t, true, e.GetFlag("met_virgil", false))
}

func TestRestore_BackfillsMissingMaps(t *testing.T) {
	e, _ := newTestEngine(Config{})

	require.NoError(t, e.Restore(&Snapshot{
		Version: 1,
		State:   &State{World: WorldState{TimeRemaining: 100, TotalDuration: 100}},
	}))

	// Mutators must work against the backfilled maps
	e.SetFlag("ok", true)
	assert.Equal(t, true, e.GetFlag("ok", false))
	assert.True(t, e.UnlockFacility("cern_annex"))
}
