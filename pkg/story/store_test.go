package story

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(NewState(72*time.Hour, 20, "descent"))
}

func TestStore_ModifyRelationshipClamps(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   float64
	}{
		{"huge positive", []float64{1000}, 100},
		{"huge negative", []float64{-99999}, -100},
		{"accumulates within range", []float64{30, -10}, 20},
		{"saturates then recovers", []float64{500, -50}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore()
			var cur float64
			for _, d := range tt.deltas {
				cur, _ = st.ModifyRelationship("dr_virgil", d)
			}
			assert.Equal(t, tt.want, cur)
			assert.GreaterOrEqual(t, cur, -100.0)
			assert.LessOrEqual(t, cur, 100.0)
		})
	}
}

func TestStore_NumericClamps(t *testing.T) {
	st := newTestStore()

	cur, _ := st.AdvanceResearch(150)
	assert.Equal(t, 100.0, cur)
	cur, _ = st.AdvanceResearch(-500)
	assert.Equal(t, 0.0, cur)

	cur, _ = st.AdjustSeverity(200)
	assert.Equal(t, 100.0, cur)
	cur, _ = st.AdjustSeverity(-150)
	assert.Equal(t, 0.0, cur)

	cur, _ = st.AdjustStabilization(101)
	assert.Equal(t, 100.0, cur)
}

func TestStore_TimeFloor(t *testing.T) {
	st := NewStore(NewState(time.Minute, 0, "descent"))

	cur, prev := st.DecrementTime(45)
	assert.Equal(t, 60.0, prev)
	assert.Equal(t, 15.0, cur)

	cur, _ = st.DecrementTime(100)
	assert.Equal(t, 0.0, cur)

	cur, _ = st.AddTime(30)
	assert.Equal(t, 30.0, cur)
}

func TestStore_DiscoverLoreIdempotent(t *testing.T) {
	st := newTestStore()

	ok := st.DiscoverLore("entanglement_notes", LoreEntry{Title: "Entanglement Notes", ResearchValue: 5})
	require.True(t, ok)
	first := st.State().DiscoveredLore["entanglement_notes"].DiscoveredAt

	ok = st.DiscoverLore("entanglement_notes", LoreEntry{Title: "Entanglement Notes (dup)"})
	assert.False(t, ok)
	assert.Equal(t, first, st.State().DiscoveredLore["entanglement_notes"].DiscoveredAt)
	assert.Equal(t, "Entanglement Notes", st.State().DiscoveredLore["entanglement_notes"].Title)
}

func TestStore_CollectEvidenceIdempotent(t *testing.T) {
	st := newTestStore()

	require.True(t, st.CollectEvidence("patient_zero_sample", EvidenceEntry{Name: "Patient Zero Sample"}))
	assert.False(t, st.CollectEvidence("patient_zero_sample", EvidenceEntry{Name: "Another Sample"}))
	assert.Len(t, st.State().CollectedEvidence, 1)
}

func TestStore_ChangeLog(t *testing.T) {
	st := newTestStore()

	st.SetFlag("met_virgil", true)
	st.ModifyRelationship("dr_beatrice", 10)
	st.AdvanceResearch(5)

	changes := st.DrainChanges()
	require.Len(t, changes, 3)
	assert.Equal(t, OpFlag, changes[0].Op)
	assert.Equal(t, "met_virgil", changes[0].Key)
	assert.Equal(t, OpRelationship, changes[1].Op)
	assert.Equal(t, OpResearch, changes[2].Op)

	// Drained log is cleared
	assert.Empty(t, st.DrainChanges())
}

func TestStore_RecordDecisionAppendOnly(t *testing.T) {
	st := newTestStore()

	st.RecordDecision(Decision{ID: "quarantine_city", Choice: "enforce", Context: DecisionContext{Type: DecisionPragmatic}})
	st.RecordDecision(Decision{ID: "share_formula", Choice: "share", Context: DecisionContext{Type: DecisionAltruistic}})

	decisions := st.State().Decisions
	require.Len(t, decisions, 2)
	assert.Equal(t, "quarantine_city", decisions[0].ID)
	assert.Equal(t, "share_formula", decisions[1].ID)
	assert.Equal(t, ChapterID("descent"), decisions[0].Chapter)
	assert.False(t, decisions[0].Timestamp.IsZero())
}

func TestStore_UnlockFacility(t *testing.T) {
	st := newTestStore()

	assert.True(t, st.UnlockFacility("cern_annex"))
	assert.False(t, st.UnlockFacility("cern_annex"))
	assert.True(t, st.State().World.UnlockedFacilities["cern_annex"])
}

func TestState_Clone(t *testing.T) {
	st := newTestStore()
	st.SetFlag("met_virgil", true)
	st.RecordDecision(Decision{ID: "d1", Choice: "a"})

	clone := st.State().Clone()
	clone.Flags["met_virgil"] = false
	clone.Decisions[0].Choice = "b"
	clone.World.UnlockedFacilities["x"] = true

	assert.Equal(t, true, st.State().Flags["met_virgil"])
	assert.Equal(t, "a", st.State().Decisions[0].Choice)
	assert.Empty(t, st.State().World.UnlockedFacilities)
}
