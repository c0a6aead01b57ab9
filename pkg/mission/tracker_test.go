package mission

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferno-games/quantum-salvation/pkg/events"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func testCatalog() map[ID]Mission {
	objectives := func(ids ...ObjectiveID) []Objective {
		out := make([]Objective, 0, len(ids))
		for _, id := range ids {
			out = append(out, Objective{ID: id})
		}
		return out
	}
	return map[ID]Mission{
		"m001": {
			ID:            "m001",
			Name:          "Patient Zero",
			Objectives:    objectives("obj1", "obj2", "obj3", "obj4", "obj5"),
			Rewards:       map[string]any{"patient_zero_traced": true},
			ProgressValue: 10,
		},
		"m002": {
			ID:           "m002",
			Name:         "Seal Ward Seven",
			TimeLimit:    1,
			AutoComplete: true,
			Objectives: []Objective{
				{ID: "reach_ward", CompleteOn: &Trigger{Kind: TriggerLocation, Location: "ward_seven"}},
			},
		},
		"m003": {
			ID:           "m003",
			Name:         "Cold Trail",
			TriggerFlags: map[string]any{"met_virgil": true, "outbreak_confirmed": true},
			Clues:        []Clue{{ID: "cooling_logs"}},
			Objectives: []Objective{
				{ID: "confirm_vector", CompleteOn: &Trigger{Kind: TriggerFlag, Flag: "vector_identified", Value: true}},
				{ID: "recover_resonator", CompleteOn: &Trigger{Kind: TriggerItem, Item: "quantum_resonator"}},
				{ID: "study_notes", CompleteOn: &Trigger{Kind: TriggerResearch, Lore: "entanglement_notes"}},
				{ID: "find_logs", CompleteOn: &Trigger{Kind: TriggerClue, Clue: "cooling_logs"}},
			},
		},
	}
}

func newTestTracker(t *testing.T) (*Tracker, *story.Engine, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	engine := story.NewEngine(story.Config{TotalDuration: 72 * time.Hour}, bus, testLogger())
	tracker := NewTracker(engine, testCatalog(), testLogger())
	t.Cleanup(tracker.Close)
	return tracker, engine, bus
}

func TestTracker_FullMissionLifecycle(t *testing.T) {
	tracker, engine, _ := newTestTracker(t)

	require.True(t, tracker.StartMission("m001"))
	for _, obj := range []ObjectiveID{"obj1", "obj2", "obj3", "obj4", "obj5"} {
		require.True(t, tracker.CompleteObjective("m001", obj))
	}

	// All objectives done, but auto-complete is off: mission stays active
	// at 100% until completed explicitly.
	active := tracker.Active()
	require.NotNil(t, active)
	assert.Equal(t, 100, active.Progress)
	assert.False(t, tracker.IsMissionCompleted("m001"))

	require.True(t, tracker.CompleteMission(true))
	assert.True(t, tracker.IsMissionCompleted("m001"))
	assert.Nil(t, tracker.Active())

	// Rewards applied as flags through the engine
	assert.Equal(t, true, engine.GetFlag("patient_zero_traced", false))
	assert.Equal(t, 10.0, engine.State().MainProgress)

	// A completed mission cannot restart
	assert.False(t, tracker.StartMission("m001"))
}

func TestTracker_ProgressRounding(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	require.True(t, tracker.StartMission("m001"))
	tracker.CompleteObjective("m001", "obj1")
	assert.Equal(t, 20, tracker.Progress("m001"))
	tracker.CompleteObjective("m001", "obj2")
	assert.Equal(t, 40, tracker.Progress("m001"))
}

func TestTracker_ObjectiveIdempotent(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	require.True(t, tracker.StartMission("m001"))
	require.True(t, tracker.CompleteObjective("m001", "obj1"))
	before := tracker.Progress("m001")

	assert.False(t, tracker.CompleteObjective("m001", "obj1"))
	assert.Equal(t, before, tracker.Progress("m001"))
}

func TestTracker_StartRejections(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	assert.False(t, tracker.StartMission("nope"), "unknown mission")

	require.True(t, tracker.StartMission("m001"))
	assert.False(t, tracker.StartMission("m001"), "same mission already active")
	assert.False(t, tracker.StartMission("m002"), "second mission rejected while one is active")

	active := tracker.Active()
	require.NotNil(t, active)
	assert.Equal(t, ID("m001"), active.ID)
}

func TestTracker_UnknownObjective(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	require.True(t, tracker.StartMission("m001"))
	assert.False(t, tracker.CompleteObjective("m001", "bogus"))
	assert.False(t, tracker.CompleteObjective("m002", "reach_ward"), "mission not active")
}

func TestTracker_TimerExpiryFailsMission(t *testing.T) {
	tracker, engine, bus := newTestTracker(t)

	failed := 0
	bus.Subscribe(events.TypeMissionFailed, func(events.Event) { failed++ })
	timerUpdates := 0
	bus.Subscribe(events.TypeMissionTimer, func(events.Event) { timerUpdates++ })

	require.True(t, tracker.StartMission("m002"))
	engine.Update(30)
	require.NotNil(t, tracker.Active())
	assert.Greater(t, timerUpdates, 0)

	engine.Update(31)
	assert.Nil(t, tracker.Active())
	assert.False(t, tracker.IsMissionCompleted("m002"))
	assert.Equal(t, 1, failed)

	// Further ticks fire nothing against torn-down state
	engine.Update(60)
	assert.Equal(t, 1, failed)
}

func TestTracker_TimerCancelledOnCompletion(t *testing.T) {
	tracker, engine, bus := newTestTracker(t)

	failed := 0
	bus.Subscribe(events.TypeMissionFailed, func(events.Event) { failed++ })

	require.True(t, tracker.StartMission("m002"))
	// Entering the ward completes the single objective; the mission
	// auto-completes and its countdown dies with it.
	engine.EnterLocation("ward_seven")
	assert.True(t, tracker.IsMissionCompleted("m002"))
	assert.Nil(t, tracker.Active())

	engine.Update(120)
	assert.Equal(t, 0, failed)
	assert.True(t, tracker.IsMissionCompleted("m002"))
}

func TestTracker_AutoStartOnTriggerFlags(t *testing.T) {
	tracker, engine, _ := newTestTracker(t)

	engine.SetFlag("met_virgil", true)
	assert.Nil(t, tracker.Active(), "one of two trigger flags is not enough")

	engine.SetFlag("outbreak_confirmed", true)
	active := tracker.Active()
	require.NotNil(t, active)
	assert.Equal(t, ID("m003"), active.ID)
}

func TestTracker_ObjectiveAutoCompletion(t *testing.T) {
	tracker, engine, _ := newTestTracker(t)

	engine.SetFlag("met_virgil", true)
	engine.SetFlag("outbreak_confirmed", true)
	require.NotNil(t, tracker.Active())

	// Flag predicate, same-step completion
	engine.SetFlag("vector_identified", true)
	// Item predicate
	engine.CollectItem("quantum_resonator")
	// Research predicate
	engine.DiscoverLore("entanglement_notes", story.LoreEntry{Title: "Entanglement Notes", ResearchValue: 5})

	active := tracker.Active()
	require.NotNil(t, active)
	assert.True(t, active.Objectives["confirm_vector"])
	assert.True(t, active.Objectives["recover_resonator"])
	assert.True(t, active.Objectives["study_notes"])
	assert.False(t, active.Objectives["find_logs"])
	assert.Equal(t, 75, active.Progress)
}

func TestTracker_FlagValueMustMatch(t *testing.T) {
	tracker, engine, _ := newTestTracker(t)

	engine.SetFlag("met_virgil", true)
	engine.SetFlag("outbreak_confirmed", true)
	require.NotNil(t, tracker.Active())

	engine.SetFlag("vector_identified", false)
	assert.False(t, tracker.Active().Objectives["confirm_vector"])
}

func TestTracker_DiscoverClue(t *testing.T) {
	tracker, engine, bus := newTestTracker(t)

	allDone := 0
	bus.Subscribe(events.TypeAllObjectivesCompleted, func(events.Event) { allDone++ })

	assert.False(t, tracker.DiscoverClue("cooling_logs"), "no active mission")

	engine.SetFlag("met_virgil", true)
	engine.SetFlag("outbreak_confirmed", true)
	require.NotNil(t, tracker.Active())

	assert.False(t, tracker.DiscoverClue("bogus"), "clue not in catalog entry")

	require.True(t, tracker.DiscoverClue("cooling_logs"))
	assert.True(t, tracker.Active().Objectives["find_logs"], "clue cascades into its objective")

	assert.False(t, tracker.DiscoverClue("cooling_logs"), "idempotent per mission")
	assert.Equal(t, 25, tracker.Active().Progress)

	// Finish the rest; m003 has auto-complete off, so completion stays manual
	engine.SetFlag("vector_identified", true)
	engine.CollectItem("quantum_resonator")
	engine.DiscoverLore("entanglement_notes", story.LoreEntry{Title: "Entanglement Notes"})
	assert.Equal(t, 1, allDone)
	assert.False(t, tracker.IsMissionCompleted("m003"))
}

func TestTracker_QuestRecordSync(t *testing.T) {
	tracker, engine, _ := newTestTracker(t)

	require.True(t, tracker.StartMission("m001"))
	quest := engine.State().ActiveQuests["m001"]
	assert.Equal(t, story.QuestActive, quest.Status)
	require.Len(t, quest.Objectives, 5)

	tracker.CompleteObjective("m001", "obj1")
	quest = engine.State().ActiveQuests["m001"]
	assert.Equal(t, 20, quest.Progress)

	for _, obj := range []ObjectiveID{"obj2", "obj3", "obj4", "obj5"} {
		tracker.CompleteObjective("m001", obj)
	}
	tracker.CompleteMission(true)
	quest = engine.State().ActiveQuests["m001"]
	assert.Equal(t, story.QuestCompleted, quest.Status)
}

func TestTracker_FailMission(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	assert.False(t, tracker.FailMission(), "nothing active")

	require.True(t, tracker.StartMission("m001"))
	require.True(t, tracker.FailMission())
	assert.Nil(t, tracker.Active())
	assert.False(t, tracker.IsMissionCompleted("m001"))

	// A failed mission is not in the completed set and may be retried
	assert.True(t, tracker.StartMission("m001"))
}

func TestTracker_ProgressRewardOnOutcome(t *testing.T) {
	bus := events.NewBus()
	engine := story.NewEngine(story.Config{TotalDuration: 72 * time.Hour}, bus, testLogger())
	tracker := NewTracker(engine, map[ID]Mission{
		"sweep": {ID: "sweep", Name: "Sweep the Ward", ProgressValue: 15,
			Objectives: []Objective{{ID: "clear"}}},
		"trace": {ID: "trace", Name: "Trace the Vector", ProgressValue: 25,
			Objectives: []Objective{{ID: "sample"}}},
	}, testLogger())
	t.Cleanup(tracker.Close)

	require.Equal(t, 0.0, engine.State().MainProgress)

	// Success applies the mission's progress value to the campaign total.
	require.True(t, tracker.StartMission("sweep"))
	require.True(t, tracker.CompleteMission(true))
	assert.Equal(t, 15.0, engine.State().MainProgress)

	// Failure leaves it untouched.
	require.True(t, tracker.StartMission("trace"))
	require.True(t, tracker.FailMission())
	assert.Equal(t, 15.0, engine.State().MainProgress)

	// Retrying after the failure pays out on the eventual success.
	require.True(t, tracker.StartMission("trace"))
	require.True(t, tracker.CompleteMission(true))
	assert.Equal(t, 40.0, engine.State().MainProgress)
}

func TestTracker_AddNote(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	assert.False(t, tracker.AddNote("orphan note"))

	require.True(t, tracker.StartMission("m001"))
	require.True(t, tracker.AddNote("vector may be airborne"))
	assert.Equal(t, []string{"vector may be airborne"}, tracker.Active().Notes)
}
