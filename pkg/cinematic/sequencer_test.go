package cinematic

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

func testCatalog() map[ID]Cinematic {
	return map[ID]Cinematic{
		"emergency_briefing": {
			ID:    "emergency_briefing",
			Title: "Emergency Briefing",
			Scenes: []Scene{
				{Type: SceneNewsBroadcast, Duration: 2, Text: "Outbreak confirmed in three districts."},
				{Type: SceneFootage, Duration: 3, Text: "Quarantine barriers go up overnight."},
				{Type: SceneBriefingRoom, Duration: 2, Text: "Director Hale lays out the numbers."},
				{
					Type: SceneCharacterFocus, Duration: 4,
					Text: "All eyes turn to you.",
					Decision: &DecisionPoint{
						ID:     "accept_mission",
						Prompt: "Will you lead the response?",
						Choices: []Choice{
							{ID: "accept", Text: "I'm in.", Type: story.DecisionAltruistic, SetFlags: map[string]any{"mission_accepted": true}},
							{ID: "refuse", Text: "Find someone else.", Type: story.DecisionCareful, SetFlags: map[string]any{"mission_accepted": false}},
						},
					},
				},
				{Type: SceneMontage, Duration: 3, Text: "The response team assembles."},
			},
		},
		"facility_tour": {
			ID:        "facility_tour",
			Title:     "Facility Tour",
			Skippable: true,
			Scenes: []Scene{
				{Type: SceneHologram, Duration: 5},
				{Type: SceneLab, Duration: 5},
			},
		},
	}
}

func newTestSequencer(t *testing.T) (*Sequencer, *story.Engine, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	engine := story.NewEngine(story.Config{TotalDuration: 72 * time.Hour}, bus, testLogger())
	seq := NewSequencer(engine, testCatalog(), testLogger())
	t.Cleanup(seq.Close)
	return seq, engine, bus
}

func resolved(t *testing.T, pb *Playback) (Result, bool) {
	t.Helper()
	select {
	case res := <-pb.Done():
		return res, true
	default:
		return Result{}, false
	}
}

func TestSequencer_DecisionGateLifecycle(t *testing.T) {
	seq, engine, _ := newTestSequencer(t)

	pb, ok := seq.Play("emergency_briefing")
	require.True(t, ok)
	require.NotNil(t, pb)

	// The first three scenes auto-advance; the fourth suspends at its
	// decision point.
	engine.Update(7)
	st := seq.Status()
	assert.Equal(t, 3, st.SceneIndex)
	assert.Equal(t, "accept_mission", st.PendingDecision)

	// Time keeps passing but the timeline holds until a choice lands.
	engine.Update(60)
	st = seq.Status()
	assert.Equal(t, 3, st.SceneIndex)
	assert.Equal(t, "accept_mission", st.PendingDecision)
	_, done := resolved(t, pb)
	assert.False(t, done)

	require.True(t, seq.SubmitDecision("accept"))
	assert.Equal(t, true, engine.GetFlag("mission_accepted", false))

	// Display delay, then the final scene plays out before the playback
	// resolves.
	engine.Update(DefaultDecisionDisplayDelay)
	st = seq.Status()
	assert.Equal(t, 4, st.SceneIndex)
	assert.Empty(t, st.PendingDecision)
	_, done = resolved(t, pb)
	require.False(t, done)

	engine.Update(3)
	res, done := resolved(t, pb)
	require.True(t, done)
	assert.Equal(t, ID("emergency_briefing"), res.CinematicID)
	assert.True(t, res.Completed)
	assert.False(t, res.Skipped)

	assert.False(t, seq.Status().IsPlaying)
	assert.True(t, engine.Triggered("cinematic_emergency_briefing"))
}

func TestSequencer_LargeDeltaCrossesScenes(t *testing.T) {
	seq, engine, _ := newTestSequencer(t)

	pb, ok := seq.Play("facility_tour")
	require.True(t, ok)

	// One oversized tick covers both scenes.
	engine.Update(20)
	res, done := resolved(t, pb)
	require.True(t, done)
	assert.True(t, res.Completed)
}

func TestSequencer_PartialTickAccumulates(t *testing.T) {
	seq, engine, _ := newTestSequencer(t)

	_, ok := seq.Play("facility_tour")
	require.True(t, ok)

	engine.Update(3)
	assert.Equal(t, 0, seq.Status().SceneIndex)
	engine.Update(2)
	assert.Equal(t, 1, seq.Status().SceneIndex)
}

func TestSequencer_RejectsConcurrentAndUnknown(t *testing.T) {
	seq, _, _ := newTestSequencer(t)

	_, ok := seq.Play("emergency_briefing")
	require.True(t, ok)

	pb, ok := seq.Play("facility_tour")
	assert.False(t, ok)
	assert.Nil(t, pb)

	pb, ok = seq.Play("no_such_cinematic")
	assert.False(t, ok)
	assert.Nil(t, pb)
}

func TestSequencer_SubmitDecisionValidation(t *testing.T) {
	seq, engine, _ := newTestSequencer(t)

	// No cinematic playing.
	assert.False(t, seq.SubmitDecision("accept"))

	_, ok := seq.Play("emergency_briefing")
	require.True(t, ok)

	// Not yet at the decision point.
	assert.False(t, seq.SubmitDecision("accept"))

	engine.Update(7)
	require.Equal(t, "accept_mission", seq.Status().PendingDecision)

	// Unknown choice leaves the gate armed.
	assert.False(t, seq.SubmitDecision("negotiate"))
	assert.Equal(t, "accept_mission", seq.Status().PendingDecision)

	require.True(t, seq.SubmitDecision("refuse"))
	assert.Equal(t, false, engine.GetFlag("mission_accepted", true))

	// The decision is recorded in story state with its context type.
	st := engine.State()
	require.Len(t, st.Decisions, 1)
	assert.Equal(t, "accept_mission", st.Decisions[0].ID)
	assert.Equal(t, "refuse", st.Decisions[0].Choice)
}

func TestSequencer_SkipRespectsSkippable(t *testing.T) {
	seq, engine, _ := newTestSequencer(t)

	// Nothing playing.
	assert.False(t, seq.Skip())

	pb, ok := seq.Play("emergency_briefing")
	require.True(t, ok)
	assert.False(t, seq.Skip(), "non-skippable cinematic must keep playing")
	assert.True(t, seq.Status().IsPlaying)
	_, done := resolved(t, pb)
	assert.False(t, done)

	// Run it out so the skippable one can start.
	engine.Update(7)
	require.True(t, seq.SubmitDecision("accept"))
	engine.Update(10)

	pb, ok = seq.Play("facility_tour")
	require.True(t, ok)
	require.True(t, seq.Skip())

	res, done := resolved(t, pb)
	require.True(t, done)
	assert.Equal(t, ID("facility_tour"), res.CinematicID)
	assert.True(t, res.Skipped)
	assert.False(t, res.Completed)

	// Skipping still fires the completion hook for story triggers.
	assert.True(t, engine.Triggered("cinematic_facility_tour"))
	assert.False(t, seq.Status().IsPlaying)
}

func TestSequencer_PauseHoldsTimeline(t *testing.T) {
	seq, engine, bus := newTestSequencer(t)

	paused := 0
	resumed := 0
	bus.Subscribe(events.TypeCinematicPaused, func(events.Event) { paused++ })
	bus.Subscribe(events.TypeCinematicResumed, func(events.Event) { resumed++ })

	assert.False(t, seq.TogglePause(), "pause without a cinematic is a no-op")

	_, ok := seq.Play("facility_tour")
	require.True(t, ok)

	require.True(t, seq.TogglePause())
	engine.Update(30)
	st := seq.Status()
	assert.Equal(t, 0, st.SceneIndex)
	assert.True(t, st.IsPaused)

	require.False(t, seq.TogglePause())
	engine.Update(5)
	assert.Equal(t, 1, seq.Status().SceneIndex)

	assert.Equal(t, 1, paused)
	assert.Equal(t, 1, resumed)
}

func TestSequencer_SceneEvents(t *testing.T) {
	seq, engine, bus := newTestSequencer(t)

	var scenes []int
	bus.Subscribe(events.TypeSceneStarted, func(ev events.Event) {
		scenes = append(scenes, ev.Data["index"].(int))
	})
	var requests []string
	bus.Subscribe(events.TypeDecisionRequested, func(ev events.Event) {
		requests = append(requests, ev.Key)
	})

	_, ok := seq.Play("emergency_briefing")
	require.True(t, ok)
	engine.Update(7)

	assert.Equal(t, []int{0, 1, 2, 3}, scenes)
	assert.Equal(t, []string{"accept_mission"}, requests)
}

func TestSequencer_ReplayAfterCompletion(t *testing.T) {
	seq, engine, _ := newTestSequencer(t)

	pb, ok := seq.Play("facility_tour")
	require.True(t, ok)
	engine.Update(10)
	_, done := resolved(t, pb)
	require.True(t, done)

	// The sequencer is idle again; the same cinematic can replay.
	pb, ok = seq.Play("facility_tour")
	require.True(t, ok)
	engine.Update(10)
	res, done := resolved(t, pb)
	require.True(t, done)
	assert.True(t, res.Completed)
}
