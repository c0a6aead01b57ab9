package cinematic

import (
	"log/slog"
	"sync"

	"github.com/inferno-games/quantum-salvation/pkg/events"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// DefaultDecisionDisplayDelay is how long a decision's outcome stays on
// screen before the timeline advances, in simulated seconds.
const DefaultDecisionDisplayDelay = 2.0

// Result resolves a Playback when its cinematic finishes or is skipped.
type Result struct {
	CinematicID ID   `json:"cinematic_id"`
	Completed   bool `json:"completed,omitempty"`
	Skipped     bool `json:"skipped,omitempty"`
}

// Playback is the deferred result of Play.
type Playback struct {
	done chan Result
}

// Done yields the result exactly once, when the cinematic completes or is
// skipped.
func (p *Playback) Done() <-chan Result { return p.done }

// Status is a read-only snapshot of the sequencer.
type Status struct {
	ActiveCinematic ID
	SceneIndex      int
	IsPlaying       bool
	IsPaused        bool
	PendingDecision string // decision point id, empty unless suspended
}

// Sequencer advances one cinematic at a time through its scene script.
// Scenes play strictly in order; each auto-advances after its duration of
// simulated time unless it declares a decision point, in which case the
// timeline suspends until SubmitDecision. Nesting and queueing are not
// supported: Play rejects while another cinematic is active.
type Sequencer struct {
	mu      sync.Mutex
	engine  *story.Engine
	bus     *events.Bus
	catalog map[ID]Cinematic
	log     *slog.Logger
	delay   float64

	def          Cinematic
	activeID     ID
	sceneIdx     int
	playing      bool
	paused       bool
	awaiting     *DecisionPoint
	sceneElapsed float64
	resumeDelay  float64 // post-decision display countdown
	playback     *Playback
	unsub        func()
}

// NewSequencer builds a sequencer over a cinematic catalog and subscribes
// it to the engine's tick events. Call Close to detach.
func NewSequencer(engine *story.Engine, catalog map[ID]Cinematic, log *slog.Logger) *Sequencer {
	s := &Sequencer{
		engine:  engine,
		bus:     engine.Bus(),
		catalog: catalog,
		log:     log,
		delay:   DefaultDecisionDisplayDelay,
	}
	s.unsub = s.bus.Subscribe(events.TypeTick, s.onTick)
	return s
}

// Close detaches the sequencer from the event bus.
func (s *Sequencer) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// Status returns the current sequencer state.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ActiveCinematic: s.activeID,
		SceneIndex:      s.sceneIdx,
		IsPlaying:       s.playing,
		IsPaused:        s.paused,
	}
	if s.awaiting != nil {
		st.PendingDecision = s.awaiting.ID
	}
	return st
}

// Play starts a cinematic. Returns nil,false when the id is unknown or
// another cinematic is already playing. The returned Playback resolves when
// the cinematic completes or is skipped.
func (s *Sequencer) Play(id ID) (*Playback, bool) {
	s.mu.Lock()
	if s.playing {
		active := s.activeID
		s.mu.Unlock()
		s.log.Warn("cinematic already playing", "cinematic_id", id, "active", active)
		return nil, false
	}
	def, ok := s.catalog[id]
	if !ok || len(def.Scenes) == 0 {
		s.mu.Unlock()
		s.log.Warn("unknown cinematic", "cinematic_id", id)
		return nil, false
	}

	s.def = def
	s.activeID = id
	s.sceneIdx = 0
	s.playing = true
	s.paused = false
	s.awaiting = nil
	s.sceneElapsed = 0
	s.resumeDelay = 0
	s.playback = &Playback{done: make(chan Result, 1)}
	pb := s.playback

	var evs []events.Event
	evs = append(evs, events.Event{Type: events.TypeCinematicStarted, Key: string(id), Data: map[string]any{
		"cinematic": string(id), "title": def.Title, "scenes": len(def.Scenes),
	}})
	evs = append(evs, s.enterSceneLocked()...)
	s.mu.Unlock()

	s.log.Info("cinematic started", "cinematic_id", id, "scenes", len(def.Scenes))
	s.publish(evs)
	return pb, true
}

// enterSceneLocked emits the scene event for the current index and arms the
// decision gate when the scene declares one.
func (s *Sequencer) enterSceneLocked() []events.Event {
	sc := s.def.Scenes[s.sceneIdx]
	s.sceneElapsed = 0
	data := map[string]any{
		"cinematic": string(s.activeID),
		"index":     s.sceneIdx,
		"type":      string(sc.Type),
		"duration":  sc.Duration,
	}
	if sc.Text != "" {
		data["text"] = sc.Text
	}
	if sc.Background != "" {
		data["background"] = sc.Background
	}
	if sc.AudioTrack != "" {
		data["audio_track"] = sc.AudioTrack
	}
	evs := []events.Event{{Type: events.TypeSceneStarted, Key: string(s.activeID), Data: data}}
	if sc.Decision != nil {
		s.awaiting = sc.Decision
		evs = append(evs, events.Event{Type: events.TypeDecisionRequested, Key: sc.Decision.ID, Data: map[string]any{
			"cinematic": string(s.activeID),
			"decision":  sc.Decision.ID,
			"prompt":    sc.Decision.Prompt,
		}})
	}
	return evs
}

// onTick consumes simulated time, advancing through as many scene
// boundaries as the delta covers. The timeline holds while paused or
// suspended at a decision point.
func (s *Sequencer) onTick(ev events.Event) {
	dt, _ := ev.Data["delta"].(float64)
	if dt <= 0 {
		return
	}

	s.mu.Lock()
	var evs []events.Event
	var finished ID
	for dt > 0 && s.playing && !s.paused && s.awaiting == nil {
		if s.resumeDelay > 0 {
			if dt < s.resumeDelay {
				s.resumeDelay -= dt
				dt = 0
				break
			}
			dt -= s.resumeDelay
			s.resumeDelay = 0
			if done := s.advanceLocked(&evs); done != "" {
				finished = done
				break
			}
			continue
		}
		need := s.def.Scenes[s.sceneIdx].Duration - s.sceneElapsed
		if dt < need {
			s.sceneElapsed += dt
			dt = 0
			break
		}
		dt -= need
		if done := s.advanceLocked(&evs); done != "" {
			finished = done
			break
		}
	}
	s.mu.Unlock()

	s.publish(evs)
	if finished != "" {
		s.engine.TriggerEvent("cinematic_"+string(finished), nil)
	}
}

// advanceLocked moves to the next scene. Returns the cinematic id when the
// script is exhausted, after resolving the playback and restoring idle
// state.
func (s *Sequencer) advanceLocked(evs *[]events.Event) ID {
	s.sceneIdx++
	if s.sceneIdx < len(s.def.Scenes) {
		*evs = append(*evs, s.enterSceneLocked()...)
		return ""
	}

	id := s.activeID
	*evs = append(*evs, events.Event{Type: events.TypeCinematicCompleted, Key: string(id), Data: map[string]any{
		"cinematic": string(id),
	}})
	s.playback.done <- Result{CinematicID: id, Completed: true}
	s.resetLocked()
	return id
}

func (s *Sequencer) resetLocked() {
	s.def = Cinematic{}
	s.activeID = ""
	s.sceneIdx = 0
	s.playing = false
	s.paused = false
	s.awaiting = nil
	s.sceneElapsed = 0
	s.resumeDelay = 0
	s.playback = nil
}

// SubmitDecision resolves the pending decision point. The choice is
// recorded through the story engine (decision history, derived flag, ending
// path) and any declared flags are applied; the timeline then resumes after
// the display delay.
func (s *Sequencer) SubmitDecision(choiceID string) bool {
	s.mu.Lock()
	if s.awaiting == nil {
		s.mu.Unlock()
		s.log.Warn("no pending decision", "choice", choiceID)
		return false
	}
	choice, ok := s.awaiting.choice(choiceID)
	if !ok {
		decisionID := s.awaiting.ID
		s.mu.Unlock()
		s.log.Warn("unknown choice", "decision", decisionID, "choice", choiceID)
		return false
	}
	decision := s.awaiting
	s.awaiting = nil
	s.resumeDelay = s.delay
	s.mu.Unlock()

	s.log.Info("decision submitted", "decision", decision.ID, "choice", choiceID)
	s.engine.RecordDecision(decision.ID, choiceID, story.DecisionContext{Type: choice.Type})
	for flag, value := range choice.SetFlags {
		s.engine.SetFlag(flag, value)
	}
	return true
}

// Skip abandons the cinematic, honored only when the catalog entry is
// flagged skippable. Cleanup matches natural completion: the playback
// resolves (with Skipped set) and the engine receives the synthetic
// cinematic_<id> event.
func (s *Sequencer) Skip() bool {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		s.log.Warn("no cinematic to skip")
		return false
	}
	if !s.def.Skippable {
		id := s.activeID
		s.mu.Unlock()
		s.log.Warn("cinematic is not skippable", "cinematic_id", id)
		return false
	}
	id := s.activeID
	s.playback.done <- Result{CinematicID: id, Skipped: true}
	s.resetLocked()
	s.mu.Unlock()

	s.log.Info("cinematic skipped", "cinematic_id", id)
	s.publish([]events.Event{{Type: events.TypeCinematicSkipped, Key: string(id), Data: map[string]any{
		"cinematic": string(id),
	}}})
	s.engine.TriggerEvent("cinematic_"+string(id), nil)
	return true
}

// TogglePause pauses or resumes the scene timeline without altering the
// scene index. Returns the new paused state.
func (s *Sequencer) TogglePause() bool {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		s.log.Warn("no cinematic to pause")
		return false
	}
	s.paused = !s.paused
	paused := s.paused
	id := s.activeID
	s.mu.Unlock()

	t := events.TypeCinematicResumed
	if paused {
		t = events.TypeCinematicPaused
	}
	s.publish([]events.Event{{Type: t, Key: string(id)}})
	return paused
}

func (s *Sequencer) publish(evs []events.Event) {
	for _, ev := range evs {
		s.bus.Publish(ev)
	}
}
