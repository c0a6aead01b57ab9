package story

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/inferno-games/quantum-salvation/pkg/events"
)

// DefaultTotalDuration is the narrative clock at session start.
const DefaultTotalDuration = 72 * time.Hour

// DefaultSeverityBaseRate is severity points gained per simulated second at
// zero research progress and a full clock.
const DefaultSeverityBaseRate = 0.00025

var severityThresholds = []float64{25, 50, 75, 90, 95}

var timeThresholds = []struct {
	seconds float64
	key     string
}{
	{24 * 3600, "time_remaining_24h"},
	{12 * 3600, "time_remaining_12h"},
	{6 * 3600, "time_remaining_6h"},
	{3 * 3600, "time_remaining_3h"},
	{3600, "time_remaining_1h"},
	{1800, "time_remaining_30m"},
}

var researchMilestones = []float64{10, 25, 50, 75, 90, 100}

// Config tunes a new engine. Zero values fall back to campaign defaults.
type Config struct {
	TotalDuration    time.Duration
	InitialSeverity  float64
	OpeningChapter   ChapterID
	SeverityBaseRate float64
	Endings          []Ending
	Now              func() time.Time
}

func (c Config) withDefaults() Config {
	if c.TotalDuration <= 0 {
		c.TotalDuration = DefaultTotalDuration
	}
	if c.SeverityBaseRate <= 0 {
		c.SeverityBaseRate = DefaultSeverityBaseRate
	}
	if c.OpeningChapter == "" {
		c.OpeningChapter = "descent"
	}
	if c.Endings == nil {
		c.Endings = DefaultEndings()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Engine is the narrative clock and trigger evaluator. It is the single
// writer of the story state: the mission tracker and cinematic sequencer
// route every mutation through its methods. Events are published after the
// mutation is committed, synchronously on the caller's goroutine, so a
// listener can react within the same logical step.
type Engine struct {
	mu        sync.Mutex
	store     *Store
	bus       *events.Bus
	log       *slog.Logger
	cfg       Config
	triggered map[string]bool
	effects   map[string]func(*Engine)
	whens     []*whenListener
	whenSeq   int
}

// NewEngine constructs an engine with a fresh state.
func NewEngine(cfg Config, bus *events.Bus, log *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	st := NewState(cfg.TotalDuration, cfg.InitialSeverity, cfg.OpeningChapter)
	return &Engine{
		store:     NewStore(st).WithNow(cfg.Now),
		bus:       bus,
		log:       log,
		cfg:       cfg,
		triggered: make(map[string]bool),
		effects:   defaultEffects(),
	}
}

// Bus returns the session event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }

// State returns a deep copy of the current story state.
func (e *Engine) State() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.State().Clone()
}

// pending accumulates work to perform after the lock is released: bus
// publications, triggered-event keys, and when-listener callbacks. Running
// them outside the lock lets listeners call back into the engine without
// deadlocking, while keeping emission order equal to mutation order.
type pending struct {
	evs       []events.Event
	triggers  []triggerReq
	callbacks []func()
}

type triggerReq struct {
	key  string
	data map[string]any
}

func (p *pending) event(t events.Type, key string, data map[string]any) {
	p.evs = append(p.evs, events.Event{Type: t, Key: key, Data: data})
}

func (p *pending) trigger(key string, data map[string]any) {
	p.triggers = append(p.triggers, triggerReq{key: key, data: data})
}

func (e *Engine) flush(p *pending) {
	for _, ev := range p.evs {
		e.bus.Publish(ev)
	}
	for _, tr := range p.triggers {
		e.TriggerEvent(tr.key, tr.data)
	}
	for _, fn := range p.callbacks {
		fn()
	}
}

// drainLocked maps store change-log entries onto bus events. Ops that carry
// their own richer event (decisions, chapters) or none at all (clock and
// counter adjustments, which the tick event summarizes) are skipped here.
func (e *Engine) drainLocked(p *pending) {
	for _, ch := range e.store.DrainChanges() {
		switch ch.Op {
		case OpFlag:
			p.event(events.TypeFlagChanged, ch.Key, map[string]any{
				"flag": ch.Key, "prev": ch.Prev, "value": ch.New,
			})
		case OpRelationship:
			p.event(events.TypeRelationshipChanged, ch.Key, map[string]any{
				"character": ch.Key, "prev": ch.Prev, "value": ch.New,
			})
		case OpResearch:
			p.event(events.TypeResearchAdvanced, "", map[string]any{
				"prev": ch.Prev, "value": ch.New,
			})
		case OpLore:
			p.event(events.TypeLoreDiscovered, ch.Key, map[string]any{
				"lore_id": ch.Key, "title": ch.New,
			})
		case OpEvidence:
			p.event(events.TypeEvidenceCollected, ch.Key, map[string]any{
				"evidence_id": ch.Key, "name": ch.New,
			})
		case OpFacility:
			p.event(events.TypeFacilityUnlocked, ch.Key, map[string]any{
				"facility_id": ch.Key,
			})
		}
	}
}

// Update advances the narrative clock by deltaSeconds of simulated time.
// It decrements the countdown, grows pandemic severity, fires threshold
// events at most once each, evaluates registered condition listeners, and
// publishes a tick event that downstream timers (missions, cinematics)
// advance on.
func (e *Engine) Update(deltaSeconds float64) {
	if deltaSeconds <= 0 {
		return
	}

	e.mu.Lock()
	p := &pending{}
	w := &e.store.State().World

	prevTime := w.TimeRemaining
	newTime, _ := e.store.DecrementTime(deltaSeconds)

	// Severity accelerates as the deadline nears and slows as research
	// progresses.
	researchFactor := 1 - 0.9*(w.ResearchProgress/100)
	timeRatio := 1.0
	if w.TotalDuration > 0 {
		timeRatio = 1 - newTime/w.TotalDuration
	}
	increase := e.cfg.SeverityBaseRate * researchFactor * (1 + timeRatio) * deltaSeconds
	newSev, prevSev := e.store.AdjustSeverity(increase)

	for _, th := range severityThresholds {
		if prevSev < th && newSev >= th {
			p.trigger(fmt.Sprintf("pandemic_severity_%d", int(th)), map[string]any{"severity": newSev})
		}
	}
	for _, th := range timeThresholds {
		if prevTime > th.seconds && newTime <= th.seconds {
			p.trigger(th.key, map[string]any{"time_remaining": newTime})
		}
	}
	if prevTime > 0 && newTime <= 0 {
		p.trigger("time_expired", nil)
	}

	e.evaluateWhensLocked(p)
	e.store.DrainChanges() // clock and severity writes are summarized by the tick event

	p.evs = append([]events.Event{{
		Type: events.TypeTick,
		Data: map[string]any{
			"delta":          deltaSeconds,
			"time_remaining": newTime,
			"severity":       newSev,
			"research":       w.ResearchProgress,
		},
	}}, p.evs...)
	e.mu.Unlock()

	e.flush(p)
}

// SetFlag writes a narrative flag and publishes flag.changed.
func (e *Engine) SetFlag(flag string, value any) {
	e.mu.Lock()
	p := &pending{}
	e.store.SetFlag(flag, value)
	e.drainLocked(p)
	e.mu.Unlock()
	e.flush(p)
}

// GetFlag reads a flag, returning def when unset.
func (e *Engine) GetFlag(flag string, def any) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Flag(flag, def)
}

// ModifyRelationship applies a clamped delta to a character relationship
// and returns the committed value.
func (e *Engine) ModifyRelationship(ch CharacterID, delta float64) float64 {
	e.mu.Lock()
	p := &pending{}
	cur, _ := e.store.ModifyRelationship(ch, delta)
	e.drainLocked(p)
	e.mu.Unlock()
	e.flush(p)
	return cur
}

// RecordDecision appends to the decision history, sets the derived
// decision_<key> flag, recomputes the ending path and publishes
// decision.made.
func (e *Engine) RecordDecision(decisionKey, choice string, ctx DecisionContext) {
	e.mu.Lock()
	p := &pending{}
	e.store.RecordDecision(Decision{ID: decisionKey, Choice: choice, Context: ctx})
	e.store.SetFlag("decision_"+decisionKey, choice)
	path := endingPath(e.store.State())
	e.store.SetEndingPath(path)
	e.drainLocked(p)
	p.event(events.TypeDecisionMade, decisionKey, map[string]any{
		"decision":    decisionKey,
		"choice":      choice,
		"type":        ctx.Type,
		"ending_path": string(path),
	})
	e.mu.Unlock()
	e.flush(p)
}

// AdvanceResearch applies a clamped delta to research progress. Setbacks
// pass a negative amount. Milestone crossings fire once each on the way up;
// the 50% milestone pays off with a flat severity reduction and the 100%
// milestone triggers cure_formula_discovered.
func (e *Engine) AdvanceResearch(amount float64) float64 {
	e.mu.Lock()
	p := &pending{}
	cur := e.advanceResearchLocked(amount, p)
	e.mu.Unlock()
	e.flush(p)
	return cur
}

func (e *Engine) advanceResearchLocked(amount float64, p *pending) float64 {
	cur, prev := e.store.AdvanceResearch(amount)
	for _, m := range researchMilestones {
		key := fmt.Sprintf("research_milestone_%d", int(m))
		if prev < m && cur >= m && !e.triggered[key] {
			if m == 50 {
				e.store.AdjustSeverity(-5)
			}
			p.trigger(key, map[string]any{"research": cur})
			if m == 100 {
				p.trigger("cure_formula_discovered", nil)
			}
		}
	}
	e.drainLocked(p)
	return cur
}

// AdjustSeverity applies a clamped delta to pandemic severity. Used by the
// triggered-event effect table.
func (e *Engine) AdjustSeverity(delta float64) float64 {
	e.mu.Lock()
	cur, _ := e.store.AdjustSeverity(delta)
	e.store.DrainChanges()
	e.mu.Unlock()
	return cur
}

// AdjustStabilization applies a clamped delta to quantum stabilization.
func (e *Engine) AdjustStabilization(delta float64) float64 {
	e.mu.Lock()
	cur, _ := e.store.AdjustStabilization(delta)
	e.store.DrainChanges()
	e.mu.Unlock()
	return cur
}

// AddTime extends the narrative clock.
func (e *Engine) AddTime(seconds float64) float64 {
	e.mu.Lock()
	cur, _ := e.store.AddTime(seconds)
	e.store.DrainChanges()
	e.mu.Unlock()
	return cur
}

// AdvanceMainProgress applies a clamped delta to overall campaign progress.
func (e *Engine) AdvanceMainProgress(delta float64) float64 {
	e.mu.Lock()
	cur, _ := e.store.AdvanceMainProgress(delta)
	e.store.DrainChanges()
	e.mu.Unlock()
	return cur
}

// UnlockFacility marks a facility unlocked. Returns false if it already was.
func (e *Engine) UnlockFacility(id FacilityID) bool {
	e.mu.Lock()
	p := &pending{}
	ok := e.store.UnlockFacility(id)
	e.drainLocked(p)
	e.mu.Unlock()
	e.flush(p)
	return ok
}

// DiscoverLore records a lore entry and applies its research value. A
// repeat discovery of the same key is a no-op returning false; the research
// bonus is never double-applied.
func (e *Engine) DiscoverLore(id LoreID, entry LoreEntry) bool {
	e.mu.Lock()
	if !e.store.DiscoverLore(id, entry) {
		e.mu.Unlock()
		e.log.Warn("lore already discovered", "lore_id", id)
		return false
	}
	p := &pending{}
	if entry.ResearchValue > 0 {
		e.advanceResearchLocked(entry.ResearchValue, p)
	}
	e.drainLocked(p)
	e.mu.Unlock()
	e.flush(p)
	return true
}

// CollectEvidence records an evidence entry. Write-once per key.
func (e *Engine) CollectEvidence(id EvidenceID, entry EvidenceEntry) bool {
	e.mu.Lock()
	if !e.store.CollectEvidence(id, entry) {
		e.mu.Unlock()
		e.log.Warn("evidence already collected", "evidence_id", id)
		return false
	}
	p := &pending{}
	e.drainLocked(p)
	e.mu.Unlock()
	e.flush(p)
	return true
}

// EnterLocation notifies the engine that the player entered a location.
// Sets the visited_<id> flag and publishes location.changed.
func (e *Engine) EnterLocation(id string) {
	e.mu.Lock()
	p := &pending{}
	e.store.SetFlag("visited_"+id, true)
	e.drainLocked(p)
	p.event(events.TypeLocationChanged, id, map[string]any{"location": id})
	e.mu.Unlock()
	e.flush(p)
}

// CollectItem notifies the engine that the player picked up an item.
// Sets the item_<id> flag and publishes item.collected.
func (e *Engine) CollectItem(id string) {
	e.mu.Lock()
	p := &pending{}
	e.store.SetFlag("item_"+id, true)
	e.drainLocked(p)
	p.event(events.TypeItemCollected, id, map[string]any{"item": id})
	e.mu.Unlock()
	e.flush(p)
}

// UpsertQuest writes the story-side record of a mission's progress. Called
// by the mission tracker so saved sessions capture mission state.
func (e *Engine) UpsertQuest(id QuestID, q Quest) {
	e.mu.Lock()
	e.store.UpsertQuest(id, q)
	e.store.DrainChanges()
	e.mu.Unlock()
}

// SetChapter moves the narrative to a chapter.
func (e *Engine) SetChapter(ch ChapterID) {
	e.mu.Lock()
	e.store.SetChapter(ch)
	e.store.DrainChanges()
	e.mu.Unlock()
}

// CompleteChapter marks a chapter completed, advances main progress and
// publishes chapter.completed. Returns false if it was already completed.
func (e *Engine) CompleteChapter(ch ChapterID, progressDelta float64) bool {
	e.mu.Lock()
	if !e.store.CompleteChapter(ch) {
		e.mu.Unlock()
		e.log.Warn("chapter already completed", "chapter", ch)
		return false
	}
	p := &pending{}
	cur, _ := e.store.AdvanceMainProgress(progressDelta)
	e.store.DrainChanges()
	p.event(events.TypeChapterCompleted, string(ch), map[string]any{
		"chapter": string(ch), "main_progress": cur,
	})
	e.mu.Unlock()
	e.flush(p)
	return true
}

// TriggerEvent marks a narrative event key as triggered and publishes both
// the general story.event and the keyed story.event:<key>. A key fires at
// most once per session; repeat calls are no-ops returning false. Keys with
// an entry in the effect table additionally run their hard-coded effect.
func (e *Engine) TriggerEvent(key string, data map[string]any) bool {
	e.mu.Lock()
	if e.triggered[key] {
		e.mu.Unlock()
		e.log.Debug("event already triggered", "key", key)
		return false
	}
	e.triggered[key] = true
	e.mu.Unlock()

	e.log.Info("story event triggered", "key", key)
	ev := events.Event{Type: events.TypeStoryEvent, Key: key, Data: data}
	e.bus.Publish(ev)
	e.bus.Publish(events.Event{Type: events.Keyed(events.TypeStoryEvent, key), Key: key, Data: data})

	if fx, ok := e.effects[key]; ok {
		fx(e)
	}
	return true
}

// Triggered reports whether an event key has fired this session.
func (e *Engine) Triggered(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggered[key]
}

// DetermineEnding returns the first ending in table order whose
// requirements the current state satisfies.
func (e *Engine) DetermineEnding() EndingID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DetermineEnding(e.cfg.Endings, e.store.State())
}

// PossibleEndings returns every currently satisfiable ending, in table
// order.
func (e *Engine) PossibleEndings() []EndingID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PossibleEndings(e.cfg.Endings, e.store.State())
}

// EndingPath returns the running ending-path label.
func (e *Engine) EndingPath() EndingID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.State().EndingPath
}

// TriggeredKeys returns the sorted set of fired event keys.
func (e *Engine) TriggeredKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.triggered))
	for k := range e.triggered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
