package mission

import (
	"log/slog"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/inferno-games/quantum-salvation/pkg/events"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// Tracker manages mission lifecycle on top of story engine events. Exactly
// one mission may be active at a time; starting a second while one is active
// is rejected rather than silently replacing it, so no timer is ever
// orphaned. All state changes the tracker needs in the story aggregate go
// through engine methods, never direct mutation.
type Tracker struct {
	mu      sync.Mutex
	engine  *story.Engine
	bus     *events.Bus
	catalog map[ID]Mission
	order   []ID
	log     *slog.Logger

	active          *activeMission
	completed       map[ID]bool
	completedOrder  []ID
	progress        map[ID]int
	objectiveStatus map[ID]map[ObjectiveID]bool
	notes           map[ID][]string
	clues           map[ID][]ClueID
	unsubs          []func()
}

type activeMission struct {
	id    ID
	def   Mission
	timer *countdown
}

type countdown struct {
	remaining float64
	lastWhole int
}

// ActiveMission is a read-only snapshot of the currently active mission.
type ActiveMission struct {
	ID            ID                   `json:"id"`
	Name          string               `json:"name"`
	Progress      int                  `json:"progress"`
	Objectives    map[ObjectiveID]bool `json:"objectives"`
	TimeRemaining float64              `json:"time_remaining"` // seconds; negative when the mission is untimed
	Notes         []string             `json:"notes,omitempty"`
	Clues         []ClueID             `json:"clues,omitempty"`
}

// NewTracker builds a tracker over a mission catalog and subscribes it to
// the engine's event bus. Call Close to detach.
func NewTracker(engine *story.Engine, catalog map[ID]Mission, log *slog.Logger) *Tracker {
	order := make([]ID, 0, len(catalog))
	for id := range catalog {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	t := &Tracker{
		engine:          engine,
		bus:             engine.Bus(),
		catalog:         catalog,
		order:           order,
		log:             log,
		completed:       make(map[ID]bool),
		progress:        make(map[ID]int),
		objectiveStatus: make(map[ID]map[ObjectiveID]bool),
		notes:           make(map[ID][]string),
		clues:           make(map[ID][]ClueID),
	}

	t.unsubs = append(t.unsubs,
		t.bus.Subscribe(events.TypeFlagChanged, t.onFlagChanged),
		t.bus.Subscribe(events.TypeLocationChanged, t.onLocationChanged),
		t.bus.Subscribe(events.TypeItemCollected, t.onItemCollected),
		t.bus.Subscribe(events.TypeLoreDiscovered, t.onLoreDiscovered),
		t.bus.Subscribe(events.TypeTick, t.onTick),
	)
	return t
}

// Close detaches the tracker from the event bus.
func (t *Tracker) Close() {
	for _, u := range t.unsubs {
		u()
	}
	t.unsubs = nil
}

// StartMission activates a catalog mission. Returns false when the id is
// unknown, the mission already completed, it is already active, or another
// mission is active.
func (t *Tracker) StartMission(id ID) bool {
	t.mu.Lock()
	def, ok := t.catalog[id]
	if !ok {
		t.mu.Unlock()
		t.log.Warn("unknown mission", "mission_id", id)
		return false
	}
	if t.completed[id] {
		t.mu.Unlock()
		t.log.Warn("mission already completed", "mission_id", id)
		return false
	}
	if t.active != nil {
		activeID := t.active.id
		t.mu.Unlock()
		if activeID == id {
			t.log.Warn("mission already active", "mission_id", id)
		} else {
			t.log.Warn("another mission is active", "mission_id", id, "active_mission", activeID)
		}
		return false
	}

	status := make(map[ObjectiveID]bool, len(def.Objectives))
	for _, o := range def.Objectives {
		status[o.ID] = false
	}
	am := &activeMission{id: id, def: def}
	if def.TimeLimit > 0 {
		am.timer = &countdown{
			remaining: float64(def.TimeLimit) * 60,
			lastWhole: def.TimeLimit * 60,
		}
	}
	t.active = am
	t.progress[id] = 0
	t.objectiveStatus[id] = status
	t.notes[id] = nil
	t.clues[id] = nil
	quest := t.questRecordLocked(id, story.QuestActive)
	t.mu.Unlock()

	t.engine.UpsertQuest(story.QuestID(id), quest)
	t.log.Info("mission started", "mission_id", id, "time_limit_min", def.TimeLimit)
	t.bus.Publish(events.Event{Type: events.TypeMissionStarted, Key: string(id), Data: map[string]any{
		"mission": string(id), "name": def.Name,
	}})
	return true
}

// CompleteObjective marks an objective of the active mission complete.
// Re-completing an already-completed objective returns false and changes
// nothing, so progress is never double-counted.
func (t *Tracker) CompleteObjective(missionID ID, objectiveID ObjectiveID) bool {
	t.mu.Lock()
	if t.active == nil || t.active.id != missionID {
		t.mu.Unlock()
		t.log.Warn("objective completion against inactive mission", "mission_id", missionID, "objective_id", objectiveID)
		return false
	}
	def := t.active.def
	if _, ok := def.Objective(objectiveID); !ok {
		t.mu.Unlock()
		t.log.Warn("unknown objective", "mission_id", missionID, "objective_id", objectiveID)
		return false
	}
	status := t.objectiveStatus[missionID]
	if status[objectiveID] {
		t.mu.Unlock()
		t.log.Warn("objective already completed", "mission_id", missionID, "objective_id", objectiveID)
		return false
	}

	status[objectiveID] = true
	done := 0
	for _, v := range status {
		if v {
			done++
		}
	}
	pct := int(math.Round(100 * float64(done) / float64(len(def.Objectives))))
	t.progress[missionID] = pct
	allDone := done == len(def.Objectives)
	quest := t.questRecordLocked(missionID, story.QuestActive)
	t.mu.Unlock()

	t.engine.UpsertQuest(story.QuestID(missionID), quest)
	t.log.Info("objective completed", "mission_id", missionID, "objective_id", objectiveID, "progress", pct)
	t.bus.Publish(events.Event{Type: events.TypeObjectiveCompleted, Key: string(objectiveID), Data: map[string]any{
		"mission": string(missionID), "objective": string(objectiveID), "progress": pct,
	}})

	if allDone {
		if def.AutoComplete {
			t.finish(true, missionID)
		} else {
			// Notify without forcing completion; an explicit
			// CompleteMission call is still required.
			t.bus.Publish(events.Event{Type: events.TypeAllObjectivesCompleted, Key: string(missionID), Data: map[string]any{
				"mission": string(missionID),
			}})
		}
	}
	return true
}

// CompleteMission finishes the active mission. On success the mission joins
// the completed list and its declared rewards are applied as flags through
// the story engine.
func (t *Tracker) CompleteMission(success bool) bool {
	return t.finish(success, "")
}

// FailMission fails the active mission.
func (t *Tracker) FailMission() bool {
	return t.finish(false, "")
}

// finish clears the active slot. expect, when non-empty, guards timer-driven
// failure against a mission that already completed through other means.
func (t *Tracker) finish(success bool, expect ID) bool {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		t.log.Warn("no active mission to finish")
		return false
	}
	if expect != "" && t.active.id != expect {
		t.mu.Unlock()
		t.log.Debug("stale mission timer ignored", "mission_id", expect)
		return false
	}
	id := t.active.id
	def := t.active.def
	t.active = nil // clears the countdown with it

	questStatus := story.QuestFailed
	if success {
		questStatus = story.QuestCompleted
		t.completed[id] = true
		t.completedOrder = append(t.completedOrder, id)
	}
	quest := t.questRecordLocked(id, questStatus)
	t.mu.Unlock()

	t.engine.UpsertQuest(story.QuestID(id), quest)

	if success {
		rewardKeys := make([]string, 0, len(def.Rewards))
		for k := range def.Rewards {
			rewardKeys = append(rewardKeys, k)
		}
		sort.Strings(rewardKeys)
		for _, k := range rewardKeys {
			t.engine.SetFlag(k, def.Rewards[k])
		}
		if def.ProgressValue > 0 {
			t.engine.AdvanceMainProgress(def.ProgressValue)
		}
		t.log.Info("mission completed", "mission_id", id)
		t.bus.Publish(events.Event{Type: events.TypeMissionCompleted, Key: string(id), Data: map[string]any{
			"mission": string(id),
		}})
	} else {
		t.log.Info("mission failed", "mission_id", id)
		t.bus.Publish(events.Event{Type: events.TypeMissionFailed, Key: string(id), Data: map[string]any{
			"mission": string(id),
		}})
	}
	return true
}

// DiscoverClue records a clue for the active mission. Idempotent per
// mission; cascades into objective completion when an objective declares the
// clue as its completion predicate.
func (t *Tracker) DiscoverClue(clueID ClueID) bool {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		t.log.Warn("clue discovered with no active mission", "clue_id", clueID)
		return false
	}
	id := t.active.id
	def := t.active.def
	if !def.HasClue(clueID) {
		t.mu.Unlock()
		t.log.Warn("clue not declared by active mission", "mission_id", id, "clue_id", clueID)
		return false
	}
	for _, known := range t.clues[id] {
		if known == clueID {
			t.mu.Unlock()
			t.log.Warn("clue already discovered", "mission_id", id, "clue_id", clueID)
			return false
		}
	}
	t.clues[id] = append(t.clues[id], clueID)

	var cascade []ObjectiveID
	for _, o := range def.Objectives {
		if o.CompleteOn != nil && o.CompleteOn.Kind == TriggerClue && o.CompleteOn.Clue == clueID && !t.objectiveStatus[id][o.ID] {
			cascade = append(cascade, o.ID)
		}
	}
	t.mu.Unlock()

	t.log.Info("clue discovered", "mission_id", id, "clue_id", clueID)
	t.bus.Publish(events.Event{Type: events.TypeClueDiscovered, Key: string(clueID), Data: map[string]any{
		"mission": string(id), "clue": string(clueID),
	}})
	for _, obj := range cascade {
		t.CompleteObjective(id, obj)
	}
	return true
}

// AddNote appends a note to the active mission's log.
func (t *Tracker) AddNote(note string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		t.log.Warn("note with no active mission")
		return false
	}
	t.notes[t.active.id] = append(t.notes[t.active.id], note)
	return true
}

// Active returns a snapshot of the active mission, or nil.
func (t *Tracker) Active() *ActiveMission {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	id := t.active.id
	objectives := make(map[ObjectiveID]bool, len(t.objectiveStatus[id]))
	for k, v := range t.objectiveStatus[id] {
		objectives[k] = v
	}
	remaining := -1.0
	if t.active.timer != nil {
		remaining = t.active.timer.remaining
	}
	return &ActiveMission{
		ID:            id,
		Name:          t.active.def.Name,
		Progress:      t.progress[id],
		Objectives:    objectives,
		TimeRemaining: remaining,
		Notes:         append([]string(nil), t.notes[id]...),
		Clues:         append([]ClueID(nil), t.clues[id]...),
	}
}

// IsMissionCompleted reports whether a mission finished successfully.
func (t *Tracker) IsMissionCompleted(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed[id]
}

// CompletedMissions returns successfully completed mission ids in
// completion order.
func (t *Tracker) CompletedMissions() []ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ID(nil), t.completedOrder...)
}

// Progress returns the recorded progress percentage for a mission.
func (t *Tracker) Progress(id ID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress[id]
}

func (t *Tracker) questRecordLocked(id ID, status story.QuestStatus) story.Quest {
	def := t.catalog[id]
	objectives := make([]story.QuestObjective, 0, len(def.Objectives))
	for _, o := range def.Objectives {
		objectives = append(objectives, story.QuestObjective{
			ID:        string(o.ID),
			Completed: t.objectiveStatus[id][o.ID],
		})
	}
	return story.Quest{Status: status, Progress: t.progress[id], Objectives: objectives}
}

// onTick advances the active mission's countdown by simulated time. The
// timer update event fires once per elapsed whole second; expiry fails the
// mission through the same guarded path as an explicit failure.
func (t *Tracker) onTick(ev events.Event) {
	delta, _ := ev.Data["delta"].(float64)
	if delta <= 0 {
		return
	}

	t.mu.Lock()
	if t.active == nil || t.active.timer == nil {
		t.mu.Unlock()
		return
	}
	id := t.active.id
	timer := t.active.timer
	timer.remaining -= delta
	if timer.remaining < 0 {
		timer.remaining = 0
	}
	whole := int(timer.remaining)
	changed := whole != timer.lastWhole
	timer.lastWhole = whole
	expired := timer.remaining <= 0
	remaining := timer.remaining
	t.mu.Unlock()

	if changed {
		t.bus.Publish(events.Event{Type: events.TypeMissionTimer, Key: string(id), Data: map[string]any{
			"mission": string(id), "remaining": remaining,
		}})
	}
	if expired {
		t.finish(false, id)
	}
}

// onFlagChanged auto-starts missions whose trigger flags are all satisfied
// and auto-completes matching flag objectives, synchronously within the
// step that set the flag.
func (t *Tracker) onFlagChanged(ev events.Event) {
	flag := ev.Key
	value := ev.Data["value"]

	t.mu.Lock()
	var candidates []ID
	if t.active == nil {
		for _, id := range t.order {
			def := t.catalog[id]
			if t.completed[id] || len(def.TriggerFlags) == 0 {
				continue
			}
			if _, watches := def.TriggerFlags[flag]; watches {
				candidates = append(candidates, id)
			}
		}
	}
	t.mu.Unlock()

	for _, id := range candidates {
		if t.triggerFlagsSatisfied(id) && t.StartMission(id) {
			break
		}
	}

	t.completeMatching(func(tr *Trigger) bool {
		return tr.Kind == TriggerFlag && tr.Flag == flag && reflect.DeepEqual(tr.Value, value)
	})
}

func (t *Tracker) triggerFlagsSatisfied(id ID) bool {
	def := t.catalog[id]
	for k, want := range def.TriggerFlags {
		if got := t.engine.GetFlag(k, nil); !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (t *Tracker) onLocationChanged(ev events.Event) {
	t.completeMatching(func(tr *Trigger) bool {
		return tr.Kind == TriggerLocation && tr.Location == ev.Key
	})
}

func (t *Tracker) onItemCollected(ev events.Event) {
	t.completeMatching(func(tr *Trigger) bool {
		return tr.Kind == TriggerItem && tr.Item == ev.Key
	})
}

func (t *Tracker) onLoreDiscovered(ev events.Event) {
	t.completeMatching(func(tr *Trigger) bool {
		return tr.Kind == TriggerResearch && tr.Lore == ev.Key
	})
}

// completeMatching completes every not-yet-complete objective of the active
// mission whose trigger satisfies the predicate.
func (t *Tracker) completeMatching(match func(*Trigger) bool) {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		return
	}
	id := t.active.id
	var hits []ObjectiveID
	for _, o := range t.active.def.Objectives {
		if o.CompleteOn != nil && !t.objectiveStatus[id][o.ID] && match(o.CompleteOn) {
			hits = append(hits, o.ID)
		}
	}
	t.mu.Unlock()

	for _, obj := range hits {
		t.CompleteObjective(id, obj)
	}
}
