// Package events provides the in-process publish/subscribe channel shared by
// the narrative components. Dispatch is synchronous: Publish returns only
// after every matching handler has run, so listeners observe mutations in the
// same order they were committed.
package events

import "sync"

// Type identifies a category of narrative event.
type Type string

const (
	// Engine events
	TypeTick                Type = "engine.tick"
	TypeFlagChanged         Type = "flag.changed"
	TypeRelationshipChanged Type = "relationship.changed"
	TypeDecisionMade        Type = "decision.made"
	TypeResearchAdvanced    Type = "research.advanced"
	TypeLoreDiscovered      Type = "lore.discovered"
	TypeEvidenceCollected   Type = "evidence.collected"
	TypeFacilityUnlocked    Type = "facility.unlocked"
	TypeLocationChanged     Type = "location.changed"
	TypeItemCollected       Type = "item.collected"
	TypeChapterCompleted    Type = "chapter.completed"
	TypeStoryEvent          Type = "story.event"

	// Mission events
	TypeMissionStarted         Type = "mission.started"
	TypeMissionCompleted       Type = "mission.completed"
	TypeMissionFailed          Type = "mission.failed"
	TypeMissionTimer           Type = "mission.timer"
	TypeObjectiveCompleted     Type = "objective.completed"
	TypeAllObjectivesCompleted Type = "mission.objectives_completed"
	TypeClueDiscovered         Type = "clue.discovered"

	// Cinematic events
	TypeCinematicStarted   Type = "cinematic.started"
	TypeSceneStarted       Type = "cinematic.scene_started"
	TypeCinematicCompleted Type = "cinematic.completed"
	TypeCinematicSkipped   Type = "cinematic.skipped"
	TypeCinematicPaused    Type = "cinematic.paused"
	TypeCinematicResumed   Type = "cinematic.resumed"
	TypeDecisionRequested  Type = "cinematic.decision_requested"
)

// Keyed builds the per-key variant of an event type, e.g.
// "story.event:cure_formula_discovered". The engine publishes both the
// general and the keyed form for triggered story events.
func Keyed(t Type, key string) Type {
	return t + Type(":"+key)
}

// Event is the payload delivered to subscribers.
type Event struct {
	Type Type           `json:"type"`
	Key  string         `json:"key,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus is an in-process event channel. A Bus is owned by one narrative
// session; the zero value is not usable, construct with NewBus.
type Bus struct {
	mu   sync.Mutex
	seq  int
	subs map[Type][]subscription
	all  []subscription
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[Type][]subscription),
	}
}

// Subscribe registers a handler for one event type and returns a function
// that removes the registration. Handlers for the same type run in
// subscription order.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := b.seq
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[t]
		for i, sub := range list {
			if sub.id == id {
				b.subs[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for every event regardless of type.
// All-subscribers run after type-specific subscribers.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := b.seq
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.all {
			if sub.id == id {
				b.all = append(b.all[:i:i], b.all[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event synchronously to all matching handlers.
// Handlers may publish further events or unsubscribe while being called;
// the dispatch list is snapshotted before any handler runs.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	list := b.subs[ev.Type]
	snapshot := make([]subscription, 0, len(list)+len(b.all))
	snapshot = append(snapshot, list...)
	snapshot = append(snapshot, b.all...)
	b.mu.Unlock()

	for _, sub := range snapshot {
		sub.handler(ev)
	}
}
