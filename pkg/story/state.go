// Package story implements the narrative progression core of Quantum
// Salvation: the canonical story state, its mutation primitives, and the
// engine that ticks the simulation clock, evaluates triggers and computes
// the ending.
package story

import (
	"time"
)

type (
	ChapterID   string
	CharacterID string
	LoreID      string
	EvidenceID  string
	FacilityID  string
	EndingID    string
	QuestID     string
)

// LoreEntry is a piece of discovered lore. Discovery is write-once per key;
// ResearchValue is the research bonus granted on first discovery only.
type LoreEntry struct {
	Title         string    `json:"title"`
	Text          string    `json:"text,omitempty"`
	ResearchValue float64   `json:"research_value,omitempty"`
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// EvidenceEntry is a piece of collected evidence. Write-once per key.
type EvidenceEntry struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// WorldState holds the global pandemic counters.
type WorldState struct {
	PandemicSeverity     float64             `json:"pandemic_severity"`     // [0,100]
	TimeRemaining        float64             `json:"time_remaining"`        // seconds, floor 0
	TotalDuration        float64             `json:"total_duration"`        // seconds, fixed at session start
	ResearchProgress     float64             `json:"research_progress"`     // [0,100]
	QuantumStabilization float64             `json:"quantum_stabilization"` // [0,100]
	UnlockedFacilities   map[FacilityID]bool `json:"unlocked_facilities,omitempty"`
}

// Decision is one recorded player choice. The decision list is append-only.
type Decision struct {
	ID        string          `json:"id"`
	Choice    string          `json:"choice"`
	Context   DecisionContext `json:"context"`
	Timestamp time.Time       `json:"timestamp"`
	Chapter   ChapterID       `json:"chapter,omitempty"`
}

// DecisionContext tags a decision for the ending-path heuristic.
// Type is one of "altruistic", "pragmatic", "risky", "careful".
type DecisionContext struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
)

// QuestObjective mirrors one mission objective into the story aggregate so
// that a saved session captures mission progress.
type QuestObjective struct {
	ID          string     `json:"id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Quest is the story-side record of a mission's progress.
type Quest struct {
	Status     QuestStatus      `json:"status"`
	Progress   int              `json:"progress"` // [0,100]
	Objectives []QuestObjective `json:"objectives,omitempty"`
}

// State is the canonical mutable narrative state for one session. All writes
// go through the Store mutators; nothing outside this package mutates fields
// directly.
type State struct {
	MainProgress      float64                      `json:"main_progress"` // [0,100]
	CurrentChapter    ChapterID                    `json:"current_chapter,omitempty"`
	CompletedChapters map[ChapterID]bool           `json:"completed_chapters,omitempty"`
	Flags             map[string]any               `json:"flags,omitempty"`
	Relationships     map[CharacterID]float64      `json:"relationships,omitempty"` // each [-100,100]
	DiscoveredLore    map[LoreID]LoreEntry         `json:"discovered_lore,omitempty"`
	CollectedEvidence map[EvidenceID]EvidenceEntry `json:"collected_evidence,omitempty"`
	World             WorldState                   `json:"world_state"`
	Decisions         []Decision                   `json:"decisions,omitempty"`
	ActiveQuests      map[QuestID]Quest            `json:"active_quests,omitempty"`
	EndingPath        EndingID                     `json:"ending_path,omitempty"`
}

// NewState returns a fresh state with the narrative clock set to
// totalDuration and all counters at their opening values.
func NewState(totalDuration time.Duration, initialSeverity float64, opening ChapterID) *State {
	total := totalDuration.Seconds()
	return &State{
		CurrentChapter:    opening,
		CompletedChapters: make(map[ChapterID]bool),
		Flags:             make(map[string]any),
		Relationships:     make(map[CharacterID]float64),
		DiscoveredLore:    make(map[LoreID]LoreEntry),
		CollectedEvidence: make(map[EvidenceID]EvidenceEntry),
		ActiveQuests:      make(map[QuestID]Quest),
		World: WorldState{
			PandemicSeverity:   clamp(initialSeverity, 0, 100),
			TimeRemaining:      total,
			TotalDuration:      total,
			UnlockedFacilities: make(map[FacilityID]bool),
		},
	}
}

// Clone returns a deep copy of the state, safe to hand to readers outside
// the single-writer path.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.CompletedChapters = cloneMap(s.CompletedChapters)
	out.Flags = cloneMap(s.Flags)
	out.Relationships = cloneMap(s.Relationships)
	out.DiscoveredLore = cloneMap(s.DiscoveredLore)
	out.CollectedEvidence = cloneMap(s.CollectedEvidence)
	out.World.UnlockedFacilities = cloneMap(s.World.UnlockedFacilities)
	out.Decisions = append([]Decision(nil), s.Decisions...)
	out.ActiveQuests = make(map[QuestID]Quest, len(s.ActiveQuests))
	for id, q := range s.ActiveQuests {
		qc := q
		qc.Objectives = append([]QuestObjective(nil), q.Objectives...)
		out.ActiveQuests[id] = qc
	}
	return &out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
