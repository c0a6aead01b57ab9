package story

import (
	"time"
)

// ChangeOp identifies which mutation primitive produced a change-log entry.
type ChangeOp string

const (
	OpFlag          ChangeOp = "flag"
	OpRelationship  ChangeOp = "relationship"
	OpResearch      ChangeOp = "research"
	OpSeverity      ChangeOp = "severity"
	OpStabilization ChangeOp = "stabilization"
	OpTime          ChangeOp = "time"
	OpFacility      ChangeOp = "facility"
	OpDecision      ChangeOp = "decision"
	OpLore          ChangeOp = "lore"
	OpEvidence      ChangeOp = "evidence"
	OpQuest         ChangeOp = "quest"
	OpChapter       ChangeOp = "chapter"
	OpMainProgress  ChangeOp = "main_progress"
	OpEndingPath    ChangeOp = "ending_path"
)

// Change is one entry in the store's change log. The engine drains the log
// after each mutation to decide which events to emit; the store itself never
// emits anything, which keeps it side-effect-free and independently testable.
type Change struct {
	Op   ChangeOp
	Key  string
	Prev any
	New  any
	At   time.Time
}

// Store owns a State and exposes the atomic mutation primitives. Numeric
// writes are clamped per the state invariants; discovery writes are
// once-per-key. Every mutation appends to the change log.
type Store struct {
	state   *State
	changes []Change
	now     func() time.Time
}

func NewStore(state *State) *Store {
	return &Store{state: state, now: time.Now}
}

// WithNow overrides the store's clock source. Used by the engine to keep
// discovery timestamps consistent with the session clock, and by tests.
func (st *Store) WithNow(now func() time.Time) *Store {
	st.now = now
	return st
}

// State returns the underlying aggregate. Callers outside the single-writer
// path must use Clone instead.
func (st *Store) State() *State {
	return st.state
}

// Replace swaps in a restored state and clears the change log.
func (st *Store) Replace(state *State) {
	st.state = state
	st.changes = nil
}

// DrainChanges returns and clears the accumulated change log.
func (st *Store) DrainChanges() []Change {
	out := st.changes
	st.changes = nil
	return out
}

func (st *Store) record(op ChangeOp, key string, prev, cur any) {
	st.changes = append(st.changes, Change{Op: op, Key: key, Prev: prev, New: cur, At: st.now()})
}

// SetFlag writes a narrative flag and returns its previous value.
func (st *Store) SetFlag(key string, value any) (prev any, existed bool) {
	prev, existed = st.state.Flags[key]
	st.state.Flags[key] = value
	st.record(OpFlag, key, prev, value)
	return prev, existed
}

// Flag reads a flag, returning def when unset.
func (st *Store) Flag(key string, def any) any {
	if v, ok := st.state.Flags[key]; ok {
		return v
	}
	return def
}

// ModifyRelationship applies a clamped delta to a character relationship.
func (st *Store) ModifyRelationship(ch CharacterID, delta float64) (cur, prev float64) {
	prev = st.state.Relationships[ch]
	cur = clamp(prev+delta, -100, 100)
	st.state.Relationships[ch] = cur
	st.record(OpRelationship, string(ch), prev, cur)
	return cur, prev
}

// AdvanceResearch applies a clamped delta to research progress.
func (st *Store) AdvanceResearch(amount float64) (cur, prev float64) {
	prev = st.state.World.ResearchProgress
	cur = clamp(prev+amount, 0, 100)
	st.state.World.ResearchProgress = cur
	st.record(OpResearch, "", prev, cur)
	return cur, prev
}

// AdjustSeverity applies a clamped delta to pandemic severity.
func (st *Store) AdjustSeverity(delta float64) (cur, prev float64) {
	prev = st.state.World.PandemicSeverity
	cur = clamp(prev+delta, 0, 100)
	st.state.World.PandemicSeverity = cur
	st.record(OpSeverity, "", prev, cur)
	return cur, prev
}

// AdjustStabilization applies a clamped delta to quantum stabilization.
func (st *Store) AdjustStabilization(delta float64) (cur, prev float64) {
	prev = st.state.World.QuantumStabilization
	cur = clamp(prev+delta, 0, 100)
	st.state.World.QuantumStabilization = cur
	st.record(OpStabilization, "", prev, cur)
	return cur, prev
}

// DecrementTime reduces the narrative clock, floor zero.
func (st *Store) DecrementTime(seconds float64) (cur, prev float64) {
	prev = st.state.World.TimeRemaining
	cur = prev - seconds
	if cur < 0 {
		cur = 0
	}
	st.state.World.TimeRemaining = cur
	st.record(OpTime, "", prev, cur)
	return cur, prev
}

// AddTime extends the narrative clock. The clock has no upper bound; only
// the zero floor is enforced.
func (st *Store) AddTime(seconds float64) (cur, prev float64) {
	prev = st.state.World.TimeRemaining
	cur = prev + seconds
	if cur < 0 {
		cur = 0
	}
	st.state.World.TimeRemaining = cur
	st.record(OpTime, "", prev, cur)
	return cur, prev
}

// UnlockFacility marks a facility unlocked. Returns false if it already was.
func (st *Store) UnlockFacility(id FacilityID) bool {
	if st.state.World.UnlockedFacilities[id] {
		return false
	}
	st.state.World.UnlockedFacilities[id] = true
	st.record(OpFacility, string(id), false, true)
	return true
}

// RecordDecision appends to the decision history. The list is append-only.
func (st *Store) RecordDecision(d Decision) {
	if d.Timestamp.IsZero() {
		d.Timestamp = st.now()
	}
	if d.Chapter == "" {
		d.Chapter = st.state.CurrentChapter
	}
	st.state.Decisions = append(st.state.Decisions, d)
	st.record(OpDecision, d.ID, nil, d.Choice)
}

// DiscoverLore records a lore entry. A second write to the same key is a
// no-op returning false, so research bonuses tied to a discovery cannot be
// double-applied by overlapping triggers.
func (st *Store) DiscoverLore(id LoreID, entry LoreEntry) bool {
	if _, exists := st.state.DiscoveredLore[id]; exists {
		return false
	}
	entry.DiscoveredAt = st.now()
	st.state.DiscoveredLore[id] = entry
	st.record(OpLore, string(id), nil, entry.Title)
	return true
}

// CollectEvidence records an evidence entry. Write-once per key.
func (st *Store) CollectEvidence(id EvidenceID, entry EvidenceEntry) bool {
	if _, exists := st.state.CollectedEvidence[id]; exists {
		return false
	}
	entry.CollectedAt = st.now()
	st.state.CollectedEvidence[id] = entry
	st.record(OpEvidence, string(id), nil, entry.Name)
	return true
}

// UpsertQuest writes the story-side record of a mission's progress.
func (st *Store) UpsertQuest(id QuestID, q Quest) {
	prev := st.state.ActiveQuests[id]
	st.state.ActiveQuests[id] = q
	st.record(OpQuest, string(id), prev.Status, q.Status)
}

// SetChapter moves the narrative to a chapter.
func (st *Store) SetChapter(ch ChapterID) (prev ChapterID) {
	prev = st.state.CurrentChapter
	st.state.CurrentChapter = ch
	st.record(OpChapter, string(ch), prev, ch)
	return prev
}

// CompleteChapter marks a chapter completed. Returns false if it already was.
func (st *Store) CompleteChapter(ch ChapterID) bool {
	if st.state.CompletedChapters[ch] {
		return false
	}
	st.state.CompletedChapters[ch] = true
	st.record(OpChapter, string(ch), false, true)
	return true
}

// AdvanceMainProgress applies a clamped delta to overall campaign progress.
func (st *Store) AdvanceMainProgress(delta float64) (cur, prev float64) {
	prev = st.state.MainProgress
	cur = clamp(prev+delta, 0, 100)
	st.state.MainProgress = cur
	st.record(OpMainProgress, "", prev, cur)
	return cur, prev
}

// SetEndingPath records the current ending-path label.
func (st *Store) SetEndingPath(id EndingID) (prev EndingID) {
	prev = st.state.EndingPath
	st.state.EndingPath = id
	st.record(OpEndingPath, string(id), prev, id)
	return prev
}
