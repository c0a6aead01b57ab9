package story

import (
	"fmt"
	"time"
)

// SnapshotVersion is the current snapshot schema version. Restore rejects
// snapshots written by a newer schema.
const SnapshotVersion = 1

// Snapshot is an opaque serializable capture of a session: the full story
// state plus the triggered-event guard set.
type Snapshot struct {
	Version         int       `json:"version"`
	SavedAt         time.Time `json:"saved_at"`
	State           *State    `json:"state"`
	TriggeredEvents []string  `json:"triggered_events,omitempty"`
}

// Snapshot captures the current session.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Snapshot{
		Version:         SnapshotVersion,
		SavedAt:         e.cfg.Now(),
		State:           e.store.State().Clone(),
		TriggeredEvents: e.triggeredKeysLocked(),
	}
}

func (e *Engine) triggeredKeysLocked() []string {
	keys := make([]string, 0, len(e.triggered))
	for k := range e.triggered {
		keys = append(keys, k)
	}
	return keys
}

// Restore replaces the session with a saved snapshot. It validates the
// snapshot shape and fails closed: on any error the current state is left
// untouched.
func (e *Engine) Restore(snap *Snapshot) error {
	if snap == nil || snap.State == nil {
		err := fmt.Errorf("snapshot missing state")
		e.log.Error("rejecting snapshot", "error", err)
		return err
	}
	if snap.Version > SnapshotVersion {
		err := fmt.Errorf("unsupported snapshot version %d", snap.Version)
		e.log.Error("rejecting snapshot", "error", err, "version", snap.Version)
		return err
	}

	restored := snap.State.Clone()
	// Older snapshots may predate some map fields.
	if restored.Flags == nil {
		restored.Flags = make(map[string]any)
	}
	if restored.Relationships == nil {
		restored.Relationships = make(map[CharacterID]float64)
	}
	if restored.DiscoveredLore == nil {
		restored.DiscoveredLore = make(map[LoreID]LoreEntry)
	}
	if restored.CollectedEvidence == nil {
		restored.CollectedEvidence = make(map[EvidenceID]EvidenceEntry)
	}
	if restored.CompletedChapters == nil {
		restored.CompletedChapters = make(map[ChapterID]bool)
	}
	if restored.ActiveQuests == nil {
		restored.ActiveQuests = make(map[QuestID]Quest)
	}
	if restored.World.UnlockedFacilities == nil {
		restored.World.UnlockedFacilities = make(map[FacilityID]bool)
	}

	e.mu.Lock()
	e.store.Replace(restored)
	e.triggered = make(map[string]bool, len(snap.TriggeredEvents))
	for _, k := range snap.TriggeredEvents {
		e.triggered[k] = true
	}
	e.mu.Unlock()

	e.log.Info("session restored", "saved_at", snap.SavedAt, "version", snap.Version)
	return nil
}
