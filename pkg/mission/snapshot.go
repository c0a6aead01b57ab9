package mission

import (
	"fmt"
)

// Snapshot captures tracker progress for persistence. The mission catalog is
// static content and is not part of the snapshot; Restore resolves ids
// against the catalog the tracker was built with.
type Snapshot struct {
	Active         ID                          `json:"active,omitempty"`
	ActiveTimeLeft float64                     `json:"active_time_left,omitempty"` // seconds; negative when untimed
	Completed      []ID                        `json:"completed,omitempty"`
	Progress       map[ID]int                  `json:"progress,omitempty"`
	Objectives     map[ID]map[ObjectiveID]bool `json:"objectives,omitempty"`
	Notes          map[ID][]string             `json:"notes,omitempty"`
	Clues          map[ID][]ClueID             `json:"clues,omitempty"`
}

// Snapshot returns a deep copy of the tracker's progress state.
func (t *Tracker) Snapshot() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &Snapshot{
		ActiveTimeLeft: -1,
		Completed:      append([]ID(nil), t.completedOrder...),
		Progress:       make(map[ID]int, len(t.progress)),
		Objectives:     make(map[ID]map[ObjectiveID]bool, len(t.objectiveStatus)),
		Notes:          make(map[ID][]string, len(t.notes)),
		Clues:          make(map[ID][]ClueID, len(t.clues)),
	}
	for k, v := range t.progress {
		s.Progress[k] = v
	}
	for k, v := range t.objectiveStatus {
		m := make(map[ObjectiveID]bool, len(v))
		for ok, ov := range v {
			m[ok] = ov
		}
		s.Objectives[k] = m
	}
	for k, v := range t.notes {
		s.Notes[k] = append([]string(nil), v...)
	}
	for k, v := range t.clues {
		s.Clues[k] = append([]ClueID(nil), v...)
	}
	if t.active != nil {
		s.Active = t.active.id
		if t.active.timer != nil {
			s.ActiveTimeLeft = t.active.timer.remaining
		}
	}
	return s
}

// Restore replaces the tracker's progress state from a snapshot. Unknown
// mission ids fail closed, leaving the tracker unchanged.
func (t *Tracker) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("nil mission snapshot")
	}
	if s.Active != "" {
		if _, ok := t.catalog[s.Active]; !ok {
			return fmt.Errorf("snapshot active mission %s not in catalog", s.Active)
		}
	}
	for _, id := range s.Completed {
		if _, ok := t.catalog[id]; !ok {
			return fmt.Errorf("snapshot completed mission %s not in catalog", id)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed = make(map[ID]bool, len(s.Completed))
	t.completedOrder = append([]ID(nil), s.Completed...)
	for _, id := range s.Completed {
		t.completed[id] = true
	}
	t.progress = make(map[ID]int, len(s.Progress))
	for k, v := range s.Progress {
		t.progress[k] = v
	}
	t.objectiveStatus = make(map[ID]map[ObjectiveID]bool, len(s.Objectives))
	for k, v := range s.Objectives {
		m := make(map[ObjectiveID]bool, len(v))
		for ok, ov := range v {
			m[ok] = ov
		}
		t.objectiveStatus[k] = m
	}
	t.notes = make(map[ID][]string, len(s.Notes))
	for k, v := range s.Notes {
		t.notes[k] = append([]string(nil), v...)
	}
	t.clues = make(map[ID][]ClueID, len(s.Clues))
	for k, v := range s.Clues {
		t.clues[k] = append([]ClueID(nil), v...)
	}

	t.active = nil
	if s.Active != "" {
		am := &activeMission{id: s.Active, def: t.catalog[s.Active]}
		if s.ActiveTimeLeft >= 0 {
			am.timer = &countdown{
				remaining: s.ActiveTimeLeft,
				lastWhole: int(s.ActiveTimeLeft),
			}
		}
		t.active = am
		if t.objectiveStatus[s.Active] == nil {
			status := make(map[ObjectiveID]bool, len(am.def.Objectives))
			for _, o := range am.def.Objectives {
				status[o.ID] = false
			}
			t.objectiveStatus[s.Active] = status
		}
	}
	return nil
}
