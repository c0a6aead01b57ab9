// Package mission layers discrete mission and objective semantics on top of
// story engine events: lifecycle, per-mission countdowns, and declarative
// auto-trigger predicates.
package mission

import (
	"encoding/json"
	"fmt"

	"github.com/inferno-games/quantum-salvation/pkg/story"
)

type (
	ID          string
	ObjectiveID string
	ClueID      string
)

// TriggerKind discriminates objective completion predicates.
type TriggerKind string

const (
	TriggerFlag     TriggerKind = "flag"
	TriggerLocation TriggerKind = "location"
	TriggerItem     TriggerKind = "item"
	TriggerResearch TriggerKind = "research"
	TriggerClue     TriggerKind = "clue"
)

// Trigger is a tagged-variant completion predicate. Kind selects which
// payload field is meaningful; Validate enforces that the field is present.
type Trigger struct {
	Kind     TriggerKind `json:"kind"`
	Flag     string      `json:"flag,omitempty"`
	Value    any         `json:"value,omitempty"`
	Location string      `json:"location,omitempty"`
	Item     string      `json:"item,omitempty"`
	Lore     string      `json:"lore,omitempty"`
	Clue     ClueID      `json:"clue,omitempty"`
}

// Validate checks that the trigger carries the payload its kind requires.
func (tr *Trigger) Validate() error {
	switch tr.Kind {
	case TriggerFlag:
		if tr.Flag == "" {
			return fmt.Errorf("flag trigger missing flag name")
		}
		if tr.Value == nil {
			return fmt.Errorf("flag trigger %q missing value", tr.Flag)
		}
	case TriggerLocation:
		if tr.Location == "" {
			return fmt.Errorf("location trigger missing location")
		}
	case TriggerItem:
		if tr.Item == "" {
			return fmt.Errorf("item trigger missing item")
		}
	case TriggerResearch:
		if tr.Lore == "" {
			return fmt.Errorf("research trigger missing lore id")
		}
	case TriggerClue:
		if tr.Clue == "" {
			return fmt.Errorf("clue trigger missing clue id")
		}
	default:
		return fmt.Errorf("unknown trigger kind %q", tr.Kind)
	}
	return nil
}

// UnmarshalJSON rejects malformed triggers at catalog load time rather than
// during play.
func (tr *Trigger) UnmarshalJSON(data []byte) error {
	type alias Trigger
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*tr = Trigger(a)
	return tr.Validate()
}

// Objective is one completable condition within a mission.
type Objective struct {
	ID          ObjectiveID `json:"id"`
	Description string      `json:"description,omitempty"`
	CompleteOn  *Trigger    `json:"complete_on,omitempty"`
}

// Clue is a discoverable hint declared by a mission.
type Clue struct {
	ID          ClueID `json:"id"`
	Description string `json:"description,omitempty"`
}

// Mission is a read-only catalog entry.
type Mission struct {
	ID            ID              `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Chapter       story.ChapterID `json:"chapter,omitempty"`
	TimeLimit     int             `json:"time_limit,omitempty"` // minutes; 0 means untimed
	AutoComplete  bool            `json:"auto_complete_on_all_objectives,omitempty"`
	TriggerFlags  map[string]any  `json:"trigger_flags,omitempty"`
	Objectives    []Objective     `json:"objectives"`
	Clues         []Clue          `json:"clues,omitempty"`
	Rewards       map[string]any  `json:"rewards,omitempty"`        // flags set on success
	ProgressValue float64         `json:"progress_value,omitempty"` // main-progress bump on success
}

// Validate checks catalog integrity for one mission.
func (m *Mission) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("mission missing id")
	}
	if m.Name == "" {
		return fmt.Errorf("mission %s missing name", m.ID)
	}
	if len(m.Objectives) == 0 {
		return fmt.Errorf("mission %s has no objectives", m.ID)
	}
	seen := make(map[ObjectiveID]bool)
	clues := make(map[ClueID]bool)
	for _, c := range m.Clues {
		if c.ID == "" {
			return fmt.Errorf("mission %s has a clue without an id", m.ID)
		}
		if clues[c.ID] {
			return fmt.Errorf("mission %s duplicates clue %s", m.ID, c.ID)
		}
		clues[c.ID] = true
	}
	for _, o := range m.Objectives {
		if o.ID == "" {
			return fmt.Errorf("mission %s has an objective without an id", m.ID)
		}
		if seen[o.ID] {
			return fmt.Errorf("mission %s duplicates objective %s", m.ID, o.ID)
		}
		seen[o.ID] = true
		if o.CompleteOn != nil {
			if err := o.CompleteOn.Validate(); err != nil {
				return fmt.Errorf("mission %s objective %s: %w", m.ID, o.ID, err)
			}
			if o.CompleteOn.Kind == TriggerClue && !clues[o.CompleteOn.Clue] {
				return fmt.Errorf("mission %s objective %s references unknown clue %s",
					m.ID, o.ID, o.CompleteOn.Clue)
			}
		}
	}
	return nil
}

// Objective returns the catalog entry for an objective id.
func (m *Mission) Objective(id ObjectiveID) (*Objective, bool) {
	for i := range m.Objectives {
		if m.Objectives[i].ID == id {
			return &m.Objectives[i], true
		}
	}
	return nil, false
}

// HasClue reports whether the mission declares the clue.
func (m *Mission) HasClue(id ClueID) bool {
	for _, c := range m.Clues {
		if c.ID == id {
			return true
		}
	}
	return false
}
