// Package cinematic interprets declarative scene scripts: ordered playback,
// duration-driven advancement, and decision points that suspend the timeline
// until the player chooses.
package cinematic

import (
	"fmt"
)

type ID string

// SceneType selects the presentation routine for a scene. Rendering is the
// presentation layer's concern; the sequencer only carries the type through
// in its scene events.
type SceneType string

const (
	SceneNewsBroadcast  SceneType = "news_broadcast"
	SceneFootage        SceneType = "footage"
	SceneInterview      SceneType = "interview"
	SceneLab            SceneType = "lab_scene"
	SceneCloseup        SceneType = "closeup"
	SceneGeneric        SceneType = "scene"
	SceneMontage        SceneType = "montage"
	SceneBriefingRoom   SceneType = "briefing_room"
	SceneHologram       SceneType = "hologram_presentation"
	SceneCharacterFocus SceneType = "character_focus"
	SceneEpilogue       SceneType = "epilogue"
)

var sceneTypes = map[SceneType]bool{
	SceneNewsBroadcast: true, SceneFootage: true, SceneInterview: true,
	SceneLab: true, SceneCloseup: true, SceneGeneric: true,
	SceneMontage: true, SceneBriefingRoom: true, SceneHologram: true,
	SceneCharacterFocus: true, SceneEpilogue: true,
}

func (s SceneType) Valid() bool { return sceneTypes[s] }

// Choice is one selectable option at a decision point. Type carries the
// decision-context tag for the ending-path heuristic; SetFlags are applied
// through the story engine when the choice is submitted.
type Choice struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Type     string         `json:"type,omitempty"`
	SetFlags map[string]any `json:"set_flags,omitempty"`
}

// DecisionPoint suspends scene advancement until a choice is submitted.
type DecisionPoint struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt,omitempty"`
	Choices []Choice `json:"choices"`
}

func (d *DecisionPoint) choice(id string) (*Choice, bool) {
	for i := range d.Choices {
		if d.Choices[i].ID == id {
			return &d.Choices[i], true
		}
	}
	return nil, false
}

// Scene is one typed step in a cinematic's ordered script.
type Scene struct {
	Type       SceneType      `json:"type"`
	Duration   float64        `json:"duration"` // seconds
	Text       string         `json:"text,omitempty"`
	Background string         `json:"background,omitempty"`
	AudioTrack string         `json:"audio_track,omitempty"`
	Decision   *DecisionPoint `json:"decision_point,omitempty"`
}

// Cinematic is a read-only catalog entry.
type Cinematic struct {
	ID        ID      `json:"id"`
	Title     string  `json:"title,omitempty"`
	Skippable bool    `json:"skippable,omitempty"`
	Scenes    []Scene `json:"scenes"`
}

// Validate checks catalog integrity for one cinematic.
func (c *Cinematic) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("cinematic missing id")
	}
	if len(c.Scenes) == 0 {
		return fmt.Errorf("cinematic %s has no scenes", c.ID)
	}
	for i, sc := range c.Scenes {
		if !sc.Type.Valid() {
			return fmt.Errorf("cinematic %s scene %d has unknown type %q", c.ID, i, sc.Type)
		}
		if sc.Duration < 0 {
			return fmt.Errorf("cinematic %s scene %d has negative duration", c.ID, i)
		}
		if sc.Decision != nil {
			if sc.Decision.ID == "" {
				return fmt.Errorf("cinematic %s scene %d decision missing id", c.ID, i)
			}
			if len(sc.Decision.Choices) == 0 {
				return fmt.Errorf("cinematic %s scene %d decision %s has no choices", c.ID, i, sc.Decision.ID)
			}
			seen := make(map[string]bool)
			for _, ch := range sc.Decision.Choices {
				if ch.ID == "" {
					return fmt.Errorf("cinematic %s decision %s has a choice without an id", c.ID, sc.Decision.ID)
				}
				if seen[ch.ID] {
					return fmt.Errorf("cinematic %s decision %s duplicates choice %s", c.ID, sc.Decision.ID, ch.ID)
				}
				seen[ch.ID] = true
			}
		}
	}
	return nil
}
