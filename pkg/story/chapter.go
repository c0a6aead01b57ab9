package story

import "fmt"

// Chapter is a static catalog entry describing one act of the campaign.
// Progression state lives in State; the catalog only carries content.
type Chapter struct {
	ID            ChapterID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Cinematic     string    `json:"cinematic,omitempty"` // played when the chapter opens
	Missions      []string  `json:"missions,omitempty"`  // suggested mission order
	ProgressValue float64   `json:"progress_value,omitempty"`
	Next          ChapterID `json:"next,omitempty"`
}

func (c *Chapter) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chapter missing id")
	}
	if c.Title == "" {
		return fmt.Errorf("chapter %s missing title", c.ID)
	}
	if c.ProgressValue < 0 {
		return fmt.Errorf("chapter %s has negative progress value", c.ID)
	}
	return nil
}
