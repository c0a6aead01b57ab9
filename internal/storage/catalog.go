package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inferno-games/quantum-salvation/pkg/cinematic"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// Campaign content filenames under the data directory. endings.json is
// optional; the others must exist.
const (
	missionsFile   = "missions.json"
	cinematicsFile = "cinematics.json"
	chaptersFile   = "chapters.json"
	endingsFile    = "endings.json"
)

// LoadCatalog reads and validates the campaign content files. Any
// structural problem fails the whole load; a half-valid catalog is worse
// than no catalog.
func (r *RedisStorage) LoadCatalog(ctx context.Context) (*Catalog, error) {
	return LoadCatalogDir(r.dataDir)
}

// LoadCatalogDir loads campaign content from a directory. Shared with the
// content validator CLI, which has no Redis.
func LoadCatalogDir(dir string) (*Catalog, error) {
	cat := &Catalog{
		Missions:   make(map[mission.ID]mission.Mission),
		Cinematics: make(map[cinematic.ID]cinematic.Cinematic),
	}

	var missions []mission.Mission
	if err := readJSON(filepath.Join(dir, missionsFile), &missions); err != nil {
		return nil, err
	}
	for _, m := range missions {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", missionsFile, err)
		}
		if _, dup := cat.Missions[m.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate mission %s", missionsFile, m.ID)
		}
		cat.Missions[m.ID] = m
	}

	var cinematics []cinematic.Cinematic
	if err := readJSON(filepath.Join(dir, cinematicsFile), &cinematics); err != nil {
		return nil, err
	}
	for _, c := range cinematics {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", cinematicsFile, err)
		}
		if _, dup := cat.Cinematics[c.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate cinematic %s", cinematicsFile, c.ID)
		}
		cat.Cinematics[c.ID] = c
	}

	if err := readJSON(filepath.Join(dir, chaptersFile), &cat.Chapters); err != nil {
		return nil, err
	}
	seen := make(map[story.ChapterID]bool)
	for i := range cat.Chapters {
		ch := &cat.Chapters[i]
		if err := ch.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", chaptersFile, err)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("%s: duplicate chapter %s", chaptersFile, ch.ID)
		}
		seen[ch.ID] = true
		if ch.Cinematic != "" {
			if _, ok := cat.Cinematics[cinematic.ID(ch.Cinematic)]; !ok {
				return nil, fmt.Errorf("%s: chapter %s references unknown cinematic %s", chaptersFile, ch.ID, ch.Cinematic)
			}
		}
		for _, mid := range ch.Missions {
			if _, ok := cat.Missions[mission.ID(mid)]; !ok {
				return nil, fmt.Errorf("%s: chapter %s references unknown mission %s", chaptersFile, ch.ID, mid)
			}
		}
	}
	for i := range cat.Chapters {
		next := cat.Chapters[i].Next
		if next != "" && !seen[next] {
			return nil, fmt.Errorf("%s: chapter %s references unknown next chapter %s", chaptersFile, cat.Chapters[i].ID, next)
		}
	}

	// Endings are optional; a missing file means the built-in table.
	endingsPath := filepath.Join(dir, endingsFile)
	if _, err := os.Stat(endingsPath); err == nil {
		if err := readJSON(endingsPath, &cat.Endings); err != nil {
			return nil, err
		}
		for _, e := range cat.Endings {
			if e.ID == "" {
				return nil, fmt.Errorf("%s: ending missing id", endingsFile)
			}
		}
	}

	return cat, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
