// Command validate checks a campaign data directory before it ships:
// missions, cinematics, chapters, and the optional ending table, including
// the cross-references between them.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/inferno-games/quantum-salvation/internal/storage"
	"github.com/inferno-games/quantum-salvation/pkg/cinematic"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
)

func main() {
	dir := "./data"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	fmt.Printf("Validating campaign data in %s...\n", dir)

	cat, err := storage.LoadCatalogDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	if warnings := lint(cat); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}

	fmt.Printf("Campaign data is valid: %d missions, %d cinematics, %d chapters",
		len(cat.Missions), len(cat.Cinematics), len(cat.Chapters))
	if len(cat.Endings) > 0 {
		fmt.Printf(", %d endings", len(cat.Endings))
	}
	fmt.Println()
}

// lint reports content smells that load fine but are probably authoring
// mistakes: missions no chapter references, cinematics nothing plays, and
// decision choices that set no flags and carry no decision type.
func lint(cat *storage.Catalog) []string {
	var warnings []string

	referencedMissions := make(map[mission.ID]bool)
	referencedCinematics := make(map[cinematic.ID]bool)
	for _, ch := range cat.Chapters {
		for _, m := range ch.Missions {
			referencedMissions[mission.ID(m)] = true
		}
		if ch.Cinematic != "" {
			referencedCinematics[cinematic.ID(ch.Cinematic)] = true
		}
	}

	var missionIDs []mission.ID
	for id := range cat.Missions {
		missionIDs = append(missionIDs, id)
	}
	sort.Slice(missionIDs, func(i, j int) bool { return missionIDs[i] < missionIDs[j] })
	for _, id := range missionIDs {
		m := cat.Missions[id]
		if !referencedMissions[id] && len(m.TriggerFlags) == 0 {
			warnings = append(warnings, fmt.Sprintf("mission %s is not referenced by any chapter and has no trigger flags", id))
		}
	}

	var cinematicIDs []cinematic.ID
	for id := range cat.Cinematics {
		cinematicIDs = append(cinematicIDs, id)
	}
	sort.Slice(cinematicIDs, func(i, j int) bool { return cinematicIDs[i] < cinematicIDs[j] })
	for _, id := range cinematicIDs {
		c := cat.Cinematics[id]
		if !referencedCinematics[id] {
			warnings = append(warnings, fmt.Sprintf("cinematic %s is not referenced by any chapter", id))
		}
		for i, sc := range c.Scenes {
			if sc.Decision == nil {
				continue
			}
			for _, choice := range sc.Decision.Choices {
				if len(choice.SetFlags) == 0 && choice.Type == "" {
					warnings = append(warnings, fmt.Sprintf("cinematic %s scene %d choice %s has no effect", id, i, choice.ID))
				}
			}
		}
	}

	return warnings
}
