package story

import (
	"encoding/json"
	"fmt"
)

// Range is a numeric requirement. In JSON it is either a bare number
// (exact match) or a [min,max] pair.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Exact builds a range matching a single value.
func Exact(v float64) *Range { return &Range{Min: v, Max: v} }

// Between builds an inclusive [min,max] range.
func Between(min, max float64) *Range { return &Range{Min: min, Max: max} }

func (r *Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// UnmarshalJSON accepts both 100 and [80,100].
func (r *Range) UnmarshalJSON(data []byte) error {
	var exact float64
	if err := json.Unmarshal(data, &exact); err == nil {
		r.Min, r.Max = exact, exact
		return nil
	}
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("range must be a number or [min,max] pair: %w", err)
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

func (r Range) MarshalJSON() ([]byte, error) {
	if r.Min == r.Max {
		return json.Marshal(r.Min)
	}
	return json.Marshal([2]float64{r.Min, r.Max})
}

// Requirements is one ending's requirement set. Nil numeric fields and empty
// lists are unconstrained.
type Requirements struct {
	Research      *Range         `json:"research,omitempty"`
	Stabilization *Range         `json:"stabilization,omitempty"`
	Severity      *Range         `json:"severity,omitempty"`
	TimeRemaining *Range         `json:"time_remaining,omitempty"`
	Evidence      []EvidenceID   `json:"evidence,omitempty"`
	Flags         map[string]any `json:"flags,omitempty"`
}

// Ending is one entry in the ordered ending table. Table order is the
// tie-break: the first ending whose requirements are satisfied wins, even if
// a later entry's requirements also hold.
type Ending struct {
	ID          EndingID     `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Requires    Requirements `json:"requires"`
}

// EndingEmergencySolution is the fallback when no table entry matches.
const EndingEmergencySolution EndingID = "emergency_solution"

// Satisfied reports whether the state meets every requirement.
func (r Requirements) Satisfied(s *State) bool {
	if r.Research != nil && !r.Research.Contains(s.World.ResearchProgress) {
		return false
	}
	if r.Stabilization != nil && !r.Stabilization.Contains(s.World.QuantumStabilization) {
		return false
	}
	if r.Severity != nil && !r.Severity.Contains(s.World.PandemicSeverity) {
		return false
	}
	if r.TimeRemaining != nil && !r.TimeRemaining.Contains(s.World.TimeRemaining) {
		return false
	}
	for _, ev := range r.Evidence {
		if _, ok := s.CollectedEvidence[ev]; !ok {
			return false
		}
	}
	for flag, want := range r.Flags {
		if got, ok := s.Flags[flag]; !ok || got != want {
			return false
		}
	}
	return true
}

// DefaultEndings is the Quantum Salvation campaign ending table. Order
// determines narrative branching and must not be reshuffled.
func DefaultEndings() []Ending {
	return []Ending{
		{
			ID:          "true_cure",
			Name:        "The True Cure",
			Description: "The formula is complete, the field is stable, and no one was left behind.",
			Requires: Requirements{
				Research:      Exact(100),
				Stabilization: Between(80, 100),
				Evidence:      []EvidenceID{"quantum_formula", "patient_zero_sample"},
				Flags:         map[string]any{"cure_distributed": true, "team_intact": true},
			},
		},
		{
			ID:          "quantum_ascension",
			Name:        "Quantum Ascension",
			Description: "Humanity steps sideways out of the pandemic entirely.",
			Requires: Requirements{
				Stabilization: Between(95, 100),
				Flags:         map[string]any{"embraced_quantum": true},
			},
		},
		{
			ID:          "partial_cure",
			Name:        "Partial Cure",
			Description: "The vaccine works for most. The rest wait in the cold wards.",
			Requires: Requirements{
				Research: Between(75, 100),
				Evidence: []EvidenceID{"quantum_formula"},
			},
		},
		{
			ID:          "containment",
			Name:        "Containment",
			Description: "The outbreak is walled in, not cured.",
			Requires: Requirements{
				Severity: Between(0, 40),
			},
		},
		{
			ID:          "pyrrhic_victory",
			Name:        "Pyrrhic Victory",
			Description: "A cure bought at a price nobody will say out loud.",
			Requires: Requirements{
				Research: Between(50, 100),
				Flags:    map[string]any{"sacrificed_team": true},
			},
		},
	}
}

// DetermineEnding returns the first ending in table order whose requirements
// the state satisfies, or EndingEmergencySolution when none match.
func DetermineEnding(table []Ending, s *State) EndingID {
	for _, e := range table {
		if e.Requires.Satisfied(s) {
			return e.ID
		}
	}
	return EndingEmergencySolution
}

// PossibleEndings returns every ending whose requirements the state
// currently satisfies, in table order.
func PossibleEndings(table []Ending, s *State) []EndingID {
	var out []EndingID
	for _, e := range table {
		if e.Requires.Satisfied(s) {
			out = append(out, e.ID)
		}
	}
	return out
}

// Decision-type tags counted by the ending-path heuristic.
const (
	DecisionAltruistic = "altruistic"
	DecisionPragmatic  = "pragmatic"
	DecisionRisky      = "risky"
	DecisionCareful    = "careful"
)

// endingPath computes the running ending-path label from the decision
// history and world state. The sequence is fixed: count-based axes first,
// then the two flag overrides (saved_everyone after sacrificed_team, so a
// rescue outranks a sacrifice), then the research floor.
func endingPath(s *State) EndingID {
	counts := map[string]int{}
	for _, d := range s.Decisions {
		counts[d.Context.Type]++
	}

	primary := "pragmatic"
	if counts[DecisionAltruistic] >= counts[DecisionPragmatic] {
		primary = "humanitarian"
	}
	secondary := "cautious"
	if counts[DecisionRisky] >= counts[DecisionCareful] {
		secondary = "bold"
	}
	path := EndingID(primary + "_" + secondary)

	if v, ok := s.Flags["sacrificed_team"]; ok && v == true {
		path = "ruthless"
	}
	if v, ok := s.Flags["saved_everyone"]; ok && v == true {
		path = "heroic"
	}
	if s.World.ResearchProgress < 30 {
		path = "failure"
	}
	return path
}
