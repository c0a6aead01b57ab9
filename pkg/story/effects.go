package story

// defaultEffects is the hard-coded event→effect table. It is intentionally
// small and explicit rather than data-driven, so every side effect of a
// triggered story event is auditable in one place.
func defaultEffects() map[string]func(*Engine) {
	return map[string]func(*Engine){
		// Completing the cure formula buys the team more time.
		"cure_formula_discovered": func(e *Engine) {
			e.AddTime(1800)
		},
		// A containment breach accelerates the outbreak.
		"containment_breach": func(e *Engine) {
			e.AdjustSeverity(15)
		},
		// Pulling the survey team out of the hot zone restores morale and
		// buys a little time.
		"survivors_rescued": func(e *Engine) {
			e.ModifyRelationship("dr_virgil", 10)
			e.AddTime(600)
		},
		// Losing the field lab sets research back.
		"field_lab_lost": func(e *Engine) {
			e.AdvanceResearch(-10)
		},
	}
}
