package story

import "fmt"

// whenListener is a polling-style condition listener. The predicate is
// re-evaluated on every Update tick; simplicity over efficiency, kept as an
// explicit choice.
type whenListener struct {
	id   string
	cond func(*State) bool
	fn   func()
	once bool
}

// When registers a condition listener that fires once and is then removed.
// The predicate runs against the live state on every Update tick and must
// not mutate it. Returns the listener id for RemoveWhen.
func (e *Engine) When(cond func(*State) bool, fn func()) string {
	return e.addWhen(cond, fn, true)
}

// WhenRepeat registers a condition listener that fires on every tick the
// predicate holds.
func (e *Engine) WhenRepeat(cond func(*State) bool, fn func()) string {
	return e.addWhen(cond, fn, false)
}

func (e *Engine) addWhen(cond func(*State) bool, fn func(), once bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.whenSeq++
	id := fmt.Sprintf("when-%d", e.whenSeq)
	e.whens = append(e.whens, &whenListener{id: id, cond: cond, fn: fn, once: once})
	return id
}

// RemoveWhen unregisters a condition listener by id. Returns false if no
// listener with that id exists.
func (e *Engine) RemoveWhen(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, w := range e.whens {
		if w.id == id {
			e.whens = append(e.whens[:i], e.whens[i+1:]...)
			return true
		}
	}
	return false
}

// evaluateWhensLocked polls every registered listener once. Callbacks are
// deferred to the post-unlock flush; once-listeners are removed before
// their callback runs so a callback that mutates state cannot re-fire them.
func (e *Engine) evaluateWhensLocked(p *pending) {
	st := e.store.State()
	kept := e.whens[:0]
	for _, w := range e.whens {
		if !w.cond(st) {
			kept = append(kept, w)
			continue
		}
		p.callbacks = append(p.callbacks, w.fn)
		if !w.once {
			kept = append(kept, w)
		}
	}
	e.whens = kept
}
