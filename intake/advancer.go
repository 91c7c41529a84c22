package intake

import "github.com/sesampe/preaplus/ficha"

// Decision is the outcome of one turn's advance/retry evaluation.
type Decision struct {
	// NextIndex is the module the dialogue sits at after this turn.
	// NextIndex == Registry.Len() means the record is complete.
	NextIndex int
	Advanced  bool
	Forced    bool
	Completed bool
	// Missing holds the still-unfilled required paths of the module the
	// dialogue ends the turn on; empty when Completed.
	Missing []string
}

// Decide applies the advance/retry policy for the module at idx after a
// turn's patch has been merged into f. progressed reports whether the patch
// filled at least one of the module's previously-missing required fields; the
// retry counter resets on progress and increments otherwise. Past the limit
// the module is abandoned and the dialogue force-advances.
//
// retries is mutated in place.
func (r *Registry) Decide(idx int, f ficha.Ficha, progressed bool, retries map[int]int) Decision {
	if idx >= len(r.modules) {
		return Decision{NextIndex: len(r.modules), Completed: true}
	}

	missing := Missing(r.modules[idx], f)
	if len(missing) == 0 {
		delete(retries, idx)
		return r.advanceFrom(idx, f, false)
	}

	if progressed {
		retries[idx] = 0
		return Decision{NextIndex: idx, Missing: missing}
	}

	retries[idx]++
	if retries[idx] <= r.retryLimit {
		return Decision{NextIndex: idx, Missing: missing}
	}

	// Too many failed attempts: move on with the field(s) unfilled rather
	// than trapping the subject.
	delete(retries, idx)
	return r.advanceFrom(idx, f, true)
}

// advanceFrom steps past idx, additionally skipping any later module whose
// required fields were already captured in passing. Modules without required
// fields are never skipped; they still get asked once.
func (r *Registry) advanceFrom(idx int, f ficha.Ficha, forced bool) Decision {
	next := idx + 1
	for next < len(r.modules) {
		m := r.modules[next]
		if len(m.Required) == 0 || len(Missing(m, f)) > 0 {
			break
		}
		next++
	}
	if next >= len(r.modules) {
		return Decision{NextIndex: len(r.modules), Advanced: true, Forced: forced, Completed: true}
	}
	return Decision{
		NextIndex: next,
		Advanced:  true,
		Forced:    forced,
		Missing:   Missing(r.modules[next], f),
	}
}
