package reflux

// Set is a set of requests compared purely by membership.
type Set[R comparable] map[R]struct{}

// NewSet returns a set holding members.
func NewSet[R comparable](members ...R) Set[R] {
	s := make(Set[R], len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Has reports whether r is a member of s.
func (s Set[R]) Has(r R) bool {
	_, ok := s[r]
	return ok
}

// phase is the lifecycle step of a request.
type phase int

const (
	// phaseStarted means the request became live and its effect should run.
	phaseStarted phase = iota

	// phaseContinuing means the request is unchanged and its effect keeps
	// running.
	phaseContinuing

	// phaseEnded means the request disappeared and its effect must be canceled.
	phaseEnded
)

// String returns the string representation of the phase.
func (p phase) String() string {
	switch p {
	case phaseStarted:
		return "started"
	case phaseContinuing:
		return "continuing"
	case phaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// transition is one request lifecycle step.
type transition[R comparable] struct {
	request R
	phase   phase
}

// requests tracks the live request set between consecutive states.
//
// Within one call to next, every ended transition precedes every continuing
// transition, which precede every started transition. Ended and continuing
// follow the order in which the requests were started; started follows the
// iteration order of the new set.
type requests[R comparable] struct {
	live  Set[R]
	order []R
}

// next diffs desired against the live set and returns the transitions that
// bring the live set in line with it.
func (q *requests[R]) next(desired Set[R]) []transition[R] {
	var out []transition[R]

	kept := q.order[:0:0]
	for _, r := range q.order {
		if desired.Has(r) {
			kept = append(kept, r)
			continue
		}
		out = append(out, transition[R]{request: r, phase: phaseEnded})
		delete(q.live, r)
	}
	for _, r := range kept {
		out = append(out, transition[R]{request: r, phase: phaseContinuing})
	}

	if q.live == nil {
		q.live = make(Set[R], len(desired))
	}
	for r := range desired {
		if q.live.Has(r) {
			continue
		}
		q.live[r] = struct{}{}
		kept = append(kept, r)
		out = append(out, transition[R]{request: r, phase: phaseStarted})
	}

	q.order = kept
	return out
}

// single lifts an optional request into a set of at most one member.
func single[R comparable](r R, ok bool) Set[R] {
	if !ok {
		return nil
	}
	return Set[R]{r: {}}
}
