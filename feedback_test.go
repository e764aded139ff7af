package reflux

import (
	"errors"
	"strconv"
	"testing"
	"time"
)

type counter struct {
	N     int
	Label string
}

func TestMapState_NarrowsView(t *testing.T) {
	reduce := func(s counter, e int) counter {
		s.N += e
		s.Label = strconv.Itoa(s.N)
		return s
	}
	// Written against int, the feedback only sees N.
	upTo3 := func(state Stream[int]) Stream[int] {
		return Map(Filter(state, func(n int) bool { return n < 3 }), func(int) int { return 1 })
	}

	r := record(t, New(counter{}, reduce).Run(
		MapState(func(s counter) int { return s.N }, upTo3),
	))
	if !r.waitLast(t, func(s counter) bool { return s.N == 3 }) {
		t.Fatal("expected loop to reach 3 through the narrowed view")
	}
	if last, _ := r.last(); last.Label != "3" {
		t.Errorf("expected label 3, got %q", last.Label)
	}
}

func TestMapEvents_LiftsEvents(t *testing.T) {
	type word string
	lift := func(w word) int { return len(w) }

	r := record(t, New(0, sum).Run(
		MapEvents(lift, Source[int](Just[word]("ab", "cde"))),
	))
	if !r.waitLast(t, func(s int) bool { return s == 5 }) {
		t.Fatal("expected lifted lengths to sum to 5")
	}
}

func TestObserve_PanicIsContained(t *testing.T) {
	sys := New(0, sum).ErrorHistorySize(4)
	r := record(t, sys.Run(
		Observe[int, int](func(s int) {
			if s == 1 {
				panic("observer")
			}
		}),
		Source[int](Just(1, 2)),
	))

	if !r.waitLast(t, func(s int) bool { return s == 3 }) {
		t.Fatal("expected loop to keep folding after observer panic")
	}
	if !waitFor(t, time.Second, func() bool { return len(sys.ErrorHistory()) == 1 }) {
		t.Fatalf("expected one fault, got %v", sys.ErrorHistory())
	}

	f := sys.ErrorHistory()[0]
	if f.Origin != OriginFeedback || f.Feedback != 0 {
		t.Errorf("expected feedback 0 fault, got %v", f)
	}
	var perr *PanicError
	if !errors.As(f, &perr) {
		t.Errorf("expected PanicError, got %v", f.Err)
	}
}
