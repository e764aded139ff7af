package reflux

import (
	"fmt"
	"sync"
	"time"
)

// Fault records a failure that was contained by the loop.
type Fault struct {
	// Err is the underlying failure.
	Err error

	// At is when the fault was observed, according to the system clock.
	At time.Time

	// Origin is the part of the loop that failed.
	Origin Origin

	// Feedback is the index of the feedback the fault belongs to, or -1 when
	// the fault is not attributable to a single feedback.
	Feedback int
}

func (f Fault) Error() string {
	if f.Feedback >= 0 {
		return fmt.Sprintf("%s fault in feedback %d: %v", f.Origin, f.Feedback, f.Err)
	}
	return fmt.Sprintf("%s fault: %v", f.Origin, f.Err)
}

// Unwrap returns the underlying failure.
func (f Fault) Unwrap() error {
	return f.Err
}

// faultRing is a thread-safe ring buffer of recent faults.
type faultRing struct {
	mu     sync.RWMutex
	faults []Fault
	size   int
	head   int
	count  int
}

// newFaultRing creates a ring with the given capacity.
// A size of 0 or less disables history and returns nil.
func newFaultRing(size int) *faultRing {
	if size <= 0 {
		return nil
	}
	return &faultRing{
		faults: make([]Fault, size),
		size:   size,
	}
}

func (r *faultRing) push(f Fault) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.faults[r.head] = f
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *faultRing) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.faults)
	r.head = 0
	r.count = 0
}

// all returns the recorded faults, oldest first.
func (r *faultRing) all() []Fault {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]Fault, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := range r.count {
		result[i] = r.faults[(start+i)%r.size]
	}
	return result
}
