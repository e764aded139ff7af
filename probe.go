package reflux

import (
	"context"
	"sync/atomic"

	"github.com/zoobzio/clockz"
)

// probe carries observability for one System through the contexts handed to
// feedbacks and effects.
type probe struct {
	clock   clockz.Clock
	metrics MetricsProvider
	faults  atomic.Pointer[faultRing]
	last    atomic.Pointer[Fault]
}

func newProbe() *probe {
	return &probe{
		clock:   clockz.RealClock,
		metrics: NoOpMetricsProvider{},
	}
}

// record stores a contained fault.
func (p *probe) record(f Fault) {
	f.At = p.clock.Now()
	p.last.Store(&f)
	p.faults.Load().push(f)
}

type probeKey struct{}

type feedbackKey struct{}

type releaseKey struct{}

// defaultProbe serves feedbacks that run outside a System.
var defaultProbe = newProbe()

func withProbe(ctx context.Context, p *probe) context.Context {
	return context.WithValue(ctx, probeKey{}, p)
}

func probeFrom(ctx context.Context) *probe {
	if p, ok := ctx.Value(probeKey{}).(*probe); ok {
		return p
	}
	return defaultProbe
}

func withFeedback(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, feedbackKey{}, index)
}

// feedbackFrom returns the index of the feedback running under ctx, or -1.
func feedbackFrom(ctx context.Context) int {
	if i, ok := ctx.Value(feedbackKey{}).(int); ok {
		return i
	}
	return -1
}

// withRelease stores the function that stops buffering state for the
// feedback running under ctx.
func withRelease(ctx context.Context, release func()) context.Context {
	return context.WithValue(ctx, releaseKey{}, release)
}

// releaseState tells the loop that the feedback running under ctx will not
// subscribe to state.
func releaseState(ctx context.Context) {
	if release, ok := ctx.Value(releaseKey{}).(func()); ok {
		release()
	}
}
