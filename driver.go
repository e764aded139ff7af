package reflux

// Driver is a System whose state is always delivered on one Scheduler and
// whose failures degrade to completion.
//
// Every subscriber and every feedback receives state on the scheduler. A
// failing feedback completes instead of being recorded as a fault, and the
// public state stream completes instead of failing. Feedbacks written for a
// System work unchanged.
//
// Example:
//
//	loop, _ := eventloop.New()
//	go loop.Run(ctx)
//
//	d := reflux.NewDriver(reflux.LoopScheduler{Loop: loop}, State{}, reduce)
//	states := d.Run(search)
type Driver[S, E any] struct {
	system *System[S, E]
	sched  Scheduler
}

// NewDriver creates a Driver delivering on sched.
func NewDriver[S, E any](sched Scheduler, initial S, reduce func(S, E) S) *Driver[S, E] {
	return &Driver[S, E]{system: New(initial, reduce), sched: sched}
}

// System returns the underlying System for instance configuration such as
// Metrics or OnStop. Feedbacks attached through it are not rescheduled.
func (d *Driver[S, E]) System() *System[S, E] {
	return d.system
}

// Concat returns a Driver with fb appended to its feedbacks.
func (d *Driver[S, E]) Concat(fb Feedback[S, E]) *Driver[S, E] {
	return &Driver[S, E]{system: d.system.Concat(d.drive(fb)), sched: d.sched}
}

// Apply returns a Driver whose runner is wrapped by mw.
func (d *Driver[S, E]) Apply(mw Middleware[S, E]) *Driver[S, E] {
	return &Driver[S, E]{system: d.system.Apply(mw), sched: d.sched}
}

// Run returns the live state stream, delivered on the scheduler.
func (d *Driver[S, E]) Run(feedbacks ...Feedback[S, E]) Stream[S] {
	driven := make([]Feedback[S, E], len(feedbacks))
	for i, fb := range feedbacks {
		driven[i] = d.drive(fb)
	}
	return CompleteOnError(ObserveOn(d.system.Run(driven...), d.sched))
}

// drive reschedules a feedback's input onto the scheduler and degrades its
// failures to completion.
func (d *Driver[S, E]) drive(fb Feedback[S, E]) Feedback[S, E] {
	return func(state Stream[S]) Stream[E] {
		events := fb(CompleteOnError(ObserveOn(state, d.sched)))
		if events == nil {
			return Empty[E]()
		}
		return CompleteOnError(events)
	}
}
