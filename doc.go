/*
Package reflux provides reactive feedback loops: state machines whose state
is folded from events by a pure reducer while feedbacks observe the state and
emit further events.

A loop is built from three pieces. The reducer is a total function that turns
the current state and one event into the next state. Feedbacks are functions
from the state stream to an event stream. The System ties them together: every
event from every feedback enters a single queue and is reduced one at a time
in arrival order, and every new state is delivered to all feedbacks and
subscribers before the next event is reduced.

# Basic Usage

	type State struct{ Count int }
	type Event int

	sys := reflux.New(State{}, func(s State, e Event) State {
	    s.Count += int(e)
	    return s
	})

	states := sys.Run(
	    reflux.Source[State](reflux.Just[Event](1, 2, 3)),
	    reflux.Observe[State, Event](func(s State) { log.Println(s.Count) }),
	)

	err := states(ctx, func(s State) { render(s) })

Nothing runs until the returned stream is subscribed. Subscribers share one
loop and the latest state is replayed to late joiners. Canceling the last
subscription stops the loop and its feedbacks.

# Effects

React and ReactSet turn state into running side effects. A projection picks
the request the current state asks for, and the effect for that request runs
until the projection changes its mind:

	search := reflux.React(
	    func(s State) (string, bool) { return s.Query, s.Query != "" },
	    reflux.Call(fetch,
	        reflux.WithTimeout[string, Event](2*time.Second),
	        reflux.WithBackoff[string, Event](3, 100*time.Millisecond),
	    ),
	)

An equal request on consecutive states leaves the effect running. A changed
or absent request cancels it, and nothing it emits afterwards is delivered.
Call builds effects from request/response functions through a pipz pipeline
so retries, timeouts, fallbacks and circuit breakers compose as options.

# Failure Containment

A feedback or effect that fails or panics is contained: it stops producing
events, the fault is recorded, and the rest of the loop keeps running.

	sys.ErrorHistorySize(10)
	...
	if err := sys.LastError(); err != nil {
	    var f reflux.Fault
	    errors.As(err, &f)
	    log.Printf("%s failed: %v", f.Origin, f.Err)
	}

A reducer panic is the only fatal failure. The loop ends and its subscribers
receive a ReducerPanicError.

# Scheduling

A Driver delivers every state on one Scheduler, such as an event loop, and
degrades failures to completion:

	loop, _ := eventloop.New()
	go loop.Run(ctx)
	d := reflux.NewDriver(reflux.LoopScheduler{Loop: loop}, State{}, reduce)

# Bindings

Bind attaches an owner object weakly. Its subscriptions run while the owner
is reachable, and the binding releases itself once the owner is collected.

# Sources

Watch and Decode adapt a Watcher of raw payloads into events. Payloads are
decoded with a Codec, checked against `validate` struct tags and the
Validator interface, and rejected payloads are recorded as source faults.
The file, redis, postgres, etcd and nats subpackages provide watchers.

# Observability

Loops emit capitan signals for their lifecycle, for every reduced event, and
for every request, effect and contained fault. A MetricsProvider receives the
same information as counters and timings, and the logging subpackage writes
the signals to a logiface logger.
*/
package reflux
