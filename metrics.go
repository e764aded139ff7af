package reflux

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key loop events.
// Callbacks may be invoked from several goroutines at once.
type MetricsProvider interface {
	// OnEventReduced is called after every reducer application with the time
	// the reducer took and the number of events still queued.
	OnEventReduced(duration time.Duration, pending int)

	// OnFeedbackFailed is called when a feedback's event stream fails.
	OnFeedbackFailed(feedback int)

	// OnEffectStarted is called when an effect is started for a new request.
	OnEffectStarted()

	// OnEffectCanceled is called when a request ends and its effect is canceled.
	OnEffectCanceled()

	// OnEffectFailed is called when an effect fails.
	OnEffectFailed()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnEventReduced(_ time.Duration, _ int) {}
func (NoOpMetricsProvider) OnFeedbackFailed(_ int)                {}
func (NoOpMetricsProvider) OnEffectStarted()                      {}
func (NoOpMetricsProvider) OnEffectCanceled()                     {}
func (NoOpMetricsProvider) OnEffectFailed()                       {}
