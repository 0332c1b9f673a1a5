package engine

import "github.com/waves-audio/engine/internal/metrics"

// recordEventMetrics maps an emitted Event onto the Prometheus counters a
// deployment scrapes for transition/error visibility. Kept separate from
// emit so engine_test.go's event-ordering assertions don't need a
// Prometheus registry in scope.
func recordEventMetrics(ev Event) {
	switch ev.(type) {
	case StartedEvent, ChangedEvent:
		metrics.EngineTransitions.WithLabelValues("Playing").Inc()
	case LoadingEvent:
		metrics.EngineTransitions.WithLabelValues("Loading").Inc()
	case PlayingEvent:
		metrics.EngineTransitions.WithLabelValues("Playing").Inc()
	case PausedEvent:
		metrics.EngineTransitions.WithLabelValues("Paused").Inc()
	case StoppedEvent:
		metrics.EngineTransitions.WithLabelValues("Stopped").Inc()
	case EndOfTrackEvent:
		metrics.EngineTransitions.WithLabelValues("EndOfTrack").Inc()
	case UnavailableEvent:
		metrics.EngineTransitions.WithLabelValues("EndOfTrack").Inc()
		metrics.DecodeErrorsTotal.WithLabelValues("unavailable").Inc()
	}
}
