package engine

// Event is the sealed sum type of everything the engine can emit. Event
// fan-out is non-blocking: a dead subscriber (its channel buffer full)
// is removed on the first failed send; ordering is preserved for every
// surviving subscriber.
type Event interface {
	isEngineEvent()
	// PlayRequestID returns the play_request_id this event refers to, and
	// false for events that are not tied to one (Changed, Preloading,
	// VolumeSet).
	PlayRequestID() (uint64, bool)
}

type withPlayRequestID struct{ id uint64 }

func (w withPlayRequestID) PlayRequestID() (uint64, bool) { return w.id, true }

type withoutPlayRequestID struct{}

func (withoutPlayRequestID) PlayRequestID() (uint64, bool) { return 0, false }

// StoppedEvent fires when the player is stopped.
type StoppedEvent struct {
	withPlayRequestID
	TrackID TrackID
}

func (StoppedEvent) isEngineEvent() {}

// StartedEvent fires when the engine starts working on playback while
// previously Stopped.
type StartedEvent struct {
	withPlayRequestID
	TrackID    TrackID
	PositionMs uint32
}

func (StartedEvent) isEngineEvent() {}

// ChangedEvent fires instead of Started when a track was already loaded.
type ChangedEvent struct {
	withoutPlayRequestID
	OldTrackID TrackID
	NewTrackID TrackID
}

func (ChangedEvent) isEngineEvent() {}

// LoadingEvent fires while a Load is delayed on the loader.
type LoadingEvent struct {
	withPlayRequestID
	TrackID    TrackID
	PositionMs uint32
}

func (LoadingEvent) isEngineEvent() {}

// PreloadingEvent fires when the preload slot's loader has finished and the
// preloaded track is ready.
type PreloadingEvent struct {
	withoutPlayRequestID
	TrackID TrackID
}

func (PreloadingEvent) isEngineEvent() {}

// PlayingEvent fires at the start of playback and whenever position must be
// re-synchronised (seek, unpause, drift correction).
type PlayingEvent struct {
	withPlayRequestID
	TrackID    TrackID
	PositionMs uint32
	DurationMs uint32
}

func (PlayingEvent) isEngineEvent() {}

// PausedEvent fires when the engine enters Paused.
type PausedEvent struct {
	withPlayRequestID
	TrackID    TrackID
	PositionMs uint32
	DurationMs uint32
}

func (PausedEvent) isEngineEvent() {}

// TimeToPreloadNextTrackEvent fires at most once per play_request_id, when
// the current track is within 30s of ending and the stream has buffered to
// the end.
type TimeToPreloadNextTrackEvent struct {
	withPlayRequestID
	TrackID TrackID
}

func (TimeToPreloadNextTrackEvent) isEngineEvent() {}

// EndOfTrackEvent fires when the current track finishes or its decode
// fails irrecoverably.
type EndOfTrackEvent struct {
	withPlayRequestID
	TrackID TrackID
}

func (EndOfTrackEvent) isEngineEvent() {}

// UnavailableEvent fires when the loader could not resolve a track.
type UnavailableEvent struct {
	withPlayRequestID
	TrackID TrackID
}

func (UnavailableEvent) isEngineEvent() {}

// VolumeSetEvent fires in response to EmitVolumeSetEvent commands.
type VolumeSetEvent struct {
	withoutPlayRequestID
	Volume uint16
}

func (VolumeSetEvent) isEngineEvent() {}

const eventSendBuffer = 64

// eventSender wraps one subscriber's channel. Non-blocking sends drop the
// event rather than block the engine goroutine.
type eventSender struct {
	ch chan Event
}

func newEventSender() *eventSender {
	return &eventSender{ch: make(chan Event, eventSendBuffer)}
}

// send attempts a non-blocking delivery and reports false if the
// subscriber's buffer was full, signalling the caller to drop it.
func (s *eventSender) send(e Event) bool {
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}
