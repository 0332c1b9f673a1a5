package engine

import "time"

// stateMachine owns PlayerState and exposes only-legal mutators. It is not
// safe for concurrent use: the engine goroutine is its sole owner.
type stateMachine struct {
	state engineState
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: stateStopped{}}
}

func (m *stateMachine) current() engineState { return m.state }

func (m *stateMachine) isStopped() bool    { return isStopped(m.state) }
func (m *stateMachine) isLoading() bool    { return isLoading(m.state) }
func (m *stateMachine) isPlaying() bool    { return isPlaying(m.state) }
func (m *stateMachine) isPaused() bool     { return isPaused(m.state) }
func (m *stateMachine) isEndOfTrack() bool { return isEndOfTrack(m.state) }

// decoder returns the active track's Decoder, or nil outside Playing/Paused.
func (m *stateMachine) decoder() *Decoder {
	switch s := m.state.(type) {
	case statePlaying:
		return &s.track.Decoder
	case statePaused:
		return &s.track.Decoder
	default:
		return nil
	}
}

// streamController returns the active track's StreamController, or nil
// outside Playing/Paused.
func (m *stateMachine) streamController() StreamController {
	switch s := m.state.(type) {
	case statePlaying:
		return s.track.Stream
	case statePaused:
		return s.track.Stream
	default:
		return nil
	}
}

// toLoading transitions to Loading from any state, discarding whatever the
// state machine currently holds (callers are responsible for stopping the
// sink and clearing preload first, per the Load command's slow path).
func (m *stateMachine) toLoading(trackID TrackID, playRequestID uint64, startPlayback bool, positionMs uint32, resultCh chan loadResult, cancel func()) {
	m.state = stateInvalid{}
	m.state = stateLoading{
		trackID:       trackID,
		playRequestID: playRequestID,
		startPlayback: startPlayback,
		positionMs:    positionMs,
		resultCh:      resultCh,
		cancel:        cancel,
	}
}

// toStopped transitions to Stopped from any state.
func (m *stateMachine) toStopped() {
	m.state = stateInvalid{}
	m.state = stateStopped{}
}

// startPlaybackPlaying and startPlaybackPaused construct Playing or Paused
// from a freshly loaded track,
// per §4.4's start_playback helper.
func (m *stateMachine) startPlaybackPlaying(trackID TrackID, playRequestID uint64, track *LoadedTrack, normalisationFactor float64, now time.Time) {
	m.state = stateInvalid{}
	positionMs := track.StreamPositionMs
	m.state = statePlaying{
		trackID:                  trackID,
		playRequestID:            playRequestID,
		track:                    track,
		normalisationFactor:      normalisationFactor,
		reportedNominalStartTime: now.Add(-time.Duration(positionMs) * time.Millisecond),
		suggestedToPreloadNext:   false,
	}
}

func (m *stateMachine) startPlaybackPaused(trackID TrackID, playRequestID uint64, track *LoadedTrack, normalisationFactor float64) {
	m.state = stateInvalid{}
	m.state = statePaused{
		trackID:                trackID,
		playRequestID:          playRequestID,
		track:                  track,
		normalisationFactor:    normalisationFactor,
		suggestedToPreloadNext: false,
	}
}

// playingToPaused implements §4.1's typed mutator. Fatal if called from any
// other state.
func (m *stateMachine) playingToPaused() statePaused {
	s, ok := m.state.(statePlaying)
	if !ok {
		fatalf("playing_to_paused", "called from invalid state %T", m.state)
	}
	m.state = stateInvalid{}
	next := statePaused{
		trackID:                s.trackID,
		playRequestID:          s.playRequestID,
		track:                  s.track,
		normalisationFactor:    s.normalisationFactor,
		suggestedToPreloadNext: s.suggestedToPreloadNext,
	}
	m.state = next
	return next
}

// pausedToPlaying implements §4.1's typed mutator. Fatal if called from any
// other state.
func (m *stateMachine) pausedToPlaying(now time.Time) statePlaying {
	s, ok := m.state.(statePaused)
	if !ok {
		fatalf("paused_to_playing", "called from invalid state %T", m.state)
	}
	m.state = stateInvalid{}
	positionMs := s.track.StreamPositionMs
	next := statePlaying{
		trackID:                  s.trackID,
		playRequestID:            s.playRequestID,
		track:                    s.track,
		normalisationFactor:      s.normalisationFactor,
		reportedNominalStartTime: now.Add(-time.Duration(positionMs) * time.Millisecond),
		suggestedToPreloadNext:   s.suggestedToPreloadNext,
	}
	m.state = next
	return next
}

// playingToEndOfTrack implements §4.1's typed mutator. Fatal if called from
// any other state.
func (m *stateMachine) playingToEndOfTrack() stateEndOfTrack {
	s, ok := m.state.(statePlaying)
	if !ok {
		fatalf("playing_to_end_of_track", "called from invalid state %T", m.state)
	}
	m.state = stateInvalid{}
	next := stateEndOfTrack{
		trackID:       s.trackID,
		playRequestID: s.playRequestID,
		track:         s.track,
	}
	m.state = next
	return next
}

// setPlayingPosition updates stream_position_ms in place on Playing/Paused,
// used after a packet advances position without a full transition.
func (m *stateMachine) setPlayingPosition(positionMs uint32) {
	switch s := m.state.(type) {
	case statePlaying:
		s.track.StreamPositionMs = positionMs
		m.state = s
	case statePaused:
		s.track.StreamPositionMs = positionMs
		m.state = s
	}
}

// setSuggestedToPreloadNext flips the preload hint flag in place.
func (m *stateMachine) setSuggestedToPreloadNext(v bool) {
	switch s := m.state.(type) {
	case statePlaying:
		s.suggestedToPreloadNext = v
		m.state = s
	case statePaused:
		s.suggestedToPreloadNext = v
		m.state = s
	}
}

// touchReportedNominalStartTime re-synchronises the nominal start time used
// for drift detection, without changing variant.
func (m *stateMachine) touchReportedNominalStartTime(positionMs uint32, now time.Time) {
	s, ok := m.state.(statePlaying)
	if !ok {
		return
	}
	s.reportedNominalStartTime = now.Add(-time.Duration(positionMs) * time.Millisecond)
	m.state = s
}
