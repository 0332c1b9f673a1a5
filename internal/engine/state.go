package engine

import "time"

// engineState is the sealed sum type behind PlayerState. Go has no
// move-semantics primitive for "consume this variant, reconstruct the
// next", so a mutator takes ownership by first swapping the state field to
// stateInvalid{}, destructuring the old value it captured by copy, building
// the new variant, and writing it back before returning. Invalid must never
// be observed outside that single critical section; observing it from
// anywhere else is a programmer bug (see fatal.go).
type engineState interface {
	isEngineState()
}

type stateInvalid struct{}

func (stateInvalid) isEngineState() {}

type stateStopped struct{}

func (stateStopped) isEngineState() {}

type stateLoading struct {
	trackID       TrackID
	playRequestID uint64
	startPlayback bool
	positionMs    uint32
	resultCh      chan loadResult
	cancel        func()
}

func (stateLoading) isEngineState() {}

type statePlaying struct {
	trackID                  TrackID
	playRequestID            uint64
	track                    *LoadedTrack
	normalisationFactor      float64
	reportedNominalStartTime time.Time
	suggestedToPreloadNext   bool
}

func (statePlaying) isEngineState() {}

type statePaused struct {
	trackID                TrackID
	playRequestID          uint64
	track                  *LoadedTrack
	normalisationFactor    float64
	suggestedToPreloadNext bool
}

func (statePaused) isEngineState() {}

type stateEndOfTrack struct {
	trackID       TrackID
	playRequestID uint64
	track         *LoadedTrack
}

func (stateEndOfTrack) isEngineState() {}

// isStopped, isLoading, isPlaying, isPaused, isEndOfTrack are the
// state-inspecting predicates from PlayerStateMachine.
func isStopped(s engineState) bool {
	_, ok := s.(stateStopped)
	return ok
}

func isLoading(s engineState) bool {
	_, ok := s.(stateLoading)
	return ok
}

func isPlaying(s engineState) bool {
	_, ok := s.(statePlaying)
	return ok
}

func isPaused(s engineState) bool {
	_, ok := s.(statePaused)
	return ok
}

func isEndOfTrack(s engineState) bool {
	_, ok := s.(stateEndOfTrack)
	return ok
}

// loadResult is delivered through the one-shot channel a loader goroutine
// uses to hand its outcome back to the engine.
type loadResult struct {
	track *LoadedTrack
	err   error
}
