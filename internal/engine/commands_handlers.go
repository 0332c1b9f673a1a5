package engine

import (
	"context"
	"errors"
	"time"
)

// errUnavailable is substituted for a loader returning (nil, nil), matching
// the spec's Option<LoadedTrack> -> Err(()) mapping.
var errUnavailable = errors.New("engine: track unavailable")

// handleCommand dispatches a single Command to its handler. Called only
// from the run goroutine.
func (e *Engine) handleCommand(cmd Command) {
	switch c := cmd.(type) {
	case cmdLoad:
		e.handleLoad(c)
	case cmdPreload:
		e.handlePreload(c)
	case cmdPlay:
		e.handlePlay()
	case cmdPause:
		e.handlePause()
	case cmdStop:
		e.handleStop()
	case cmdSeek:
		e.handleSeek(c)
	case cmdAddEventSender:
		e.eventSenders = append(e.eventSenders, c.sender)
	case cmdSetSinkEventCallback:
		e.sink.setCallback(c.callback)
	case cmdEmitVolumeSetEvent:
		e.emit(VolumeSetEvent{Volume: c.volume})
	case cmdSetAutoNormaliseAsAlbum:
		e.autoAsAlbum = c.value
	case cmdSkipExplicitContent:
		e.handleSkipExplicitContent()
	}
}

// currentTrackID returns the track id of whatever is currently loaded (any
// state but Stopped), and whether one exists.
func (e *Engine) currentTrackID() (TrackID, bool) {
	switch s := e.machine.current().(type) {
	case stateLoading:
		return s.trackID, true
	case statePlaying:
		return s.trackID, true
	case statePaused:
		return s.trackID, true
	case stateEndOfTrack:
		return s.trackID, true
	default:
		return TrackID{}, false
	}
}

// handleLoad implements §4.4: Changed/Started emission, the four fast
// paths, and the slow path.
func (e *Engine) handleLoad(c cmdLoad) {
	oldID, hadTrack := e.currentTrackID()
	wasStopped := e.machine.isStopped()

	if hadTrack && oldID != c.trackID {
		e.emit(ChangedEvent{OldTrackID: oldID, NewTrackID: c.trackID})
	} else if wasStopped {
		e.emit(StartedEvent{withPlayRequestID{c.playRequestID}, c.trackID, c.positionMs})
	}

	// Fast path A: replay of EndOfTrack's own track.
	if eot, ok := e.machine.current().(stateEndOfTrack); ok && eot.trackID == c.trackID {
		track := eot.track
		e.reseekIfNeeded(track, c.positionMs)
		e.preload = preloadNone{}
		e.stopSinkIfNotGapless()
		e.startPlayback(c.trackID, c.playRequestID, track, c.play)
		return
	}

	// Fast path B: same track currently Playing/Paused.
	if track, ok := e.currentLoadedTrackIfMatches(c.trackID); ok {
		e.reseekIfNeeded(track, c.positionMs)
		e.preload = preloadNone{}
		e.stopSinkIfNotGapless()
		e.startPlayback(c.trackID, c.playRequestID, track, c.play)
		return
	}

	// Fast path C: matching preload Ready.
	if ready, ok := e.preload.(preloadReady); ok && ready.trackID == c.trackID {
		track := ready.track
		e.reseekIfNeeded(track, c.positionMs)
		e.preload = preloadNone{}
		e.stopSinkIfNotGapless()
		e.startPlayback(c.trackID, c.playRequestID, track, c.play)
		return
	}

	// Fast path D: matching preload Loading at position 0.
	if loading, ok := e.preload.(preloadLoading); ok && loading.trackID == c.trackID && c.positionMs == 0 {
		e.preload = preloadNone{}
		e.loadResultCh = loading.resultCh
		e.machine.toLoading(c.trackID, c.playRequestID, c.play, c.positionMs, loading.resultCh, loading.cancel)
		e.emit(LoadingEvent{withPlayRequestID{c.playRequestID}, c.trackID, c.positionMs})
		return
	}

	// Slow path.
	e.sink.ensureStopped(c.play)
	e.preload = preloadNone{}
	e.emit(LoadingEvent{withPlayRequestID{c.playRequestID}, c.trackID, c.positionMs})

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := e.spawnLoader(ctx, c.trackID, c.positionMs)
	e.loadResultCh = resultCh
	e.machine.toLoading(c.trackID, c.playRequestID, c.play, c.positionMs, resultCh, cancel)
}

// currentLoadedTrackIfMatches returns the LoadedTrack behind Playing/Paused
// if its track id matches, repurposing the state's fields without
// transitioning yet (the caller transitions via startPlayback).
func (e *Engine) currentLoadedTrackIfMatches(trackID TrackID) (*LoadedTrack, bool) {
	switch s := e.machine.current().(type) {
	case statePlaying:
		if s.trackID == trackID {
			return s.track, true
		}
	case statePaused:
		if s.trackID == trackID {
			return s.track, true
		}
	}
	return nil, false
}

// reseekIfNeeded implements the position-adjustment shared by Load's fast
// paths A-C: switch to random access, seek if the requested position
// differs, then switch back to streaming.
func (e *Engine) reseekIfNeeded(track *LoadedTrack, positionMs uint32) {
	if track.StreamPositionMs == positionMs {
		return
	}
	if track.Stream != nil {
		track.Stream.SetRandomAccessMode()
	}
	if err := track.Decoder.Seek(positionMs); err == nil {
		track.StreamPositionMs = positionMs
	}
	if track.Stream != nil {
		track.Stream.SetStreamMode()
	}
}

// stopSinkIfNotGapless covers Load's fast paths, which otherwise never touch
// the sink: when gapless is disabled every Load gets a temporary stop so the
// device handle is released between tracks, even when the track itself
// didn't need a fresh loader future.
func (e *Engine) stopSinkIfNotGapless() {
	if !e.cfg.Gapless {
		e.sink.ensureStopped(true)
	}
}

// startPlayback implements §4.4's start_playback helper.
func (e *Engine) startPlayback(trackID TrackID, playRequestID uint64, track *LoadedTrack, play bool) {
	resolvedType := resolveType(e.cfg.Normalisation.Type, e.autoAsAlbum)
	factor := e.norm.Factor(resolvedType, track.Norm)

	now := time.Now()
	if play {
		e.sink.ensureRunning()
		e.machine.startPlaybackPlaying(trackID, playRequestID, track, factor, now)
		e.emit(PlayingEvent{withPlayRequestID{playRequestID}, trackID, track.StreamPositionMs, track.DurationMs})
	} else {
		e.sink.ensureStopped(false)
		e.machine.startPlaybackPaused(trackID, playRequestID, track, factor)
		e.emit(PausedEvent{withPlayRequestID{playRequestID}, trackID, track.StreamPositionMs, track.DurationMs})
	}
}

// handlePreload implements §4.5.
func (e *Engine) handlePreload(c cmdPreload) {
	switch p := e.preload.(type) {
	case preloadLoading:
		if p.trackID == c.trackID {
			return
		}
		if p.cancel != nil {
			p.cancel()
		}
	case preloadReady:
		if p.trackID == c.trackID {
			return
		}
	}

	if id, ok := e.currentTrackID(); ok && id == c.trackID && !e.machine.isLoading() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := e.spawnLoader(ctx, c.trackID, 0)
	e.preloadResultCh = resultCh
	e.preload = preloadLoading{trackID: c.trackID, resultCh: resultCh, cancel: cancel}
}

// handlePlay implements the Play command.
func (e *Engine) handlePlay() {
	if !e.machine.isPaused() {
		return // logged error in production; no state change.
	}
	next := e.machine.pausedToPlaying(time.Now())
	e.sink.ensureRunning()
	e.emit(PlayingEvent{withPlayRequestID{next.playRequestID}, next.trackID, next.track.StreamPositionMs, next.track.DurationMs})
}

// handlePause implements the Pause command.
func (e *Engine) handlePause() {
	if !e.machine.isPlaying() {
		return
	}
	next := e.machine.playingToPaused()
	e.sink.ensureStopped(false)
	e.emit(PausedEvent{withPlayRequestID{next.playRequestID}, next.trackID, next.track.StreamPositionMs, next.track.DurationMs})
}

// handleStop implements the Stop command.
func (e *Engine) handleStop() {
	if e.machine.isStopped() {
		return
	}
	id, _ := e.currentTrackID()
	var rid uint64
	switch s := e.machine.current().(type) {
	case stateLoading:
		rid = s.playRequestID
	case statePlaying:
		rid = s.playRequestID
	case statePaused:
		rid = s.playRequestID
	case stateEndOfTrack:
		rid = s.playRequestID
	}
	e.sink.ensureStopped(false)
	e.machine.toStopped()
	e.emit(StoppedEvent{withPlayRequestID{rid}, id})
}

// handleSeek implements §4.6.
func (e *Engine) handleSeek(c cmdSeek) {
	stream := e.machine.streamController()
	dec := e.machine.decoder()

	if stream != nil {
		stream.SetRandomAccessMode()
	}

	if dec != nil {
		if err := dec.Seek(c.positionMs); err == nil {
			e.machine.setPlayingPosition(c.positionMs)
		}
	}

	if stream != nil {
		stream.SetStreamMode()
		e.prefetchAfterSeek(stream)
	}

	now := time.Now()
	switch s := e.machine.current().(type) {
	case statePlaying:
		e.machine.touchReportedNominalStartTime(s.track.StreamPositionMs, now)
		cur := e.machine.current().(statePlaying)
		e.emit(PlayingEvent{withPlayRequestID{cur.playRequestID}, cur.trackID, cur.track.StreamPositionMs, cur.track.DurationMs})
	case statePaused:
		e.emit(PausedEvent{withPlayRequestID{s.playRequestID}, s.trackID, s.track.StreamPositionMs, s.track.DurationMs})
	}
}

// prefetchAfterSeek implements §4.6 step 4's non-blocking then blocking
// fetch-ahead.
func (e *Engine) prefetchAfterSeek(stream StreamController) {
	bytesPerSecond := 0
	switch s := e.machine.current().(type) {
	case statePlaying:
		bytesPerSecond = s.track.BytesPerSecond
	case statePaused:
		bytesPerSecond = s.track.BytesPerSecond
	}
	if bytesPerSecond <= 0 {
		return
	}

	ping := stream.PingTime()

	stream.FetchNext(e.duringPlaybackFetchBytes(ping, bytesPerSecond))

	beforeRT := e.cfg.Prefetch.BeforePlaybackRoundtrips * ping.Seconds() * float64(bytesPerSecond)
	beforeFixed := e.cfg.Prefetch.BeforePlayback.Seconds() * float64(bytesPerSecond)
	beforeBytes := maxFloat(beforeRT, beforeFixed)
	_ = stream.FetchNextBlocking(context.Background(), int(beforeBytes))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// duringPlaybackFetchBytes computes the fetch-ahead budget used both right
// after a seek and continuously during ordinary streaming-mode playback.
func (e *Engine) duringPlaybackFetchBytes(ping time.Duration, bytesPerSecond int) int {
	duringRT := e.cfg.Prefetch.DuringPlaybackRoundtrips * ping.Seconds() * float64(bytesPerSecond)
	duringFixed := e.cfg.Prefetch.DuringPlayback.Seconds() * float64(bytesPerSecond)
	return int(maxFloat(duringRT, duringFixed))
}

// handleSkipExplicitContent implements the SkipExplicitContent command.
func (e *Engine) handleSkipExplicitContent() {
	switch s := e.machine.current().(type) {
	case statePlaying:
		if s.track.IsExplicit {
			e.emit(EndOfTrackEvent{withPlayRequestID{s.playRequestID}, s.trackID})
		}
	case statePaused:
		if s.track.IsExplicit {
			e.emit(EndOfTrackEvent{withPlayRequestID{s.playRequestID}, s.trackID})
		}
	}
}
