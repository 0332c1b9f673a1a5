package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// preloadBeforeEndMs is the position-to-end threshold (in ms) at which the
// engine suggests preloading the next track, per §4.3 step 5.
const preloadBeforeEndMs = 30_000

// positionDriftMs is the "is position drift too large" heuristic threshold
// from §4.3 step 4.
const positionDriftMs = 1_000

// PrefetchConfig configures the Seek command's read-ahead behaviour
// (§4.6 step 4).
type PrefetchConfig struct {
	DuringPlaybackRoundtrips float64
	DuringPlayback           time.Duration
	BeforePlaybackRoundtrips float64
	BeforePlayback           time.Duration
}

// DefaultPrefetchConfig mirrors librespot's read-ahead tuning.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		DuringPlaybackRoundtrips: 2,
		DuringPlayback:           1 * time.Second,
		BeforePlaybackRoundtrips: 4,
		BeforePlayback:           2 * time.Second,
	}
}

// Config bundles everything the Engine needs at construction time.
type Config struct {
	Normalisation NormalisationConfig
	Prefetch      PrefetchConfig
	// Gapless, when false, stops the sink (temporarily) before every Load.
	Gapless bool
}

// Engine is the cooperative scheduler described in §4.3. It is driven by a
// single goroutine started by Run; every exported method communicates with
// that goroutine exclusively through the command channel.
type Engine struct {
	cfg    Config
	loader TrackLoader

	commands chan Command

	playRequestSeq atomic.Uint64

	loadWG sync.WaitGroup

	// state owned exclusively by the run goroutine below this point.
	machine      *stateMachine
	preload      playerPreload
	sink         *sinkManager
	converter    Converter
	norm         *Normaliser
	eventSenders []*eventSender
	autoAsAlbum  bool

	loadResultCh    chan loadResult
	preloadResultCh chan loadResult
}

// New constructs an Engine. Call Run to start its scheduler goroutine.
func New(cfg Config, loader TrackLoader, sink Sink, converter Converter) *Engine {
	if converter == nil {
		converter = identityConverter{}
	}
	return &Engine{
		cfg:       cfg,
		loader:    loader,
		commands:  make(chan Command, 32),
		machine:   newStateMachine(),
		preload:   preloadNone{},
		sink:      newSinkManager(sink),
		converter: converter,
		norm:      NewNormaliser(cfg.Normalisation),
	}
}

// NextPlayRequestID returns a fresh, monotonically increasing id. Shared
// across every caller into the Engine handle, per the GLOSSARY.
func (e *Engine) NextPlayRequestID() uint64 {
	return e.playRequestSeq.Add(1)
}

// --- public command-issuing API -------------------------------------------

func (e *Engine) Load(trackID TrackID, playRequestID uint64, play bool, positionMs uint32) {
	e.send(cmdLoad{trackID: trackID, playRequestID: playRequestID, play: play, positionMs: positionMs})
}

func (e *Engine) Preload(trackID TrackID) {
	e.send(cmdPreload{trackID: trackID})
}

func (e *Engine) Play()  { e.send(cmdPlay{}) }
func (e *Engine) Pause() { e.send(cmdPause{}) }
func (e *Engine) Stop()  { e.send(cmdStop{}) }

func (e *Engine) Seek(positionMs uint32) {
	e.send(cmdSeek{positionMs: positionMs})
}

// AddEventSender registers a new subscriber and returns its receive-only
// channel.
func (e *Engine) AddEventSender() <-chan Event {
	s := newEventSender()
	e.send(cmdAddEventSender{sender: s})
	return s.ch
}

func (e *Engine) SetSinkEventCallback(cb func(SinkStatus)) {
	e.send(cmdSetSinkEventCallback{callback: cb})
}

func (e *Engine) EmitVolumeSetEvent(volume uint16) {
	e.send(cmdEmitVolumeSetEvent{volume: volume})
}

func (e *Engine) SetAutoNormaliseAsAlbum(v bool) {
	e.send(cmdSetAutoNormaliseAsAlbum{value: v})
}

func (e *Engine) SkipExplicitContent() {
	e.send(cmdSkipExplicitContent{})
}

func (e *Engine) send(cmd Command) {
	e.commands <- cmd
}

// --- scheduler loop ---------------------------------------------------

// Run drives the engine until ctx is cancelled or the command channel is
// closed (via Close). It recovers a FatalError panic and returns it without
// logging it (any other panic is re-raised); callers are expected to
// terminate the process on a non-nil return, per §7's "process-exit" fatal
// taxonomy.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()

	for {
		progressed, done := e.step(ctx)
		if done {
			e.shutdown()
			return nil
		}
		if !progressed {
			if e.idleWait(ctx) {
				e.shutdown()
				return nil
			}
		}
	}
}

// Close stops issuing new commands and signals Run to exit once drained.
func (e *Engine) Close() {
	close(e.commands)
}

func (e *Engine) shutdown() {
	e.loadWG.Wait()
}

// step performs one non-blocking scheduling pass: drain a ready command,
// poll the loading/preload futures, and if Playing, pull and play one
// packet. Returns progressed=true if any of those did work, done=true if
// the engine must terminate.
func (e *Engine) step(ctx context.Context) (progressed, done bool) {
	select {
	case <-ctx.Done():
		return false, true
	default:
	}

	select {
	case cmd, ok := <-e.commands:
		if !ok {
			return false, true
		}
		e.handleCommand(cmd)
		return true, false
	default:
	}

	if e.machine.isLoading() {
		if e.pollLoading() {
			return true, false
		}
	}

	if _, ok := e.preload.(preloadLoading); ok {
		if e.pollPreload() {
			return true, false
		}
	}

	if e.machine.isPlaying() {
		e.ensureSinkRunningAndPullPacket()
		e.maybeEmitPreloadHint()
		return true, false
	}

	return false, false
}

// idleWait blocks until a command arrives, a loader future resolves, or ctx
// is cancelled. Used only when the engine is not Playing and nothing
// advanced this pass, to avoid busy-spinning — this is the cooperative
// task's suspension point.
func (e *Engine) idleWait(ctx context.Context) (done bool) {
	select {
	case <-ctx.Done():
		return true
	case cmd, ok := <-e.commands:
		if !ok {
			return true
		}
		e.handleCommand(cmd)
	case res, ok := <-e.loadResultCh:
		if ok {
			e.handleLoadResult(res)
		}
	case res, ok := <-e.preloadResultCh:
		if ok {
			e.handlePreloadResult(res)
		}
	}
	return false
}

func (e *Engine) pollLoading() bool {
	select {
	case res := <-e.loadResultCh:
		e.handleLoadResult(res)
		return true
	default:
		return false
	}
}

func (e *Engine) pollPreload() bool {
	select {
	case res := <-e.preloadResultCh:
		e.handlePreloadResult(res)
		return true
	default:
		return false
	}
}

func (e *Engine) handleLoadResult(res loadResult) {
	loading, ok := e.machine.current().(stateLoading)
	if !ok {
		return
	}
	if res.err != nil {
		e.emit(UnavailableEvent{withPlayRequestID{loading.playRequestID}, loading.trackID})
		// Per the Open Question in DESIGN.md: the engine stays in Loading;
		// only a subsequent external command will move it out.
		return
	}
	e.loadResultCh = nil
	e.startPlayback(loading.trackID, loading.playRequestID, res.track, loading.startPlayback)
}

func (e *Engine) handlePreloadResult(res loadResult) {
	loading, ok := e.preload.(preloadLoading)
	if !ok {
		return
	}
	if res.err != nil {
		e.preload = preloadNone{}
		e.preloadResultCh = nil
		if e.machine.isPlaying() || e.machine.isPaused() {
			e.emit(UnavailableEvent{withPlayRequestID{0}, loading.trackID})
		}
		return
	}
	e.preload = preloadReady{trackID: loading.trackID, track: res.track}
	e.preloadResultCh = nil
	e.emit(PreloadingEvent{TrackID: loading.trackID})
}

// ensureSinkRunningAndPullPacket implements §4.3 step 4.
func (e *Engine) ensureSinkRunningAndPullPacket() {
	e.sink.ensureRunning()

	playing := e.machine.current().(statePlaying)
	dec := playing.track.Decoder

	posMs, packet, err := dec.NextPacket()
	if err != nil {
		e.emit(EndOfTrackEvent{withPlayRequestID{playing.playRequestID}, playing.trackID})
		return
	}

	if packet.Passthrough {
		e.machine.setPlayingPosition(posMs)
		e.continuePrefetch(playing.track)
		return
	}

	if packet.Empty() {
		// Ok(None): end of stream.
		eot := e.machine.playingToEndOfTrack()
		e.emit(EndOfTrackEvent{withPlayRequestID{eot.playRequestID}, eot.trackID})
		return
	}

	now := time.Now()
	driftMs := int64(now.Sub(playing.reportedNominalStartTime).Milliseconds()) - int64(posMs)
	if driftMs < 0 {
		driftMs = -driftMs
	}
	if driftMs > positionDriftMs {
		e.machine.touchReportedNominalStartTime(posMs, now)
		e.emit(PlayingEvent{
			withPlayRequestID{playing.playRequestID},
			playing.trackID,
			posMs,
			playing.track.DurationMs,
		})
	}

	e.machine.setPlayingPosition(posMs)
	e.continuePrefetch(playing.track)

	// normalisationFactor was resolved once in startPlayback; Apply handles
	// both the static factor and, for Dynamic, the stateful limiter.
	e.norm.Apply(packet.Samples, playing.normalisationFactor)
	e.sink.write(packet.Samples, e.converter)
}

// continuePrefetch keeps the stream's fetched-ahead range advancing during
// ordinary streaming-mode playback, not only right after a seek, so
// RangeToEndAvailable can ever become true for a track played start to end.
func (e *Engine) continuePrefetch(track *LoadedTrack) {
	if track.Stream == nil || track.BytesPerSecond <= 0 {
		return
	}
	track.Stream.FetchNext(e.duringPlaybackFetchBytes(track.Stream.PingTime(), track.BytesPerSecond))
}

// maybeEmitPreloadHint implements §4.3 step 5.
func (e *Engine) maybeEmitPreloadHint() {
	switch s := e.machine.current().(type) {
	case statePlaying:
		if s.suggestedToPreloadNext {
			return
		}
		if s.track.DurationMs < s.track.StreamPositionMs {
			return
		}
		remaining := s.track.DurationMs - s.track.StreamPositionMs
		if remaining < preloadBeforeEndMs && s.track.Stream != nil && s.track.Stream.RangeToEndAvailable() {
			e.machine.setSuggestedToPreloadNext(true)
			e.emit(TimeToPreloadNextTrackEvent{withPlayRequestID{s.playRequestID}, s.trackID})
		}
	case statePaused:
		if s.suggestedToPreloadNext {
			return
		}
		if s.track.DurationMs < s.track.StreamPositionMs {
			return
		}
		remaining := s.track.DurationMs - s.track.StreamPositionMs
		if remaining < preloadBeforeEndMs && s.track.Stream != nil && s.track.Stream.RangeToEndAvailable() {
			e.machine.setSuggestedToPreloadNext(true)
			e.emit(TimeToPreloadNextTrackEvent{withPlayRequestID{s.playRequestID}, s.trackID})
		}
	}
}

// emit fans an event out to every subscriber, pruning dead ones in place
// without disturbing ordering for survivors.
func (e *Engine) emit(ev Event) {
	recordEventMetrics(ev)

	alive := e.eventSenders[:0]
	for _, s := range e.eventSenders {
		if s.send(ev) {
			alive = append(alive, s)
		}
	}
	e.eventSenders = alive
}

// spawnLoader starts a loader goroutine for trackID at positionMs and
// returns the one-shot result channel. The goroutine is tracked in loadWG
// so Run's shutdown can await it.
func (e *Engine) spawnLoader(ctx context.Context, trackID TrackID, positionMs uint32) chan loadResult {
	ch := make(chan loadResult, 1)
	e.loadWG.Add(1)
	go func() {
		defer e.loadWG.Done()
		track, err := e.loader.Load(ctx, trackID, positionMs)
		if err != nil || track == nil {
			if err == nil {
				err = errUnavailable
			}
			ch <- loadResult{err: err}
			return
		}
		ch <- loadResult{track: track}
	}()
	return ch
}
