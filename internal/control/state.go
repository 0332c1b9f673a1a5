// Package control implements the JSON-RPC 2.0 control facade: an HTTP+
// WebSocket front door that mirrors engine play state under a read-write
// lock and translates getStatus/setPlay/setVolume/... requests into engine
// commands, the way the teacher's playback.serviceImpl mirrors playback
// state for its own subscribers.
package control

import (
	"sync"

	"github.com/waves-audio/engine/internal/engine"
	"github.com/waves-audio/engine/internal/remote"
)

// PlayState is the textual play/pause/stop state exposed over JSON-RPC.
type PlayState string

const (
	PlayStatePlaying PlayState = "Playing"
	PlayStatePaused  PlayState = "Paused"
	PlayStateStopped PlayState = "Stopped"
)

// Track is the lightweight track mirror exposed over JSON-RPC and MPRIS.
// It carries only what engine.Event payloads actually expose.
type Track struct {
	ID         string `json:"id"`
	DurationMs uint32 `json:"durationMs"`
	PositionMs uint32 `json:"positionMs"`
}

// PlayerState is the facade's locally held copy of {track, playing, volume,
// shuffle}, updated from engine events and read back by getStatus.
type PlayerState struct {
	Track   *Track    `json:"track"`
	Playing PlayState `json:"playing"`
	Volume  uint16    `json:"volume"`
	Shuffle bool      `json:"shuffle"`
}

// Mirror holds the facade's PlayerState behind a RWMutex, written from the
// engine event loop and read concurrently by JSON-RPC request handlers.
type Mirror struct {
	mu    sync.RWMutex
	state PlayerState
}

// NewMirror returns a Mirror with a stopped, trackless initial state.
func NewMirror() *Mirror {
	return &Mirror{state: PlayerState{Playing: PlayStateStopped}}
}

// Snapshot returns a copy of the current state.
func (m *Mirror) Snapshot() PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// RemoteSnapshot adapts Snapshot to remote.StateReader, so the same Mirror
// backs both the JSON-RPC facade and an MPRIS adapter.
func (m *Mirror) RemoteSnapshot() remote.Snapshot {
	s := m.Snapshot()
	snap := remote.Snapshot{
		Volume:  s.Volume,
		Shuffle: s.Shuffle,
		Playing: s.Playing == PlayStatePlaying,
		Paused:  s.Playing == PlayStatePaused,
	}
	if s.Track != nil {
		snap.TrackID = s.Track.ID
		snap.DurationMs = s.Track.DurationMs
		snap.PositionMs = s.Track.PositionMs
	}
	return snap
}

func (m *Mirror) setVolume(v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Volume = v
}

func (m *Mirror) setShuffle(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Shuffle = on
}

// ApplyEvent updates the mirror from an engine.Event and reports the
// notifications (zero or more) that should be broadcast to WebSocket
// subscribers as a result.
func (m *Mirror) ApplyEvent(ev engine.Event) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e := ev.(type) {
	case engine.StartedEvent:
		m.state.Track = &Track{ID: e.TrackID.String(), PositionMs: e.PositionMs}
		m.state.Playing = PlayStatePlaying
		return []Notification{notifyOnNewTrack(*m.state.Track), notifyOnPlay()}

	case engine.ChangedEvent:
		if m.state.Track == nil {
			m.state.Track = &Track{}
		}
		m.state.Track.ID = e.NewTrackID.String()
		return []Notification{notifyOnNewTrack(*m.state.Track)}

	case engine.PlayingEvent:
		m.state.Track = &Track{ID: e.TrackID.String(), PositionMs: e.PositionMs, DurationMs: e.DurationMs}
		m.state.Playing = PlayStatePlaying
		return []Notification{notifyOnPlay()}

	case engine.PausedEvent:
		m.state.Track = &Track{ID: e.TrackID.String(), PositionMs: e.PositionMs, DurationMs: e.DurationMs}
		m.state.Playing = PlayStatePaused
		return []Notification{notifyOnPause()}

	case engine.StoppedEvent:
		m.state.Playing = PlayStateStopped
		return []Notification{notifyOnStop()}

	case engine.EndOfTrackEvent, engine.UnavailableEvent:
		m.state.Playing = PlayStateStopped
		return []Notification{notifyOnStop()}

	case engine.VolumeSetEvent:
		m.state.Volume = e.Volume
		return []Notification{notifyOnVolumeChange(e.Volume)}

	case engine.LoadingEvent, engine.PreloadingEvent, engine.TimeToPreloadNextTrackEvent:
		return nil
	}
	return nil
}
