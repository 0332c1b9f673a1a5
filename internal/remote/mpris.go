//go:build linux

package remote

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
)

// MPRISAdapter publishes play state over the MPRIS D-Bus interface and turns
// incoming media-key commands into engine/control calls.
type MPRISAdapter struct {
	server *server.Server
}

// NewMPRISAdapter starts a D-Bus server exposing cmds/ctrl/state as MPRIS2.
func NewMPRISAdapter(cmds EngineCommands, ctrl Control, state StateReader) (*MPRISAdapter, error) {
	a := &MPRISAdapter{}
	root := &mprisRoot{}
	player := &mprisPlayer{cmds: cmds, ctrl: ctrl, state: state}

	a.server = server.NewServer("waves-engine", root, player)
	go func() {
		_ = a.server.Listen()
	}()
	return a, nil
}

// Close stops the D-Bus server.
func (a *MPRISAdapter) Close() error {
	return a.server.Stop()
}

type mprisRoot struct{}

func (r *mprisRoot) Raise() error { return nil }
func (r *mprisRoot) Quit() error  { return nil }

func (r *mprisRoot) CanQuit() (bool, error)  { return false, nil }
func (r *mprisRoot) CanRaise() (bool, error) { return false, nil }

func (r *mprisRoot) HasTrackList() (bool, error) { return false, nil }

func (r *mprisRoot) Identity() (string, error) { return "Waves Engine", nil }

//nolint:revive // method name required by the generated interface.
func (r *mprisRoot) SupportedUriSchemes() ([]string, error) { return []string{}, nil }

func (r *mprisRoot) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg"}, nil
}

type mprisPlayer struct {
	cmds  EngineCommands
	ctrl  Control
	state StateReader
}

func (p *mprisPlayer) Next() error {
	return p.ctrl.Send(context.Background(), CommandNext)
}

func (p *mprisPlayer) Previous() error {
	return nil // no track history to rewind to
}

func (p *mprisPlayer) Pause() error {
	p.cmds.Pause()
	return nil
}

func (p *mprisPlayer) PlayPause() error {
	snap := p.state.Snapshot()
	if snap.Playing {
		p.cmds.Pause()
	} else {
		p.cmds.Play()
	}
	return nil
}

func (p *mprisPlayer) Stop() error {
	p.cmds.Stop()
	return nil
}

func (p *mprisPlayer) Play() error {
	p.cmds.Play()
	return nil
}

func (p *mprisPlayer) Seek(offset types.Microseconds) error {
	snap := p.state.Snapshot()
	next := int64(snap.PositionMs) + int64(offset)/1000
	if next < 0 {
		next = 0
	}
	p.cmds.Seek(uint32(next))
	return nil
}

func (p *mprisPlayer) SetPosition(_ string, position types.Microseconds) error {
	p.cmds.Seek(uint32(time.Duration(position) * time.Microsecond / time.Millisecond))
	return nil
}

//nolint:revive // method name required by the generated interface.
func (p *mprisPlayer) OpenUri(_ string) error { return nil }

func (p *mprisPlayer) PlaybackStatus() (types.PlaybackStatus, error) {
	snap := p.state.Snapshot()
	switch {
	case snap.Playing:
		return types.PlaybackStatusPlaying, nil
	case snap.Paused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *mprisPlayer) Rate() (float64, error)         { return 1.0, nil }
func (p *mprisPlayer) SetRate(_ float64) error        { return nil }
func (p *mprisPlayer) MinimumRate() (float64, error)  { return 1.0, nil }
func (p *mprisPlayer) MaximumRate() (float64, error)  { return 1.0, nil }

func (p *mprisPlayer) Metadata() (types.Metadata, error) {
	snap := p.state.Snapshot()
	if snap.TrackID == "" {
		return types.Metadata{}, nil
	}
	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackObjectPath(snap.TrackID)),
		Length:  types.Microseconds(time.Duration(snap.DurationMs) * time.Millisecond / time.Microsecond),
		Title:   snap.Title,
	}, nil
}

func (p *mprisPlayer) Volume() (float64, error) {
	return float64(p.state.Snapshot().Volume) / 65535.0, nil
}

func (p *mprisPlayer) SetVolume(_ float64) error {
	return nil // volume changes flow through the JSON-RPC setVolume method, not MPRIS
}

func (p *mprisPlayer) Position() (int64, error) {
	return time.Duration(p.state.Snapshot().PositionMs).Microseconds() * 1000, nil
}

func (p *mprisPlayer) CanGoNext() (bool, error)     { return true, nil }
func (p *mprisPlayer) CanGoPrevious() (bool, error) { return false, nil }
func (p *mprisPlayer) CanPlay() (bool, error)        { return true, nil }
func (p *mprisPlayer) CanPause() (bool, error)       { return true, nil }
func (p *mprisPlayer) CanSeek() (bool, error)        { return true, nil }
func (p *mprisPlayer) CanControl() (bool, error)     { return true, nil }

func (p *mprisPlayer) LoopStatus() (types.LoopStatus, error) {
	return types.LoopStatusNone, nil // no queue to loop over
}

func (p *mprisPlayer) SetLoopStatus(_ types.LoopStatus) error {
	return nil
}

func (p *mprisPlayer) Shuffle() (bool, error) {
	return p.state.Snapshot().Shuffle, nil
}

func (p *mprisPlayer) SetShuffle(shuffle bool) error {
	cmd := CommandShuffleOff
	if shuffle {
		cmd = CommandShuffleOn
	}
	return p.ctrl.Send(context.Background(), cmd)
}

func formatTrackObjectPath(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
