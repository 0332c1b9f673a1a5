package control

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/waves-audio/engine/internal/engine"
	"github.com/waves-audio/engine/internal/remote"
)

var errInvalidVolumeParam = errors.New("setVolume: params must be a number in 0..65535")

// EngineCommands is the slice of engine operations the facade drives
// directly. setNext/setShuffleOn/setShuffleOff go through remote.Control
// instead, since those are remote-control concerns, not engine ones.
type EngineCommands interface {
	Play()
	Pause()
	EmitVolumeSetEvent(volume uint16)
}

// Facade ties the engine's event stream, a RemoteControl command sender,
// and the WebSocket hub together behind the JSON-RPC method table.
type Facade struct {
	cmds   EngineCommands
	remote remote.Control // nil means setNext/setShuffleOn/setShuffleOff fail with NoControl
	mirror *Mirror
	hub    *Hub
	log    zerolog.Logger
}

// NewFacade builds a Facade. remoteControl may be nil.
func NewFacade(cmds EngineCommands, remoteControl remote.Control, log zerolog.Logger) *Facade {
	return &Facade{
		cmds:   cmds,
		remote: remoteControl,
		mirror: NewMirror(),
		hub:    NewHub(),
		log:    log,
	}
}

// SetRemote attaches or replaces the remote-control command sender. Exists
// as a setter, rather than only a constructor argument, because a
// broadcastControl built from remote.NewBroadcastControl needs the Facade
// itself (as a remote.BroadcastNotifier) to already exist — construct the
// Facade with a nil remote first, build the broadcastControl around it,
// then call SetRemote.
func (f *Facade) SetRemote(r remote.Control) { f.remote = r }

// Mirror exposes the facade's state mirror, e.g. to back an MPRIS adapter.
func (f *Facade) Mirror() *Mirror { return f.mirror }

// Hub exposes the facade's WebSocket hub for wiring into an HTTP server.
func (f *Facade) Hub() *Hub { return f.hub }

// Run applies engine events to the mirror and broadcasts the resulting
// notifications until events is closed or ctx is cancelled.
func (f *Facade) Run(ctx context.Context, events <-chan engine.Event) {
	go f.hub.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, n := range f.mirror.ApplyEvent(ev) {
				f.broadcast(n)
			}
		}
	}
}

func (f *Facade) broadcast(n Notification) {
	f.hub.broadcast(n)
}

func (f *Facade) sendControl(ctx context.Context, req Request) *Response {
	if f.remote == nil {
		resp := errorResponse(req.ID, ErrNoControl, "no remote control attached")
		return &resp
	}
	if err := f.remote.Send(ctx, remote.CommandNext); err != nil {
		resp := errorResponse(req.ID, ErrInternal, err.Error())
		return &resp
	}
	return nil
}

func (f *Facade) setShuffle(ctx context.Context, req Request, on bool) *Response {
	if f.remote == nil {
		resp := errorResponse(req.ID, ErrNoControl, "no remote control attached")
		return &resp
	}
	cmd := remote.CommandShuffleOff
	if on {
		cmd = remote.CommandShuffleOn
	}
	if err := f.remote.Send(ctx, cmd); err != nil {
		resp := errorResponse(req.ID, ErrInternal, err.Error())
		return &resp
	}
	f.mirror.setShuffle(on)
	f.broadcast(notifyOnShuffleChange(on))
	return nil
}

// NotifyNext implements remote.BroadcastNotifier: a broadcastControl calls
// this for every "next" command it sends. The notification set has no
// "next" method, so this only logs the command at debug level and sends
// nothing to WebSocket subscribers.
func (f *Facade) NotifyNext() {
	f.log.Debug().Msg("remote next command observed")
}

// NotifyShuffle implements remote.BroadcastNotifier.
func (f *Facade) NotifyShuffle(on bool) {
	f.mirror.setShuffle(on)
	f.broadcast(notifyOnShuffleChange(on))
}
