package remote

import "context"

// BroadcastNotifier is the narrow slice of the control facade a Control
// implementation can push play-state notifications through, without
// importing the control package itself (which imports remote for Control).
type BroadcastNotifier interface {
	NotifyNext()
	NotifyShuffle(on bool)
}

// broadcastControl reports next/shuffle commands to a BroadcastNotifier
// (the control facade, which turns shuffle changes into WebSocket
// notifications and only logs next) in addition to optionally sending them
// to an external group-sync backend.
type broadcastControl struct {
	notifier BroadcastNotifier
	next     Control // optional downstream, e.g. LoggingControl; nil is fine
}

// NewBroadcastControl builds a Control that reports each command to notifier
// and then, if downstream is non-nil, forwards the command to it.
func NewBroadcastControl(notifier BroadcastNotifier, downstream Control) Control {
	return &broadcastControl{notifier: notifier, next: downstream}
}

func (b *broadcastControl) Send(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandNext:
		b.notifier.NotifyNext()
	case CommandShuffleOn:
		b.notifier.NotifyShuffle(true)
	case CommandShuffleOff:
		b.notifier.NotifyShuffle(false)
	}
	if b.next == nil {
		return nil
	}
	return b.next.Send(ctx, cmd)
}
