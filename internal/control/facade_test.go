package control

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waves-audio/engine/internal/engine"
)

func TestFacade_Run_AppliesEventsAndBroadcasts(t *testing.T) {
	f, _, _ := newTestFacade(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan engine.Event, 4)
	done := make(chan struct{})
	go func() {
		f.Run(ctx, events)
		close(done)
	}()

	c := &client{id: 1, send: make(chan []byte, 8)}
	f.hub.register <- c

	id := engine.MustParseTrackID("4NHQUGzhtTLFvgF3CfQ")
	events <- engine.StartedEvent{TrackID: id, PositionMs: 0}

	select {
	case msg := <-c.send:
		var n Notification
		require.NoError(t, json.Unmarshal(msg, &n))
		assert.Equal(t, "OnNewTrack", n.Method)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	cancel()
	<-done
}

func TestFacade_NotifyShuffle_UpdatesMirrorAndBroadcasts(t *testing.T) {
	f, _, _ := newTestFacade(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hub.run(ctx)

	c := &client{id: 1, send: make(chan []byte, 8)}
	f.hub.register <- c

	f.NotifyShuffle(true)
	assert.True(t, f.mirror.Snapshot().Shuffle)

	select {
	case msg := <-c.send:
		var n Notification
		require.NoError(t, json.Unmarshal(msg, &n))
		assert.Equal(t, "OnShuffleChange", n.Method)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}
