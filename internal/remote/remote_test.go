package remote

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "Next", CommandNext.String())
	assert.Equal(t, "ShuffleOn", CommandShuffleOn.String())
	assert.Equal(t, "ShuffleOff", CommandShuffleOff.String())
	assert.Equal(t, "Unknown", Command(99).String())
}

func TestLoggingControl_AlwaysSucceeds(t *testing.T) {
	c := NewLoggingControl(zerolog.Nop())
	for _, cmd := range []Command{CommandNext, CommandShuffleOn, CommandShuffleOff} {
		require.NoError(t, c.Send(context.Background(), cmd))
	}
}

type fakeNotifier struct {
	nextCalls    int
	shuffleCalls []bool
}

func (f *fakeNotifier) NotifyNext()            { f.nextCalls++ }
func (f *fakeNotifier) NotifyShuffle(on bool)  { f.shuffleCalls = append(f.shuffleCalls, on) }

type fakeDownstream struct {
	received []Command
	err      error
}

func (f *fakeDownstream) Send(_ context.Context, cmd Command) error {
	f.received = append(f.received, cmd)
	return f.err
}

func TestBroadcastControl_NotifiesAndForwards(t *testing.T) {
	notifier := &fakeNotifier{}
	downstream := &fakeDownstream{}
	c := NewBroadcastControl(notifier, downstream)

	require.NoError(t, c.Send(context.Background(), CommandNext))
	assert.Equal(t, 1, notifier.nextCalls)

	require.NoError(t, c.Send(context.Background(), CommandShuffleOn))
	require.NoError(t, c.Send(context.Background(), CommandShuffleOff))
	assert.Equal(t, []bool{true, false}, notifier.shuffleCalls)

	assert.Equal(t, []Command{CommandNext, CommandShuffleOn, CommandShuffleOff}, downstream.received)
}

func TestBroadcastControl_NilDownstreamIsFine(t *testing.T) {
	notifier := &fakeNotifier{}
	c := NewBroadcastControl(notifier, nil)
	require.NoError(t, c.Send(context.Background(), CommandNext))
	assert.Equal(t, 1, notifier.nextCalls)
}
