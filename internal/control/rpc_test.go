package control

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waves-audio/engine/internal/remote"
)

type fakeEngineCommands struct {
	playCalls  int
	pauseCalls int
	volumes    []uint16
}

func (f *fakeEngineCommands) Play()  { f.playCalls++ }
func (f *fakeEngineCommands) Pause() { f.pauseCalls++ }
func (f *fakeEngineCommands) EmitVolumeSetEvent(volume uint16) {
	f.volumes = append(f.volumes, volume)
}

type fakeRemote struct {
	sent []remote.Command
	err  error
}

func (f *fakeRemote) Send(_ context.Context, cmd remote.Command) error {
	f.sent = append(f.sent, cmd)
	return f.err
}

func newTestFacade(withRemote bool) (*Facade, *fakeEngineCommands, *fakeRemote) {
	cmds := &fakeEngineCommands{}
	var r *fakeRemote
	var rc remote.Control
	if withRemote {
		r = &fakeRemote{}
		rc = r
	}
	return NewFacade(cmds, rc, zerolog.Nop()), cmds, r
}

func dispatch(t *testing.T, f *Facade, id int, method string, params any) Response {
	t.Helper()
	req := map[string]any{"id": id, "jsonrpc": "2.0", "method": method}
	if params != nil {
		req["params"] = params
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return f.Dispatch(context.Background(), raw)
}

func TestDispatch_GetStatus(t *testing.T) {
	f, _, _ := newTestFacade(false)
	resp := dispatch(t, f, 1, "getStatus", nil)
	require.Nil(t, resp.Error)
	assert.EqualValues(t, 1, resp.ID)
}

func TestDispatch_GetVolume(t *testing.T) {
	f, _, _ := newTestFacade(false)
	resp := dispatch(t, f, 2, "getVolume", nil)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]uint16)
	require.True(t, ok)
	assert.EqualValues(t, 0, result["volume"])
}

func TestDispatch_SetPlayAndSetPause(t *testing.T) {
	f, cmds, _ := newTestFacade(false)

	resp := dispatch(t, f, 3, "setPlay", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "Ok", resp.Result)
	assert.Equal(t, 1, cmds.playCalls)

	resp = dispatch(t, f, 4, "setPause", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, cmds.pauseCalls)
}

func TestDispatch_SetVolume(t *testing.T) {
	f, cmds, _ := newTestFacade(false)

	resp := dispatch(t, f, 5, "setVolume", 12345)
	require.Nil(t, resp.Error)
	assert.Equal(t, []uint16{12345}, cmds.volumes)
	assert.EqualValues(t, 12345, f.mirror.Snapshot().Volume)
}

func TestDispatch_SetVolume_InvalidParams(t *testing.T) {
	f, _, _ := newTestFacade(false)

	resp := dispatch(t, f, 6, "setVolume", -1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidParams, resp.Error.Code)

	resp = dispatch(t, f, 7, "setVolume", 70000)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidParams, resp.Error.Code)

	resp = dispatch(t, f, 8, "setVolume", "loud")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidParams, resp.Error.Code)
}

func TestDispatch_SetNext_NoControlWithoutRemote(t *testing.T) {
	f, _, _ := newTestFacade(false)
	resp := dispatch(t, f, 9, "setNext", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNoControl, resp.Error.Code)
}

func TestDispatch_SetNext_ForwardsToRemote(t *testing.T) {
	f, _, r := newTestFacade(true)
	resp := dispatch(t, f, 10, "setNext", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, []remote.Command{remote.CommandNext}, r.sent)
}

func TestDispatch_SetShuffleOnOff_UpdatesMirror(t *testing.T) {
	f, _, r := newTestFacade(true)

	resp := dispatch(t, f, 11, "setShuffleOn", nil)
	require.Nil(t, resp.Error)
	assert.True(t, f.mirror.Snapshot().Shuffle)

	resp = dispatch(t, f, 12, "setShuffleOff", nil)
	require.Nil(t, resp.Error)
	assert.False(t, f.mirror.Snapshot().Shuffle)

	assert.Equal(t, []remote.Command{remote.CommandShuffleOn, remote.CommandShuffleOff}, r.sent)
}

func TestDispatch_MethodNotFound(t *testing.T) {
	f, _, _ := newTestFacade(false)
	resp := dispatch(t, f, 13, "doSomethingElse", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrMethodNotFound, resp.Error.Code)
}

func TestDispatch_ParseError(t *testing.T) {
	f, _, _ := newTestFacade(false)
	resp := f.Dispatch(context.Background(), []byte("not json"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrParse, resp.Error.Code)
}

func TestDispatch_InvalidRequest_NonNumericID(t *testing.T) {
	f, _, _ := newTestFacade(false)
	raw := []byte(`{"id":"abc","jsonrpc":"2.0","method":"getStatus"}`)
	resp := f.Dispatch(context.Background(), raw)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidRequest, resp.Error.Code)
}
