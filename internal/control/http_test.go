package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter_PostDispatchesJSONRPC(t *testing.T) {
	f, cmds, _ := newTestFacade(false)
	srv := httptest.NewServer(NewRouter(f))
	defer srv.Close()

	body, err := json.Marshal(map[string]any{"id": 1, "jsonrpc": "2.0", "method": "setPlay"})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Nil(t, parsed.Error)
	assert.Equal(t, 1, cmds.playCalls)
}

func TestNewRouter_GetWithoutUpgradeReturnsError(t *testing.T) {
	f, _, _ := newTestFacade(false)
	srv := httptest.NewServer(NewRouter(f))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotNil(t, parsed.Error)
	assert.Equal(t, ErrInvalidRequest, parsed.Error.Code)
}
