package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waves-audio/engine/internal/engine"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_AvailabilityRoundTrip(t *testing.T) {
	c := openTestCache(t)
	id := engine.MustParseTrackID("4c4wS")

	_, ok, err := c.Availability(id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutAvailability(id, true))
	avail, ok, err := c.Availability(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, avail)

	require.NoError(t, c.PutAvailability(id, false))
	avail, ok, err = c.Availability(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, avail)
}

func TestCache_KeyRoundTripAndEvict(t *testing.T) {
	c := openTestCache(t)

	_, ok, err := c.Key("blob-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutKey("blob-1", []byte{1, 2, 3, 4}))
	key, ok, err := c.Key("blob-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, key)

	require.NoError(t, c.Evict("blob-1"))
	_, ok, err = c.Key("blob-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
