package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackID_RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "z", "4c4wS3000rokzXoDXvnEkE", "ZZZZZZZZZZZZZZZZZZZZZ"} {
		id, err := ParseTrackID(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, id.String(), "round trip of %q", s)
	}
}

func TestTrackID_InvalidCharacterRejected(t *testing.T) {
	_, err := ParseTrackID("not-valid!")
	assert.ErrorIs(t, err, ErrInvalidTrackID)
}

func TestTrackID_EmptyRejected(t *testing.T) {
	_, err := ParseTrackID("")
	assert.ErrorIs(t, err, ErrInvalidTrackID)
}

func TestTrackID_TooLongOverflowsRejected(t *testing.T) {
	// 23 'Z's encodes a value well past 2^128-1.
	_, err := ParseTrackID("ZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, ErrInvalidTrackID)
}

func TestTrackID_ZeroValue(t *testing.T) {
	var id TrackID
	assert.True(t, id.IsZero())
	assert.Equal(t, "0", id.String())
}

func TestTrackID_MustParsePanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustParseTrackID("!!!") })
}

func TestTrackID_HexIsStable(t *testing.T) {
	id := MustParseTrackID("4c4wS")
	assert.Len(t, id.Hex(), 32)
	assert.Equal(t, id.Hex(), id.Hex())
}
