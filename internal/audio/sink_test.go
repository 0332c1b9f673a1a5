package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waves-audio/engine/internal/engine"
)

type passthroughConverter struct{}

func (passthroughConverter) Convert(samples []float64) []float64 { return samples }

func TestBeepSink_WriteThenStream_DeliversSamples(t *testing.T) {
	s := &BeepSink{}
	require.NoError(t, s.Start())

	require.NoError(t, s.Write([]float64{0.1, 0.2, 0.3, 0.4}, passthroughConverter{}))

	out := make([][2]float64, 4)
	n, ok := s.Stream(out)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, [2]float64{0.1, 0.2}, out[0])
	assert.Equal(t, [2]float64{0.3, 0.4}, out[1])
	assert.Equal(t, [2]float64{0, 0}, out[2])
}

func TestBeepSink_Stream_EmptyAndOpenFillsSilence(t *testing.T) {
	s := &BeepSink{}
	require.NoError(t, s.Start())

	out := make([][2]float64, 2)
	n, ok := s.Stream(out)
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, [2]float64{0, 0}, out[0])
}

func TestBeepSink_Stream_ClosedAndDrainedEndsStream(t *testing.T) {
	s := &BeepSink{closed: true}
	out := make([][2]float64, 2)
	n, ok := s.Stream(out)
	assert.False(t, ok)
	assert.Equal(t, 0, n)
}

func TestBeepSink_Stop_DropsBufferedSamples(t *testing.T) {
	s := &BeepSink{}
	require.NoError(t, s.Start())
	require.NoError(t, s.Write([]float64{0.5, 0.5}, passthroughConverter{}))
	require.NoError(t, s.Stop())

	out := make([][2]float64, 1)
	n, ok := s.Stream(out)
	assert.False(t, ok)
	assert.Equal(t, 0, n)
}

var _ engine.Sink = (*BeepSink)(nil)
