// Package audio adapts the engine's push-based Sink contract onto
// gopxl/beep's pull-based speaker, the output library the teacher's own
// internal/player package uses for local playback.
package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/waves-audio/engine/internal/engine"
)

// speakerLatency bounds how much audio beep buffers internally before it
// reaches the sound card, matching the teacher's own speaker.Init tuning
// (a tenth of a second).
const speakerLatency = time.Second / 10

// BeepSink implements engine.Sink by buffering pushed stereo samples into a
// slice the speaker's mixer goroutine pulls from via Stream. Unlike the
// teacher's player.Play, which hands beep a decoder-backed beep.Streamer to
// pull from directly, the engine already owns decode+normalisation and only
// pushes finished samples, so this sink is a small buffer plus a Streamer
// adapter rather than a decode pipeline.
type BeepSink struct {
	sampleRate beep.SampleRate

	mu     sync.Mutex
	buf    [][2]float64
	closed bool
}

// NewBeepSink initialises the global beep speaker at sampleRate and returns
// a Sink that can be Start/Stop/Write-driven by the engine. speaker.Init may
// only be called once per process; callers constructing more than one
// BeepSink at different sample rates will get an error from the second one.
func NewBeepSink(sampleRate int) (*BeepSink, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(speakerLatency)); err != nil {
		return nil, err
	}
	return &BeepSink{sampleRate: sr, closed: true}, nil
}

// Start resumes delivery and (re-)registers the sink with the speaker.
func (s *BeepSink) Start() error {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
	speaker.Play(s)
	return nil
}

// Stop halts delivery and drops any buffered-but-unplayed samples.
func (s *BeepSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buf = nil
	return nil
}

// Write appends conv.Convert(samples) — interleaved stereo, L,R,L,R,... —
// to the pending buffer for the speaker to drain.
func (s *BeepSink) Write(samples []float64, conv engine.Converter) error {
	converted := conv.Convert(samples)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(converted); i += 2 {
		s.buf = append(s.buf, [2]float64{converted[i], converted[i+1]})
	}
	return nil
}

// Stream implements beep.Streamer, invoked by the speaker's mixer goroutine.
func (s *BeepSink) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed && len(s.buf) == 0 {
		return 0, false
	}

	n = copy(samples, s.buf)
	s.buf = s.buf[n:]
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{0, 0}
	}
	return len(samples), true
}

// Err implements beep.Streamer; this sink never fails mid-stream.
func (s *BeepSink) Err() error {
	return nil
}
