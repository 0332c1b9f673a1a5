package engine

import (
	"context"
	"time"
)

// NormalisationData is the track/album gain-and-peak pair used to compute a
// per-track gain factor. Zero value is NOT the default; use
// DefaultNormalisationData.
type NormalisationData struct {
	TrackGainDB float64
	TrackPeak   float64
	AlbumGainDB float64
	AlbumPeak   float64
}

// DefaultNormalisationData is used whenever normalisation metadata could not
// be parsed or retrieved.
var DefaultNormalisationData = NormalisationData{
	TrackGainDB: 0.0,
	TrackPeak:   1.0,
	AlbumGainDB: 0.0,
	AlbumPeak:   1.0,
}

// NormalisationType selects which gain/peak pair is used.
type NormalisationType int

const (
	NormalisationAuto NormalisationType = iota
	NormalisationTrack
	NormalisationAlbum
)

// NormalisationMethod selects how a factor exceeding the threshold is
// handled.
type NormalisationMethod int

const (
	NormalisationBasic NormalisationMethod = iota
	NormalisationDynamic
)

// NormalisationConfig configures the Normaliser.
type NormalisationConfig struct {
	Enabled          bool
	Type             NormalisationType
	Method           NormalisationMethod
	PregainDB        float64
	Threshold        float64 // linear amplitude, e.g. 1.0 == 0 dBFS
	Attack           time.Duration
	Release          time.Duration
	Knee             float64
	SamplesPerSecond int
}

// DefaultNormalisationConfig mirrors librespot's defaults.
func DefaultNormalisationConfig() NormalisationConfig {
	return NormalisationConfig{
		Enabled:          true,
		Type:             NormalisationAuto,
		Method:           NormalisationDynamic,
		PregainDB:        0.0,
		Threshold:        dbToRatio(-1.0),
		Attack:           5 * time.Millisecond,
		Release:          100 * time.Millisecond,
		Knee:             1.0,
		SamplesPerSecond: 44100,
	}
}

// AudioPacket is one decoded unit of audio. Exactly one of Samples/Raw is
// meaningful, discriminated by Passthrough.
type AudioPacket struct {
	// Samples holds interleaved float64 PCM samples when Passthrough is
	// false; normalisation and the limiter operate on this slice in place.
	Samples []float64
	// Raw holds undecoded bytes when Passthrough is true (e.g. bitstream
	// formats forwarded to a hardware decoder).
	Raw         []byte
	Passthrough bool
}

// Empty reports whether the packet carries no data.
func (p AudioPacket) Empty() bool {
	return len(p.Samples) == 0 && len(p.Raw) == 0
}

// Decoder produces timestamped audio packets from an opened track stream.
type Decoder struct {
	NextPacket func() (streamPositionMs uint32, packet AudioPacket, err error)
	Seek       func(positionMs uint32) error
	Close      func() error

	// ReplayGain reads normalisation data from the decoder's own container
	// metadata (ID3v2 TXXX / Vorbis comments), for formats that don't carry
	// it at the fixed offset the OGG path reads. Nil when the format or
	// decoder has no such metadata to offer; ok is false when the container
	// had no replaygain tags, either way the loader falls back to
	// DefaultNormalisationData.
	ReplayGain func() (data NormalisationData, ok bool)
}

// StreamController is the prefetch and mode controller for the underlying
// byte stream backing a LoadedTrack.
type StreamController interface {
	SetRandomAccessMode()
	SetStreamMode()
	FetchNext(bytes int)
	FetchNextBlocking(ctx context.Context, bytes int) error
	PingTime() time.Duration
	RangeToEndAvailable() bool
	Close() error
}

// Converter performs sample-format conversion (dithering, bit depth) ahead
// of the Sink. The identity converter is used when none is configured.
type Converter interface {
	Convert(samples []float64) []float64
}

// identityConverter returns samples unmodified.
type identityConverter struct{}

func (identityConverter) Convert(samples []float64) []float64 { return samples }

// Sink is the audio output capability.
type Sink interface {
	Start() error
	Stop() error
	Write(samples []float64, conv Converter) error
}

// SinkStatus tracks the Sink's lifecycle.
type SinkStatus int

const (
	SinkRunning SinkStatus = iota
	SinkTemporarilyClosed
	SinkClosed
)

func (s SinkStatus) String() string {
	switch s {
	case SinkRunning:
		return "Running"
	case SinkTemporarilyClosed:
		return "TemporarilyClosed"
	case SinkClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// LoadedTrack is the bundle of decoder + stream controller + metadata that
// can be played.
type LoadedTrack struct {
	Decoder          Decoder
	Stream           StreamController
	Norm             NormalisationData
	BytesPerSecond   int
	DurationMs       uint32
	StreamPositionMs uint32
	IsExplicit       bool
}

// TrackLoader resolves a track id to a LoadedTrack.
type TrackLoader interface {
	Load(ctx context.Context, id TrackID, positionMs uint32) (*LoadedTrack, error)
}
