package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/waves-audio/engine/internal/engine"
	"github.com/waves-audio/engine/internal/stream"
)

// normalisationDataOffset is the fixed byte offset spec.md §4.2 step 8
// reads NormalisationData from in an OGG stream.
const normalisationDataOffset = 144

// ErrDurationNegative rejects an AudioItem with a negative duration, per
// spec.md §4.2 step 3.
var ErrDurationNegative = errors.New("catalog: negative duration")

// ErrExplicitFiltered names the filter-explicit-content rejection. Load does
// not return it: a filtered track yields (nil, nil), which the engine treats
// as unavailable.
var ErrExplicitFiltered = errors.New("catalog: explicit content filtered")

// ErrNoFormat names the case where none of the bitrate preference's formats
// are present in the AudioItem's file map. Load does not return it: that case
// also yields (nil, nil).
var ErrNoFormat = errors.New("catalog: no acceptable format available")

// LoaderConfig configures Loader's behaviour, mirroring the per-user
// attributes spec.md §4.2 reads.
type LoaderConfig struct {
	Bitrate               BitratePreference
	FilterExplicitContent bool
	Passthrough           bool
	PingTime              time.Duration
}

// DefaultLoaderConfig mirrors a typical desktop client's defaults.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{Bitrate: Bitrate160, PingTime: 20 * time.Millisecond}
}

// Loader implements engine.TrackLoader (see SPEC_FULL.md §4's `catalog.Loader`
// mapping), driven by a Source and backed by a Cache for decrypt keys and
// availability decisions.
type Loader struct {
	cfg    LoaderConfig
	source Source
	cache  *Cache
}

// NewLoader constructs a Loader. cache may be nil to run without persistent
// key/availability caching.
func NewLoader(cfg LoaderConfig, source Source, cache *Cache) *Loader {
	return &Loader{cfg: cfg, source: source, cache: cache}
}

var _ engine.TrackLoader = (*Loader)(nil)

// Load implements engine.TrackLoader, executing spec.md §4.2's algorithm.
func (l *Loader) Load(ctx context.Context, id engine.TrackID, positionMs uint32) (*engine.LoadedTrack, error) {
	item, err := l.resolveWithAlternatives(ctx, id)
	if err != nil {
		return nil, err
	}

	if item.IsExplicit && l.cfg.FilterExplicitContent {
		return nil, nil
	}
	if item.DurationMs < 0 {
		return nil, ErrDurationNegative
	}

	format, ok := ChooseFormat(l.cfg.Bitrate, item.Files)
	if !ok {
		return nil, nil
	}
	fileID := item.Files[format]
	bytesPerSecond := format.BytesPerSecond()

	track, err := l.openAndDecode(ctx, fileID, format, bytesPerSecond, positionMs)
	if err != nil {
		// Retry-once policy: if a cached key exists for this file, evict it
		// and retry from scratch, per spec.md §4.2's retry note.
		if l.cache != nil {
			if _, hadKey, _ := l.cache.Key(fileID); hadKey {
				_ = l.cache.Evict(fileID)
				track, err = l.openAndDecode(ctx, fileID, format, bytesPerSecond, positionMs)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if l.cache != nil {
		_ = l.cache.PutAvailability(id, true)
	}
	track.IsExplicit = item.IsExplicit
	track.DurationMs = uint32(item.DurationMs)
	return track, nil
}

// resolveWithAlternatives implements step 1: fetch the AudioItem, and if
// unavailable, race its alternatives for the first available one.
func (l *Loader) resolveWithAlternatives(ctx context.Context, id engine.TrackID) (AudioItem, error) {
	item, err := l.source.Resolve(ctx, id)
	if err != nil {
		return AudioItem{}, err
	}
	if item.Availability == Available || len(item.Alternatives) == 0 {
		return item, nil
	}

	type result struct {
		item AudioItem
		err  error
	}
	results := make(chan result, len(item.Alternatives))
	var wg sync.WaitGroup
	for _, alt := range item.Alternatives {
		wg.Add(1)
		go func(id engine.TrackID) {
			defer wg.Done()
			altItem, err := l.source.Resolve(ctx, id)
			results <- result{altItem, err}
		}(alt)
	}
	go func() { wg.Wait(); close(results) }()

	for r := range results {
		if r.err == nil && r.item.Availability == Available {
			return r.item, nil
		}
	}
	return item, nil // all alternatives failed too; caller sees the original (unavailable) item
}

// openAndDecode implements steps 6-11: open the stream in random-access
// mode, request the decryption key (best-effort), parse NormalisationData
// for OGG, construct the decoder, seek, and switch to streaming mode.
func (l *Loader) openAndDecode(ctx context.Context, fileID string, format Format, bytesPerSecond int, positionMs uint32) (*engine.LoadedTrack, error) {
	raw, err := l.source.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ctrl := stream.NewController(raw, l.cfg.PingTime, raw.Close)
	ctrl.SetRandomAccessMode()

	if key, kerr := l.source.DecryptionKey(ctx, fileID); kerr == nil && l.cache != nil {
		_ = l.cache.PutKey(fileID, key)
	}
	// ErrKeyUnavailable is tolerated per spec.md §4.2 step 7: proceed
	// undecrypted, the decoder fails gracefully if content was truly
	// encrypted.

	dec, err := l.buildDecoder(raw, format, bytesPerSecond)
	if err != nil {
		ctrl.Close()
		return nil, err
	}

	norm := engine.DefaultNormalisationData
	switch format {
	case FormatOggVorbis96, FormatOggVorbis160, FormatOggVorbis320:
		if parsed, perr := parseOggNormalisationData(raw); perr == nil {
			norm = parsed
		}
	default:
		// spec.md §4.2 step 9: non-OGG formats fall back to the decoder's
		// own metadata (ReplayGain) before the engine-wide default.
		if dec.ReplayGain != nil {
			if rg, ok := dec.ReplayGain(); ok {
				norm = rg
			}
		}
	}

	seekPos := positionMs
	if err := dec.Seek(positionMs); err != nil {
		seekPos = 0
	}

	ctrl.SetStreamMode()

	return &engine.LoadedTrack{
		Decoder:          dec,
		Stream:           ctrl,
		Norm:             norm,
		BytesPerSecond:   bytesPerSecond,
		StreamPositionMs: seekPos,
	}, nil
}

func (l *Loader) buildDecoder(raw RandomAccessStream, format Format, bytesPerSecond int) (engine.Decoder, error) {
	if l.cfg.Passthrough {
		return newPassthroughDecoder(raw, bytesPerSecond), nil
	}
	switch format {
	case FormatOggVorbis96, FormatOggVorbis160, FormatOggVorbis320:
		return newVorbisDecoder(raw)
	case FormatMP396, FormatMP3160, FormatMP3256, FormatMP3320:
		return newMP3Decoder(raw, bytesPerSecond)
	case FormatFLAC:
		return newFLACDecoder(raw)
	default:
		// AAC and anything else this fixture catalog doesn't ship a real
		// decoder for: forward raw bytes (see DESIGN.md).
		return newPassthroughDecoder(raw, bytesPerSecond), nil
	}
}

// parseOggNormalisationData implements spec.md §4.2 step 8: four
// little-endian f32s at a fixed byte offset. A short read or I/O error
// yields engine.DefaultNormalisationData (property 10 in SPEC_FULL.md §8).
func parseOggNormalisationData(raw RandomAccessStream) (engine.NormalisationData, error) {
	buf := make([]byte, 16)
	n, err := raw.ReadAt(buf, normalisationDataOffset)
	if n < 16 {
		if err == nil {
			err = errors.New("catalog: short read for normalisation data")
		}
		return engine.DefaultNormalisationData, err
	}
	return engine.NormalisationData{
		TrackGainDB: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))),
		TrackPeak:   float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))),
		AlbumGainDB: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))),
		AlbumPeak:   float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))),
	}, nil
}
