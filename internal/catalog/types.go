// Package catalog implements the external collaborators spec.md treats as
// out of scope for the Player Engine itself: a TrackSource capability over a
// local encrypted-file fixture catalog, concrete Decoders, and the
// TrackLoader algorithm that ties them together into engine.LoadedTrack
// values.
package catalog

import "github.com/waves-audio/engine/internal/engine"

// Format identifies one (codec, bitrate) encoding of a track, mirroring the
// AudioItem file map from spec.md §4.2.
type Format int

const (
	FormatOggVorbis96 Format = iota
	FormatOggVorbis160
	FormatOggVorbis320
	FormatMP396
	FormatMP3160
	FormatMP3256
	FormatMP3320
	FormatAAC24
	FormatAAC48
	FormatFLAC
)

func (f Format) String() string {
	switch f {
	case FormatOggVorbis96:
		return "OGG_VORBIS_96"
	case FormatOggVorbis160:
		return "OGG_VORBIS_160"
	case FormatOggVorbis320:
		return "OGG_VORBIS_320"
	case FormatMP396:
		return "MP3_96"
	case FormatMP3160:
		return "MP3_160"
	case FormatMP3256:
		return "MP3_256"
	case FormatMP3320:
		return "MP3_320"
	case FormatAAC24:
		return "AAC_24"
	case FormatAAC48:
		return "AAC_48"
	case FormatFLAC:
		return "FLAC"
	default:
		return "UNKNOWN"
	}
}

// kbpsTable is the fixed bytes_per_second table from spec.md §4.2 step 5
// (kbps values; bytes_per_second = kbps * 1024).
var kbpsTable = map[Format]int{
	FormatOggVorbis96:  12,
	FormatOggVorbis160: 20,
	FormatOggVorbis320: 40,
	FormatMP396:        12,
	FormatMP3160:       20,
	FormatMP3256:       32,
	FormatMP3320:       40,
	FormatAAC24:        3,
	FormatAAC48:        6,
	FormatFLAC:         112,
}

// BytesPerSecond returns the fixed bitrate-derived throughput for f.
func (f Format) BytesPerSecond() int {
	return kbpsTable[f] * 1024
}

// BitratePreference selects the format priority table used by ChooseFormat.
type BitratePreference int

const (
	Bitrate96 BitratePreference = iota
	Bitrate160
	Bitrate320
)

// preferenceTables mirrors spec.md §4.2 step 4 verbatim.
var preferenceTables = map[BitratePreference][]Format{
	Bitrate96: {
		FormatOggVorbis96, FormatMP396, FormatOggVorbis160, FormatMP3160,
		FormatMP3256, FormatOggVorbis320, FormatMP3320,
	},
	Bitrate160: {
		FormatOggVorbis160, FormatMP3160, FormatOggVorbis96, FormatMP396,
		FormatMP3256, FormatOggVorbis320, FormatMP3320,
	},
	Bitrate320: {
		FormatOggVorbis320, FormatMP3320, FormatMP3256, FormatOggVorbis160,
		FormatMP3160, FormatOggVorbis96, FormatMP396,
	},
}

// ChooseFormat picks the first format in pref's priority order present in
// files. Returns false if none match.
func ChooseFormat(pref BitratePreference, files map[Format]string) (Format, bool) {
	for _, f := range preferenceTables[pref] {
		if _, ok := files[f]; ok {
			return f, true
		}
	}
	return 0, false
}

// Availability mirrors the AudioItem field of the same name.
type Availability int

const (
	Available Availability = iota
	Unavailable
)

// TrackMetadataKind discriminates AudioItem's metadata variant.
type TrackMetadataKind int

const (
	MetadataTrack TrackMetadataKind = iota
	MetadataEpisode
)

// AudioItem is the loader's input resolved from a TrackSource, per spec.md
// §3.
type AudioItem struct {
	TrackID       engine.TrackID
	DurationMs    int64
	Availability  Availability
	Files         map[Format]string // format -> file id (opaque string understood by the Source)
	Alternatives  []engine.TrackID
	IsExplicit    bool
	MetadataKind  TrackMetadataKind
	AlbumName     string
	ArtistNames   []string
	ShowName      string
}
