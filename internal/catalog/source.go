package catalog

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/waves-audio/engine/internal/engine"
)

// ErrTrackNotFound is returned by Source.Resolve when no manifest entry
// matches the requested id.
var ErrTrackNotFound = errors.New("catalog: track not found")

// ErrKeyUnavailable is returned by Source.DecryptionKey when no key is on
// record for a file id; per spec.md §4.2 step 7 this is tolerated, not
// fatal — the loader proceeds undecrypted.
var ErrKeyUnavailable = errors.New("catalog: decryption key unavailable")

// Source is the TrackSource capability: resolve metadata, fetch a
// (possibly encrypted) file's bytes, and hand back its decryption key.
type Source interface {
	Resolve(ctx context.Context, id engine.TrackID) (AudioItem, error)
	Open(ctx context.Context, fileID string) (RandomAccessStream, error)
	DecryptionKey(ctx context.Context, fileID string) ([]byte, error)
}

// RandomAccessStream is the byte-range-capable handle a Decoder opens for
// reading; concrete StreamController implementations (internal/stream) wrap
// one of these.
type RandomAccessStream interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// manifestEntry is one track's row in the fixture catalog's JSON manifest.
type manifestEntry struct {
	TrackID      string            `json:"track_id"`
	DurationMs   int64             `json:"duration_ms"`
	Unavailable  bool              `json:"unavailable"`
	Files        map[string]string `json:"files"` // format name -> blob file name
	Alternatives []string          `json:"alternatives,omitempty"`
	IsExplicit   bool              `json:"is_explicit"`
	AlbumName    string            `json:"album,omitempty"`
	ArtistNames  []string          `json:"artists,omitempty"`
	ShowName     string            `json:"show,omitempty"`
}

// manifest is the top-level fixture catalog document.
type manifest struct {
	Tracks []manifestEntry `json:"tracks"`
	// Keys maps blob file name -> hex-encoded AES-128 key, simulating the
	// out-of-band key-retrieval the real streaming backend performs.
	Keys map[string]string `json:"keys,omitempty"`
}

var formatNames = map[string]Format{
	"OGG_VORBIS_96": FormatOggVorbis96, "OGG_VORBIS_160": FormatOggVorbis160,
	"OGG_VORBIS_320": FormatOggVorbis320, "MP3_96": FormatMP396,
	"MP3_160": FormatMP3160, "MP3_256": FormatMP3256, "MP3_320": FormatMP3320,
	"AAC_24": FormatAAC24, "AAC_48": FormatAAC48, "FLAC": FormatFLAC,
}

// FileSource implements Source against a directory containing a
// manifest.json plus one file per blob referenced from it. Blobs may be
// AES-CTR "encrypted" (a stand-in for the real streaming backend's content
// encryption) when a key is present in the manifest.
type FileSource struct {
	dir string
	m   manifest
}

// OpenFileSource loads and validates the manifest at dir/manifest.json.
func OpenFileSource(dir string) (*FileSource, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("catalog: read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("catalog: parse manifest: %w", err)
	}
	return &FileSource{dir: dir, m: m}, nil
}

func (s *FileSource) Resolve(_ context.Context, id engine.TrackID) (AudioItem, error) {
	for _, e := range s.m.Tracks {
		tid, err := engine.ParseTrackID(e.TrackID)
		if err != nil || tid != id {
			continue
		}
		return s.toAudioItem(e)
	}
	return AudioItem{}, ErrTrackNotFound
}

func (s *FileSource) toAudioItem(e manifestEntry) (AudioItem, error) {
	files := make(map[Format]string, len(e.Files))
	for name, blob := range e.Files {
		f, ok := formatNames[name]
		if !ok {
			continue
		}
		files[f] = blob
	}
	alts := make([]engine.TrackID, 0, len(e.Alternatives))
	for _, a := range e.Alternatives {
		tid, err := engine.ParseTrackID(a)
		if err != nil {
			continue
		}
		alts = append(alts, tid)
	}
	tid, err := engine.ParseTrackID(e.TrackID)
	if err != nil {
		return AudioItem{}, fmt.Errorf("catalog: manifest track id %q: %w", e.TrackID, err)
	}
	avail := Available
	if e.Unavailable {
		avail = Unavailable
	}
	kind := MetadataTrack
	if e.ShowName != "" {
		kind = MetadataEpisode
	}
	return AudioItem{
		TrackID:      tid,
		DurationMs:   e.DurationMs,
		Availability: avail,
		Files:        files,
		Alternatives: alts,
		IsExplicit:   e.IsExplicit,
		MetadataKind: kind,
		AlbumName:    e.AlbumName,
		ArtistNames:  e.ArtistNames,
		ShowName:     e.ShowName,
	}, nil
}

func (s *FileSource) Open(_ context.Context, fileID string) (RandomAccessStream, error) {
	f, err := os.Open(filepath.Join(s.dir, fileID))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	var stream RandomAccessStream = &fileStream{f: f, size: info.Size()}
	if keyHex, ok := s.m.Keys[fileID]; ok {
		key, err := decodeHexKey(keyHex)
		if err == nil {
			stream = &ctrStream{inner: stream, key: key}
		}
	}
	return stream, nil
}

func (s *FileSource) DecryptionKey(_ context.Context, fileID string) ([]byte, error) {
	keyHex, ok := s.m.Keys[fileID]
	if !ok {
		return nil, ErrKeyUnavailable
	}
	return decodeHexKey(keyHex)
}

func decodeHexKey(s string) ([]byte, error) {
	key := make([]byte, aes.BlockSize)
	if _, err := fmt.Sscanf(s, "%x", &key); err != nil {
		return nil, err
	}
	return key, nil
}

// fileStream is a plain on-disk RandomAccessStream.
type fileStream struct {
	f    *os.File
	size int64
}

func (s *fileStream) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileStream) Size() int64                             { return s.size }
func (s *fileStream) Close() error                            { return s.f.Close() }

// ctrStream decrypts on read using AES-CTR with a zero IV derived from the
// read offset, so random-access reads never need the whole blob decrypted
// up front — the fixture-catalog analogue of the real backend's chunked
// content encryption.
type ctrStream struct {
	inner RandomAccessStream
	key   []byte
}

func (s *ctrStream) Size() int64  { return s.inner.Size() }
func (s *ctrStream) Close() error { return s.inner.Close() }

func (s *ctrStream) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.inner.ReadAt(p, off)
	if n == 0 {
		return n, err
	}
	block, keyErr := aes.NewCipher(s.key)
	if keyErr != nil {
		return n, keyErr
	}
	var iv [aes.BlockSize]byte
	blockOffset := off / aes.BlockSize
	iv[len(iv)-8] = byte(blockOffset >> 56)
	iv[len(iv)-7] = byte(blockOffset >> 48)
	iv[len(iv)-6] = byte(blockOffset >> 40)
	iv[len(iv)-5] = byte(blockOffset >> 32)
	iv[len(iv)-4] = byte(blockOffset >> 24)
	iv[len(iv)-3] = byte(blockOffset >> 16)
	iv[len(iv)-2] = byte(blockOffset >> 8)
	iv[len(iv)-1] = byte(blockOffset)

	stream := cipher.NewCTR(block, iv[:])
	// Skip to the intra-block byte offset CTR mode would have reached.
	skip := int(off % aes.BlockSize)
	if skip > 0 {
		discard := make([]byte, skip)
		stream.XORKeyStream(discard, discard)
	}
	stream.XORKeyStream(p[:n], p[:n])
	return n, err
}
