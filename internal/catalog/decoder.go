package catalog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/waves-audio/engine/internal/engine"
)

// errSeekUnsupported is returned by decoders (FLAC, passthrough) that do not
// implement arbitrary seeking; the loader treats this as step 10's "seek
// failed, fall back to 0" case, per spec.md §4.2 step 10.
var errSeekUnsupported = errors.New("catalog: decoder does not support seeking")

// streamReader adapts a RandomAccessStream's ReadAt into a sequential
// io.Reader + io.Seeker, the shape every third-party codec in this package
// expects.
type streamReader struct {
	s   RandomAccessStream
	pos int64
}

func newStreamReader(s RandomAccessStream) *streamReader { return &streamReader{s: s} }

func (r *streamReader) Read(p []byte) (int, error) {
	n, err := r.s.ReadAt(p, r.pos)
	r.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (r *streamReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.pos = offset
	case io.SeekCurrent:
		r.pos += offset
	case io.SeekEnd:
		r.pos = r.s.Size() + offset
	}
	return r.pos, nil
}

// newMP3Decoder builds an engine.Decoder over an MP3 blob, via
// github.com/hajimehoshi/go-mp3 — the teacher's own MP3 backend
// (internal/player/gomp3.go).
func newMP3Decoder(s RandomAccessStream, bytesPerSecond int) (engine.Decoder, error) {
	r := newStreamReader(s)
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return engine.Decoder{}, err
	}
	const bytesPerFrame = 4 // 16-bit stereo PCM
	sampleRate := d.SampleRate()

	buf := make([]byte, 4096)
	positionMs := func(bytesRead int64) uint32 {
		return uint32(bytesRead * 1000 / int64(sampleRate*bytesPerFrame))
	}
	var bytesRead int64

	return engine.Decoder{
		NextPacket: func() (uint32, engine.AudioPacket, error) {
			n, rerr := d.Read(buf)
			if n == 0 {
				if rerr == io.EOF || rerr == nil {
					return 0, engine.AudioPacket{}, nil
				}
				return 0, engine.AudioPacket{}, rerr
			}
			samples := make([]float64, n/2)
			for i := range samples {
				v := int16(binary.LittleEndian.Uint16(buf[i*2:]))
				samples[i] = float64(v) / 32768.0
			}
			bytesRead += int64(n)
			return positionMs(bytesRead), engine.AudioPacket{Samples: samples}, nil
		},
		Seek: func(ms uint32) error {
			offset := int64(ms) * int64(bytesPerFrame) * int64(sampleRate) / 1000
			offset -= offset % bytesPerFrame
			if _, err := d.Seek(offset, io.SeekStart); err != nil {
				return err
			}
			bytesRead = offset
			return nil
		},
		Close:      func() error { return s.Close() },
		ReplayGain: func() (engine.NormalisationData, bool) { return parseMP3ReplayGain(s) },
	}, nil
}

// newVorbisDecoder builds an engine.Decoder over an OGG/Vorbis blob, via
// github.com/jfreymuth/oggvorbis (+ github.com/jfreymuth/vorbis), the
// teacher's own Vorbis backend (internal/player/oggcodec.go).
func newVorbisDecoder(s RandomAccessStream) (engine.Decoder, error) {
	r := newStreamReader(s)
	vr, err := oggvorbis.NewReader(r)
	if err != nil {
		return engine.Decoder{}, err
	}
	channels := vr.Channels()
	sampleRate := vr.SampleRate()

	buf := make([]float32, 4096)
	var samplesRead int64

	return engine.Decoder{
		NextPacket: func() (uint32, engine.AudioPacket, error) {
			n, rerr := vr.Read(buf)
			if n == 0 {
				if rerr == io.EOF || rerr == nil {
					return 0, engine.AudioPacket{}, nil
				}
				return 0, engine.AudioPacket{}, rerr
			}
			samples := make([]float64, n)
			for i := 0; i < n; i++ {
				samples[i] = float64(buf[i])
			}
			samplesRead += int64(n / channels)
			posMs := uint32(samplesRead * 1000 / int64(sampleRate))
			return posMs, engine.AudioPacket{Samples: samples}, nil
		},
		Seek: func(ms uint32) error {
			target := int64(ms) * int64(sampleRate) / 1000
			if err := vr.SetPosition(target); err != nil {
				return err
			}
			samplesRead = target
			return nil
		},
		Close: func() error { return s.Close() },
	}, nil
}

// newFLACDecoder builds an engine.Decoder over a FLAC blob, via
// github.com/mewkiz/flac. Arbitrary seeking is not implemented (see
// DESIGN.md); a Seek call always reports errSeekUnsupported, which the
// loader treats as "seek failed, fall back to position 0" per spec.md §4.2
// step 10.
func newFLACDecoder(s RandomAccessStream) (engine.Decoder, error) {
	r := newStreamReader(s)
	stream, err := flac.New(r)
	if err != nil {
		return engine.Decoder{}, err
	}
	sampleRate := int(stream.Info.SampleRate)
	channels := int(stream.Info.NChannels)
	maxAmplitude := float64(int64(1) << (stream.Info.BitsPerSample - 1))

	var samplesRead int64

	return engine.Decoder{
		NextPacket: func() (uint32, engine.AudioPacket, error) {
			frame, ferr := stream.ParseNext()
			if ferr != nil {
				if ferr == io.EOF {
					return 0, engine.AudioPacket{}, nil
				}
				return 0, engine.AudioPacket{}, ferr
			}
			blockSize := len(frame.Subframes[0].Samples)
			samples := make([]float64, 0, blockSize*channels)
			for i := 0; i < blockSize; i++ {
				for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
					samples = append(samples, float64(frame.Subframes[ch].Samples[i])/maxAmplitude)
				}
			}
			samplesRead += int64(blockSize)
			posMs := uint32(samplesRead * 1000 / int64(sampleRate))
			return posMs, engine.AudioPacket{Samples: samples}, nil
		},
		Seek: func(uint32) error { return errSeekUnsupported },
		Close: func() error {
			stream.Close()
			return s.Close()
		},
		ReplayGain: func() (engine.NormalisationData, bool) { return parseFLACReplayGain(s) },
	}, nil
}

// newPassthroughDecoder forwards raw bytes unmodified, standing in for
// formats the engine hands to a hardware/bitstream decoder (spec.md's
// "passthrough if configured") and for AAC, which this fixture catalog does
// not ship real assets for (see DESIGN.md).
func newPassthroughDecoder(s RandomAccessStream, bytesPerSecond int) engine.Decoder {
	r := newStreamReader(s)
	buf := make([]byte, 4096)
	var bytesRead int64

	return engine.Decoder{
		NextPacket: func() (uint32, engine.AudioPacket, error) {
			n, err := r.Read(buf)
			if n == 0 {
				if err == io.EOF || err == nil {
					return 0, engine.AudioPacket{}, nil
				}
				return 0, engine.AudioPacket{}, err
			}
			bytesRead += int64(n)
			posMs := uint32(bytesRead * 1000 / int64(bytesPerSecond))
			raw := make([]byte, n)
			copy(raw, buf[:n])
			return posMs, engine.AudioPacket{Raw: raw, Passthrough: true}, nil
		},
		Seek:  func(uint32) error { return errSeekUnsupported },
		Close: func() error { return s.Close() },
	}
}

// parseMP3ReplayGain reads an ID3v2 TXXX REPLAYGAIN_* frame from the start
// of an MP3 blob, used for spec.md §4.2 step 9's non-OGG normalisation
// fallback. Extended headers and anything but the common case are left
// alone; a parse failure just means no replaygain data was found.
func parseMP3ReplayGain(s RandomAccessStream) (engine.NormalisationData, bool) {
	hdr := make([]byte, 10)
	if n, err := s.ReadAt(hdr, 0); err != nil && n < 10 {
		return engine.NormalisationData{}, false
	}
	if string(hdr[0:3]) != "ID3" {
		return engine.NormalisationData{}, false
	}
	major := hdr[3]
	flags := hdr[5]
	if flags&0x40 != 0 {
		return engine.NormalisationData{}, false // extended header, not handled
	}
	tagSize := syncsafeUint32(hdr[6:10])
	body := make([]byte, tagSize)
	if n, _ := s.ReadAt(body, 10); n < len(body) {
		return engine.NormalisationData{}, false
	}

	var norm engine.NormalisationData
	found := false
	pos := 0
	for pos+10 <= len(body) {
		frameID := string(body[pos : pos+4])
		if frameID == "\x00\x00\x00\x00" {
			break
		}
		var frameSize uint32
		if major >= 4 {
			frameSize = syncsafeUint32(body[pos+4 : pos+8])
		} else {
			frameSize = binary.BigEndian.Uint32(body[pos+4 : pos+8])
		}
		frameStart := pos + 10
		frameEnd := frameStart + int(frameSize)
		if frameSize == 0 || frameEnd > len(body) {
			break
		}
		if frameID == "TXXX" {
			if desc, value, ok := parseTXXXFrame(body[frameStart:frameEnd]); ok {
				switch strings.ToUpper(desc) {
				case "REPLAYGAIN_TRACK_GAIN":
					if v, err := parseReplayGainDB(value); err == nil {
						norm.TrackGainDB = v
						found = true
					}
				case "REPLAYGAIN_TRACK_PEAK":
					if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
						norm.TrackPeak = v
						found = true
					}
				case "REPLAYGAIN_ALBUM_GAIN":
					if v, err := parseReplayGainDB(value); err == nil {
						norm.AlbumGainDB = v
						found = true
					}
				case "REPLAYGAIN_ALBUM_PEAK":
					if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
						norm.AlbumPeak = v
						found = true
					}
				}
			}
		}
		pos = frameEnd
	}
	return norm, found
}

// parseTXXXFrame splits an ID3v2 TXXX frame body into its description and
// value, handling the Latin-1/UTF-8 (encoding 0/3) and UTF-16 (encoding 1/2)
// cases; any text outside the ASCII range in a UTF-16 frame is treated as
// unparseable rather than risk mis-decoding it.
func parseTXXXFrame(body []byte) (desc, value string, ok bool) {
	if len(body) < 1 {
		return "", "", false
	}
	encoding := body[0]
	rest := body[1:]
	switch encoding {
	case 0, 3: // ISO-8859-1 or UTF-8, null-terminated
		i := bytes.IndexByte(rest, 0)
		if i < 0 {
			return "", "", false
		}
		return string(rest[:i]), strings.TrimRight(string(rest[i+1:]), "\x00"), true
	case 1, 2: // UTF-16 (with or without BOM), double-null-terminated
		descText, next, ok := decodeASCIIFromUTF16(rest)
		if !ok {
			return "", "", false
		}
		valueText, _, ok := decodeASCIIFromUTF16(rest[next:])
		if !ok {
			return "", "", false
		}
		return descText, valueText, true
	default:
		return "", "", false
	}
}

// decodeASCIIFromUTF16 decodes a single null-terminated UTF-16 string (LE or
// BE, with an optional leading BOM) into ASCII, returning the decoded text
// and the byte offset just past its null terminator. Only returns ok=true
// when every code unit was representable as ASCII, since replaygain values
// always are in practice.
func decodeASCIIFromUTF16(b []byte) (text string, next int, ok bool) {
	littleEndian := true
	i := 0
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE {
		i = 2
	} else if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		littleEndian = false
		i = 2
	}
	var out []byte
	for i+1 < len(b) {
		var hi, lo byte
		if littleEndian {
			lo, hi = b[i], b[i+1]
		} else {
			hi, lo = b[i], b[i+1]
		}
		i += 2
		if hi == 0 && lo == 0 {
			return string(out), i, true
		}
		if hi != 0 || lo > 0x7F {
			return "", 0, false
		}
		out = append(out, lo)
	}
	return "", 0, false
}

// syncsafeUint32 decodes an ID3v2 syncsafe integer (7 significant bits per
// byte, MSB first).
func syncsafeUint32(b []byte) uint32 {
	return uint32(b[0])<<21 | uint32(b[1])<<14 | uint32(b[2])<<7 | uint32(b[3])
}

// parseReplayGainDB parses a ReplayGain gain value like "-3.55 dB" into a
// float64, tolerating the unit suffix and surrounding whitespace.
func parseReplayGainDB(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimRight(s, "dDbB \t"))
	return strconv.ParseFloat(s, 64)
}

// parseFLACReplayGain scans a FLAC blob's metadata blocks for a
// VORBIS_COMMENT block carrying REPLAYGAIN_* tags, used for spec.md §4.2
// step 9's non-OGG normalisation fallback.
func parseFLACReplayGain(s RandomAccessStream) (engine.NormalisationData, bool) {
	magic := make([]byte, 4)
	if n, err := s.ReadAt(magic, 0); err != nil && n < 4 {
		return engine.NormalisationData{}, false
	}
	if string(magic) != "fLaC" {
		return engine.NormalisationData{}, false
	}

	var norm engine.NormalisationData
	found := false
	offset := int64(4)
	for {
		hdr := make([]byte, 4)
		n, _ := s.ReadAt(hdr, offset)
		if n < 4 {
			break
		}
		last := hdr[0]&0x80 != 0
		blockType := hdr[0] &^ 0x80
		blockLen := int64(hdr[1])<<16 | int64(hdr[2])<<8 | int64(hdr[3])
		offset += 4

		if blockType == 4 { // VORBIS_COMMENT
			data := make([]byte, blockLen)
			if n, _ := s.ReadAt(data, offset); int64(n) == blockLen {
				if _, comments, ok := parseVorbisCommentBlock(data); ok {
					applyReplayGainComments(comments, &norm, &found)
				}
			}
		}

		offset += blockLen
		if last {
			break
		}
	}
	return norm, found
}

// parseVorbisCommentBlock decodes a raw Vorbis comment metadata block into
// its vendor string and an uppercased-key comment map.
func parseVorbisCommentBlock(data []byte) (vendor string, comments map[string]string, ok bool) {
	if len(data) < 4 {
		return "", nil, false
	}
	vendorLen := binary.LittleEndian.Uint32(data[0:4])
	pos := 4 + int(vendorLen)
	if pos+4 > len(data) {
		return "", nil, false
	}
	vendor = string(data[4:pos])
	count := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	comments = make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(data) {
			break
		}
		entryLen := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		if pos+int(entryLen) > len(data) {
			break
		}
		entry := string(data[pos : pos+int(entryLen)])
		pos += int(entryLen)
		if eq := strings.IndexByte(entry, '='); eq >= 0 {
			comments[strings.ToUpper(entry[:eq])] = entry[eq+1:]
		}
	}
	return vendor, comments, true
}

// applyReplayGainComments extracts REPLAYGAIN_* Vorbis comments into norm,
// setting *found when at least one was present.
func applyReplayGainComments(comments map[string]string, norm *engine.NormalisationData, found *bool) {
	if v, ok := comments["REPLAYGAIN_TRACK_GAIN"]; ok {
		if f, err := parseReplayGainDB(v); err == nil {
			norm.TrackGainDB = f
			*found = true
		}
	}
	if v, ok := comments["REPLAYGAIN_TRACK_PEAK"]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			norm.TrackPeak = f
			*found = true
		}
	}
	if v, ok := comments["REPLAYGAIN_ALBUM_GAIN"]; ok {
		if f, err := parseReplayGainDB(v); err == nil {
			norm.AlbumGainDB = f
			*found = true
		}
	}
	if v, ok := comments["REPLAYGAIN_ALBUM_PEAK"]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			norm.AlbumPeak = f
			*found = true
		}
	}
}
