// Package engine implements the player engine: the state machine that owns
// the currently loaded track, drives preloading of the next track, applies
// loudness normalisation, and coordinates the background loader with the
// foreground decode/playback loop.
package engine

import (
	"encoding/hex"
	"errors"
	"math/big"
)

// base62Alphabet matches the textual encoding used throughout the catalog
// and control-plane JSON payloads.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TrackID is an opaque 128-bit track identifier.
type TrackID [16]byte

// ErrInvalidTrackID is returned by ParseTrackID for malformed input.
var ErrInvalidTrackID = errors.New("engine: invalid track id")

// ParseTrackID decodes a base-62 textual track id.
func ParseTrackID(s string) (TrackID, error) {
	if s == "" {
		return TrackID{}, ErrInvalidTrackID
	}

	base := big.NewInt(62)
	n := new(big.Int)
	for _, r := range s {
		idx := indexByte(base62Alphabet, byte(r))
		if idx < 0 {
			return TrackID{}, ErrInvalidTrackID
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(idx)))
	}

	raw := n.Bytes()
	if len(raw) > 16 {
		return TrackID{}, ErrInvalidTrackID
	}

	var id TrackID
	copy(id[16-len(raw):], raw)
	return id, nil
}

// MustParseTrackID is ParseTrackID, panicking on error. Intended for tests
// and fixture construction, never for request-path parsing.
func MustParseTrackID(s string) TrackID {
	id, err := ParseTrackID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the track id in base-62.
func (id TrackID) String() string {
	n := new(big.Int).SetBytes(id[:])
	if n.Sign() == 0 {
		return "0"
	}

	base := big.NewInt(62)
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, base62Alphabet[mod.Int64()])
	}
	reverse(out)
	return string(out)
}

// Hex renders the track id as a hex string, used for stable map/log keys.
func (id TrackID) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the id is the zero value.
func (id TrackID) IsZero() bool {
	return id == TrackID{}
}

func indexByte(alphabet string, b byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == b {
			return i
		}
	}
	return -1
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
