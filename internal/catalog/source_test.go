package catalog

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waves-audio/engine/internal/engine"
)

// encryptFixture produces ciphertext using the same scheme ctrStream
// decrypts with: AES-CTR, IV derived from the block-aligned offset. CTR is
// its own inverse, so encrypting at offset 0 with this function is exactly
// what ctrStream.ReadAt must undo.
func encryptFixture(t *testing.T, key, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	var iv [aes.BlockSize]byte
	out := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv[:]).XORKeyStream(out, plaintext)
	return out
}

func writeFixtureCatalog(t *testing.T, entries []manifestEntry, keys map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	m := manifest{Tracks: entries, Keys: keys}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644))
	return dir
}

func TestFileSource_ResolveAndOpenPlain(t *testing.T) {
	id := "4c4wS"
	dir := writeFixtureCatalog(t, []manifestEntry{
		{
			TrackID:    id,
			DurationMs: 1000,
			Files:      map[string]string{"OGG_VORBIS_160": "track.ogg"},
		},
	}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "track.ogg"), []byte("plain audio bytes"), 0o644))

	src, err := OpenFileSource(dir)
	require.NoError(t, err)

	item, err := src.Resolve(t.Context(), engine.MustParseTrackID(id))
	require.NoError(t, err)
	assert.Equal(t, Available, item.Availability)
	assert.Equal(t, int64(1000), item.DurationMs)
	assert.Equal(t, "track.ogg", item.Files[FormatOggVorbis160])

	stream, err := src.Open(t.Context(), "track.ogg")
	require.NoError(t, err)
	defer stream.Close()

	buf := make([]byte, len("plain audio bytes"))
	n, err := stream.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "plain audio bytes", string(buf[:n]))
}

func TestFileSource_EncryptedBlobDecryptsOnRead(t *testing.T) {
	key := []byte("0123456789abcdef")
	plaintext := make([]byte, 5000)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	ciphertext := encryptFixture(t, key, plaintext)

	id := "4c4wS"
	dir := writeFixtureCatalog(t, []manifestEntry{
		{TrackID: id, Files: map[string]string{"MP3_160": "track.mp3"}},
	}, map[string]string{"track.mp3": hex.EncodeToString(key)})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "track.mp3"), ciphertext, 0o644))

	src, err := OpenFileSource(dir)
	require.NoError(t, err)

	stream, err := src.Open(t.Context(), "track.mp3")
	require.NoError(t, err)
	defer stream.Close()

	// Read a range that starts mid-block, to exercise the intra-block skip.
	const off = 1000
	buf := make([]byte, 500)
	n, err := stream.ReadAt(buf, off)
	require.NoError(t, err)
	assert.Equal(t, plaintext[off:off+500], buf[:n])

	key2, err := src.DecryptionKey(t.Context(), "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, key, key2)
}

func TestFileSource_DecryptionKeyUnavailable(t *testing.T) {
	dir := writeFixtureCatalog(t, []manifestEntry{
		{TrackID: "4c4wS", Files: map[string]string{"MP3_160": "track.mp3"}},
	}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "track.mp3"), []byte("x"), 0o644))

	src, err := OpenFileSource(dir)
	require.NoError(t, err)

	_, err = src.DecryptionKey(t.Context(), "track.mp3")
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestFileSource_ResolveNotFound(t *testing.T) {
	dir := writeFixtureCatalog(t, nil, nil)
	src, err := OpenFileSource(dir)
	require.NoError(t, err)

	_, err = src.Resolve(t.Context(), engine.MustParseTrackID("4c4wS"))
	assert.ErrorIs(t, err, ErrTrackNotFound)
}
