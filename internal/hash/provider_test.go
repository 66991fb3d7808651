package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestNew(t *testing.T) {
	for _, name := range []string{"xxh3", "sha256"} {
		p, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := New("md5")
	assert.Error(t, err)
}

func TestXXH3Digest(t *testing.T) {
	content := []byte("the quick brown fox")
	path := writeTemp(t, content)

	got, err := XXH3{}.File(path)
	require.NoError(t, err)

	want := fmt.Sprintf("%x", xxh3.Hash128(content).Bytes())
	assert.Equal(t, want, got)
}

func TestSHA256Digest(t *testing.T) {
	content := []byte("the quick brown fox")
	path := writeTemp(t, content)

	got, err := SHA256{}.File(path)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestDigestEmptyFile(t *testing.T) {
	path := writeTemp(t, nil)

	got, err := XXH3{}.File(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", xxh3.Hash128(nil).Bytes()), got)
}

func TestDigestLargeFileUsesMmapPath(t *testing.T) {
	// Above the mmap threshold; result must match the one-shot hash.
	content := make([]byte, mmapThreshold+12345)
	for i := range content {
		content[i] = byte(i)
	}
	path := writeTemp(t, content)

	got, err := XXH3{}.File(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", xxh3.Hash128(content).Bytes()), got)
}

func TestDigestMissingFile(t *testing.T) {
	_, err := XXH3{}.File(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
