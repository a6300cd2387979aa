package imaging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writtenDevice writes a fresh image to a file-backed device and returns both paths.
func writtenDevice(t *testing.T, im *Imager, length int) (image, device string) {
	t.Helper()
	dir := t.TempDir()
	image = writeFile(t, filepath.Join(dir, "disk.img"), randomBytes(length, int64(length)))
	device = filepath.Join(dir, "target")
	require.NoError(t, im.Write(image, device, false, NewFlag(), nil))
	return image, device
}

func corruptByte(t *testing.T, path string, offset int64) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	b := make([]byte, 1)
	_, err = f.ReadAt(b, offset)
	require.NoError(t, err)
	b[0] ^= 0xFF
	_, err = f.WriteAt(b, offset)
	require.NoError(t, err)
}

func TestVerifyIsRepeatable(t *testing.T) {
	im := newTestImager(t)
	image, device := writtenDevice(t, im, 4*testChunk+300)

	for i := 0; i < 2; i++ {
		rec := &recorder{}
		require.NoError(t, im.Verify(image, device, NewFlag(), rec))
		total, ok := rec.startTotal(StageVerify)
		require.True(t, ok)
		assert.Equal(t, uint64(4*testChunk+300), total)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	im := newTestImager(t)
	image, device := writtenDevice(t, im, 4*testChunk)
	corruptByte(t, device, 2*testChunk+17)

	for i := 0; i < 2; i++ {
		err := im.Verify(image, device, NewFlag(), nil)
		require.ErrorIs(t, err, ErrVerificationMismatch)

		var writeErr *WriteError
		require.True(t, errors.As(err, &writeErr))
		assert.Equal(t, WriteVerificationMismatch, writeErr.Kind)
	}
}

func TestVerifyIgnoresBytesPastImage(t *testing.T) {
	im := newTestImager(t)
	image, device := writtenDevice(t, im, 2*testChunk)

	f, err := os.OpenFile(device, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write(randomBytes(testChunk, 99))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.NoError(t, im.Verify(image, device, NewFlag(), nil))
}

func TestVerifyXXH64(t *testing.T) {
	im := newTestImager(t)
	im.Digest = DigestXXH64
	image, device := writtenDevice(t, im, 3*testChunk)

	require.NoError(t, im.Verify(image, device, NewFlag(), nil))

	corruptByte(t, device, 0)
	assert.ErrorIs(t, im.Verify(image, device, NewFlag(), nil), ErrVerificationMismatch)
}

func TestVerifyCompressedImage(t *testing.T) {
	im := newTestImager(t)
	dir := t.TempDir()
	data := randomBytes(3*testChunk, 21)
	device := writeFile(t, filepath.Join(dir, "target"), data)
	image := compressFixture(t, dir, "disk.img.xz", FormatXZ, data)

	require.NoError(t, im.Verify(image, device, NewFlag(), nil))
	requireEmptyDir(t, im.TempDir)
}

func TestVerifyShortDevice(t *testing.T) {
	im := newTestImager(t)
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "disk.img"), randomBytes(2*testChunk, 22))
	device := writeFile(t, filepath.Join(dir, "target"), randomBytes(testChunk, 22))

	err := im.Verify(image, device, NewFlag(), nil)
	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, WriteIO, writeErr.Kind)
}

func TestVerifyCancelled(t *testing.T) {
	im := newTestImager(t)
	image, device := writtenDevice(t, im, 6*testChunk)

	flag := NewFlag()
	rec := &recorder{onUpdate: stopAfter(flag, StageVerify, testChunk)}
	err := im.Verify(image, device, flag, rec)

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, WriteCancelled, writeErr.Kind)
	assert.Len(t, rec.updates(StageVerify), 1)
}

func TestParseDigest(t *testing.T) {
	tests := []struct {
		in      string
		want    Digest
		wantErr bool
	}{
		{in: "", want: DigestSHA256},
		{in: "sha256", want: DigestSHA256},
		{in: "SHA256", want: DigestSHA256},
		{in: "xxh64", want: DigestXXH64},
		{in: "xxhash", want: DigestXXH64},
		{in: "md5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDigest(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, name string) Digest {
	t.Helper()
	d, err := ParseDigest(name)
	require.NoError(t, err)
	return d
}
