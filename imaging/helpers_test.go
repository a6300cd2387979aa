package imaging

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testBlock = 512
	testChunk = 4096
)

// newTestImager uses file-backed devices and a small chunk so multi-chunk
// behaviour is exercised with small fixtures.
func newTestImager(t *testing.T) *Imager {
	t.Helper()
	return &Imager{
		Opener:          FileOpener{},
		BlockSize:       testBlock,
		ChunkSize:       testChunk,
		DecodeChunkSize: 1024,
		TempDir:         t.TempDir(),
		Digest:          DigestSHA256,
		Logger:          zerolog.Nop(),
	}
}

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// compressFixture writes data encoded as format to dir/name.
func compressFixture(t *testing.T, dir, name string, format Format, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	enc, err := newEncoder(format, &buf)
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return writeFile(t, filepath.Join(dir, name), buf.Bytes())
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "expected %s to be empty", dir)
}

type progressEvent struct {
	start bool
	stage Stage
	value uint64
}

// recorder captures progress events and can run a hook on every update.
type recorder struct {
	events   []progressEvent
	onUpdate func(stage Stage, done uint64)
}

func (r *recorder) Start(stage Stage, total uint64) {
	r.events = append(r.events, progressEvent{start: true, stage: stage, value: total})
}

func (r *recorder) Update(stage Stage, done uint64) {
	r.events = append(r.events, progressEvent{stage: stage, value: done})
	if r.onUpdate != nil {
		r.onUpdate(stage, done)
	}
}

func (r *recorder) starts() []Stage {
	var out []Stage
	for _, e := range r.events {
		if e.start {
			out = append(out, e.stage)
		}
	}
	return out
}

func (r *recorder) startTotal(stage Stage) (uint64, bool) {
	for _, e := range r.events {
		if e.start && e.stage == stage {
			return e.value, true
		}
	}
	return 0, false
}

func (r *recorder) updates(stage Stage) []uint64 {
	var out []uint64
	for _, e := range r.events {
		if !e.start && e.stage == stage {
			out = append(out, e.value)
		}
	}
	return out
}

// stopAfter stops flag once stage has reported done bytes.
func stopAfter(flag *Flag, stage Stage, done uint64) func(Stage, uint64) {
	return func(s Stage, n uint64) {
		if s == stage && n >= done {
			flag.Stop()
		}
	}
}
