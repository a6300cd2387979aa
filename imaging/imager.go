package imaging

import (
	"github.com/rs/zerolog"
)

// Defaults for an Imager.
const (
	DefaultBlockSize       = 512
	DefaultChunkSize       = 1 * mb
	DefaultDecodeChunkSize = 8 * kb
)

// Imager runs the read, write and verify pipelines. Each call is synchronous
// and owns its file handles for its whole duration; an Imager holds no
// per-operation state and may be reused.
type Imager struct {
	// Opener opens the device side of every pipeline.
	Opener Opener
	// BlockSize is the minimum alignment for buffers and device transfers.
	// A device reporting a larger logical block size wins.
	BlockSize int
	// ChunkSize is the device transfer unit, rounded up to the block size.
	ChunkSize int
	// DecodeChunkSize is the copy unit while materializing compressed images.
	DecodeChunkSize int
	// TempDir holds decompressed images; empty means os.TempDir().
	TempDir string
	Digest  Digest
	Logger  zerolog.Logger
}

// New returns an Imager using raw device access and default sizes.
func New(logger zerolog.Logger) *Imager {
	return &Imager{
		Opener:          RawOpener{},
		BlockSize:       DefaultBlockSize,
		ChunkSize:       DefaultChunkSize,
		DecodeChunkSize: DefaultDecodeChunkSize,
		Digest:          DigestSHA256,
		Logger:          logger,
	}
}

func (im *Imager) opener() Opener {
	if im.Opener == nil {
		return RawOpener{}
	}
	return im.Opener
}

// geometry returns the alignment and chunk size to use with dev.
func (im *Imager) geometry(dev BlockDevice) (block, chunk int) {
	block = max(im.BlockSize, dev.BlockSize(), 1)
	chunk = im.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return block, roundUp(chunk, block)
}

func (im *Imager) decodeChunkSize() int {
	if im.DecodeChunkSize <= 0 {
		return DefaultDecodeChunkSize
	}
	return im.DecodeChunkSize
}
