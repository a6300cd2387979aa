package imaging

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// OpenMode selects read or write access for a device.
type OpenMode int

const (
	OpenRead OpenMode = iota
	OpenWrite
)

func (m OpenMode) String() string {
	if m == OpenWrite {
		return "write"
	}
	return "read"
}

// BlockDevice is an opened imaging target or source.
type BlockDevice interface {
	io.ReadWriteCloser
	// Size returns the exact capacity in bytes.
	Size() (uint64, error)
	// BlockSize returns the logical block size transfers must be aligned to.
	BlockSize() int
	Sync() error
}

// Opener opens block devices by path.
type Opener interface {
	Open(path string, mode OpenMode) (BlockDevice, error)
}

// fileDevice is a BlockDevice backed by an *os.File.
type fileDevice struct {
	*os.File
	blockSize int
	growable  bool
	sizeFn    func(*os.File) (uint64, error)
}

func (d *fileDevice) Size() (uint64, error) {
	return d.sizeFn(d.File)
}

func (d *fileDevice) BlockSize() int {
	return d.blockSize
}

// Growable reports whether writes past the current size extend the target.
func (d *fileDevice) Growable() bool {
	return d.growable
}

// FileOpener treats regular files as block devices: buffered I/O, size from
// stat. Useful for file-backed targets and simulated devices. Files are
// created on first write.
type FileOpener struct{}

func (FileOpener) Open(path string, mode OpenMode) (BlockDevice, error) {
	var (
		f   *os.File
		err error
	)
	if mode == OpenWrite {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, err
	}
	return &fileDevice{File: f, blockSize: 1, growable: true, sizeFn: statSize}, nil
}

// AutoOpener picks FileOpener for regular files and paths that do not exist
// yet, and RawOpener for everything else.
type AutoOpener struct{}

func (AutoOpener) Open(path string, mode OpenMode) (BlockDevice, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist), err == nil && info.Mode().IsRegular():
		return FileOpener{}.Open(path, mode)
	default:
		return RawOpener{}.Open(path, mode)
	}
}

func statSize(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() < 0 {
		return 0, fmt.Errorf("negative size for %s", f.Name())
	}
	return uint64(info.Size()), nil
}

// seekSize measures a device by seeking to its end, then rewinds.
func seekSize(f *os.File) (uint64, error) {
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return uint64(end), nil
}
