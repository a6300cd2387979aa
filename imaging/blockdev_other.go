//go:build !linux && !darwin

package imaging

import "os"

// RawOpener opens devices with ordinary buffered I/O; this platform exposes
// no uncached mode through the file API.
type RawOpener struct{}

func (RawOpener) Open(path string, mode OpenMode) (BlockDevice, error) {
	flag := os.O_RDONLY
	if mode == OpenWrite {
		flag = os.O_WRONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	return &fileDevice{File: f, blockSize: 512, sizeFn: seekSize}, nil
}
