package imaging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Write puts imagePath onto devicePath: decompress (if needed), write, then
// verify when requested. Each stage runs only if the previous one succeeded.
//
// Bytes already written are not rolled back on cancellation or failure. A
// verification mismatch is reported after the write has completed.
func (im *Imager) Write(imagePath, devicePath string, verify bool, flag *Flag, progress Progress) error {
	progress = orNop(progress)

	img, err := im.Materialize(imagePath, flag, progress)
	if err != nil {
		return err
	}
	defer func() {
		if err := img.Close(); err != nil {
			im.Logger.Warn().Err(err).Str("path", img.Path()).Msg("could not remove decompressed image")
		}
	}()

	length, err := im.writeDevice(img.Path(), devicePath, flag, progress)
	if err != nil {
		return err
	}

	if !verify {
		return nil
	}
	return im.verify(img.Path(), devicePath, length, flag, progress)
}

// writeDevice copies the plain image onto the device and returns the image
// length. The last chunk is zero-padded to the block size; progress only
// counts image bytes.
func (im *Imager) writeDevice(imagePath, devicePath string, flag *Flag, progress Progress) (uint64, error) {
	src, err := os.Open(imagePath)
	if err != nil {
		return 0, writeErr(WriteIO, imagePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, writeErr(WriteIO, imagePath, err)
	}
	length := uint64(info.Size())

	dev, err := im.opener().Open(devicePath, OpenWrite)
	if err != nil {
		return 0, writeErr(WriteDeviceOpenFailed, devicePath, err)
	}
	defer dev.Close()

	if err := checkCapacity(dev, length); err != nil {
		return 0, writeErr(WriteIO, devicePath, err)
	}

	progress.Start(StageWrite, length)
	im.Logger.Info().Str("image", imagePath).Str("device", devicePath).Uint64("bytes", length).Msg("writing image")
	start := time.Now()

	block, chunk := im.geometry(dev)
	buf := alignedBuffer(chunk, block)

	var written uint64
	for written < length {
		if flag.Stopped() {
			return written, writeErr(WriteCancelled, devicePath, ErrCancelled)
		}

		toRead := int(min(uint64(chunk), length-written))
		if _, err := io.ReadFull(src, buf[:toRead]); err != nil {
			return written, writeErr(WriteIO, imagePath, fmt.Errorf("reading image at offset %d: %w", written, err))
		}

		n := toRead
		if n%block != 0 {
			n = padToBlock(buf, toRead, block)
		}
		if _, err := dev.Write(buf[:n]); err != nil {
			return written, writeErr(WriteIO, devicePath, fmt.Errorf("writing at offset %d: %w", written, err))
		}

		written += uint64(toRead)
		progress.Update(StageWrite, written)
	}

	if err := dev.Sync(); err != nil {
		return written, writeErr(WriteIO, devicePath, fmt.Errorf("flushing device: %w", err))
	}

	im.Logger.Info().Str("device", devicePath).Uint64("bytes", written).Dur("elapsed", time.Since(start)).Msg("write complete")
	return length, nil
}

// checkCapacity refuses images larger than a fixed-size device. File-backed
// targets grow and are not checked.
func checkCapacity(dev BlockDevice, length uint64) error {
	if g, ok := dev.(interface{ Growable() bool }); ok && g.Growable() {
		return nil
	}
	size, err := dev.Size()
	if err != nil {
		return fmt.Errorf("querying device size: %w", err)
	}
	if size == 0 {
		return nil
	}
	if length > size {
		return fmt.Errorf("image (%d bytes) does not fit on device (%d bytes)", length, size)
	}
	return nil
}
