package imaging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Read copies the whole of devicePath into a new file at imagePath.
//
// The device size comes from the kernel; a device reporting zero bytes fails
// with ErrZeroSize before imagePath is created. When imagePath ends in a
// compressed suffix (.gz, .xz, .zst, .bz2) the image is compressed on the
// fly. On cancellation the partial image is removed.
func (im *Imager) Read(devicePath, imagePath string, flag *Flag, progress Progress) error {
	progress = orNop(progress)

	dev, err := im.opener().Open(devicePath, OpenRead)
	if err != nil {
		return readErr(ReadDeviceOpenFailed, devicePath, err)
	}
	defer dev.Close()

	size, err := dev.Size()
	if err != nil {
		return readErr(ReadIO, devicePath, fmt.Errorf("querying device size: %w", err))
	}
	if size == 0 {
		return readErr(ReadZeroSize, devicePath, ErrZeroSize)
	}

	progress.Start(StageRead, size)

	out, err := os.Create(imagePath)
	if err != nil {
		return readErr(ReadIO, imagePath, err)
	}

	format := DetectFormat(imagePath)
	im.Logger.Info().
		Str("device", devicePath).
		Str("image", imagePath).
		Str("format", format.String()).
		Uint64("bytes", size).
		Msg("reading device")
	start := time.Now()

	cw := &countingWriter{w: out}
	var sink io.Writer = cw
	var enc io.WriteCloser
	if format != FormatNone {
		enc, err = newEncoder(format, cw)
		if err != nil {
			out.Close()
			return readErr(ReadIO, imagePath, fmt.Errorf("creating %s encoder: %w", format, err))
		}
		sink = enc
	}

	err = im.copyDevice(sink, dev, size, flag, progress)
	if err == ErrCancelled {
		abandonImage(out, enc)
		if rerr := os.Remove(imagePath); rerr != nil {
			im.Logger.Warn().Err(rerr).Str("image", imagePath).Msg("could not remove partial image")
		}
		return readErr(ReadCancelled, devicePath, ErrCancelled)
	}

	if enc != nil {
		if cerr := enc.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return readErr(ReadIO, devicePath, err)
	}

	im.Logger.Info().
		Str("image", imagePath).
		Uint64("bytes", size).
		Int64("stored", cw.count).
		Dur("elapsed", time.Since(start)).
		Msg("read complete")
	return nil
}

// abandonImage releases a cancelled image. The file is closed before the
// encoder so the encoder's flush and trailer fail instead of reaching disk.
func abandonImage(out io.Closer, enc io.Closer) {
	_ = out.Close()
	if enc != nil {
		_ = enc.Close()
	}
}

// copyDevice moves size bytes from dev to w in aligned chunks, checking the
// flag before each chunk.
func (im *Imager) copyDevice(w io.Writer, dev BlockDevice, size uint64, flag *Flag, progress Progress) error {
	block, chunk := im.geometry(dev)
	buf := alignedBuffer(chunk, block)

	var total uint64
	for total < size {
		if flag.Stopped() {
			return ErrCancelled
		}

		toRead := int(min(uint64(chunk), size-total))
		if _, err := io.ReadAtLeast(dev, buf[:roundUp(toRead, block)], toRead); err != nil {
			return fmt.Errorf("reading at offset %d: %w", total, err)
		}
		if _, err := w.Write(buf[:toRead]); err != nil {
			return fmt.Errorf("writing image at offset %d: %w", total, err)
		}

		total += uint64(toRead)
		progress.Update(StageRead, total)
	}
	return nil
}
