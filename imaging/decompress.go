package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DecompressedImage is a plain image ready to be written. When the source was
// compressed it owns a temporary file that Close removes; otherwise it points
// at the caller's file and Close does nothing.
type DecompressedImage struct {
	path   string
	format Format
	owned  bool
}

// Path returns the plain image path. The file is complete once returned.
func (d *DecompressedImage) Path() string { return d.path }

// Format is the format the source was decoded from.
func (d *DecompressedImage) Format() Format { return d.format }

// Owned reports whether Path is a temporary file removed by Close.
func (d *DecompressedImage) Owned() bool { return d.owned }

// Close removes the temporary file, if any. It is safe to call repeatedly.
func (d *DecompressedImage) Close() error {
	if d == nil || !d.owned {
		return nil
	}
	d.owned = false
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Materialize fully decodes a compressed image into a temporary file so it
// can be sized exactly and read twice (write, then verify). Raw images are
// passed through without copying. Cancellation and failures leave no
// temporary file behind.
func (im *Imager) Materialize(imagePath string, flag *Flag, progress Progress) (*DecompressedImage, error) {
	progress = orNop(progress)
	progress.Start(StageDecompress, 0)

	format := DetectFormat(imagePath)
	if format == FormatNone {
		return &DecompressedImage{path: imagePath, format: FormatNone}, nil
	}

	src, err := os.Open(imagePath)
	if err != nil {
		return nil, writeErr(WriteDecompressFailed, imagePath, err)
	}
	defer src.Close()

	r, decoder, err := newDecoder(format, src)
	if err != nil {
		return nil, writeErr(WriteDecompressFailed, imagePath, fmt.Errorf("opening %s stream: %w", format, err))
	}
	defer decoder.Close()

	tmp, err := os.CreateTemp(im.TempDir, "dskimg-*.img")
	if err != nil {
		return nil, writeErr(WriteDecompressFailed, imagePath, fmt.Errorf("creating temporary file: %w", err))
	}
	tmpPath := tmp.Name()

	im.Logger.Debug().Str("image", imagePath).Str("format", format.String()).Str("temp", tmpPath).Msg("decompressing image")
	start := time.Now()

	total, err := im.decodeInto(tmp, r, flag, progress)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, ErrCancelled) {
			return nil, writeErr(WriteCancelled, imagePath, ErrCancelled)
		}
		return nil, writeErr(WriteDecompressFailed, imagePath, err)
	}

	im.Logger.Info().
		Str("image", imagePath).
		Uint64("bytes", total).
		Dur("elapsed", time.Since(start)).
		Msg("image decompressed")

	return &DecompressedImage{path: tmpPath, format: format, owned: true}, nil
}

func (im *Imager) decodeInto(dst *os.File, r io.Reader, flag *Flag, progress Progress) (uint64, error) {
	w := bufio.NewWriterSize(dst, DefaultChunkSize)
	buf := make([]byte, im.decodeChunkSize())

	var total uint64
	for {
		if flag.Stopped() {
			return total, ErrCancelled
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += uint64(n)
			progress.Update(StageDecompress, total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
	}

	return total, w.Flush()
}
