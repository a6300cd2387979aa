package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Digest selects the hash used to compare image and device.
type Digest int

const (
	// DigestSHA256 is collision resistant, so a match also rules out a
	// deliberately altered medium.
	DigestSHA256 Digest = iota
	// DigestXXH64 is much cheaper and only detects accidental corruption.
	DigestXXH64
)

func (d Digest) String() string {
	switch d {
	case DigestXXH64:
		return "xxh64"
	default:
		return "sha256"
	}
}

// ParseDigest maps a name such as "sha256" or "xxhash" to a Digest.
func ParseDigest(name string) (Digest, error) {
	switch strings.ToLower(name) {
	case "", "sha256":
		return DigestSHA256, nil
	case "xxh64", "xxhash":
		return DigestXXH64, nil
	default:
		return 0, fmt.Errorf("unknown digest %q (want sha256 or xxh64)", name)
	}
}

func (d Digest) New() hash.Hash {
	if d == DigestXXH64 {
		return xxhash.New()
	}
	return sha256.New()
}

// Verify compares a plain image against the first len(image) bytes of the
// device. Compressed images are materialized first.
func (im *Imager) Verify(imagePath, devicePath string, flag *Flag, progress Progress) error {
	progress = orNop(progress)

	img, err := im.Materialize(imagePath, flag, progress)
	if err != nil {
		return err
	}
	defer img.Close()

	info, err := os.Stat(img.Path())
	if err != nil {
		return writeErr(WriteIO, imagePath, err)
	}
	return im.verify(img.Path(), devicePath, uint64(info.Size()), flag, progress)
}

// verify hashes length bytes of the image and the device in lockstep and
// compares the digests once both streams are consumed.
func (im *Imager) verify(imagePath, devicePath string, length uint64, flag *Flag, progress Progress) error {
	progress.Start(StageVerify, length)

	src, err := os.Open(imagePath)
	if err != nil {
		return writeErr(WriteIO, imagePath, err)
	}
	defer src.Close()

	dev, err := im.opener().Open(devicePath, OpenRead)
	if err != nil {
		return writeErr(WriteDeviceOpenFailed, devicePath, err)
	}
	defer dev.Close()

	block, chunk := im.geometry(dev)
	imageBuf := make([]byte, chunk)
	deviceBuf := alignedBuffer(chunk, block)
	imageHash, deviceHash := im.Digest.New(), im.Digest.New()

	start := time.Now()
	var done uint64
	for done < length {
		if flag.Stopped() {
			return writeErr(WriteCancelled, devicePath, ErrCancelled)
		}

		n := int(min(uint64(chunk), length-done))
		if _, err := io.ReadFull(src, imageBuf[:n]); err != nil {
			return writeErr(WriteIO, imagePath, fmt.Errorf("reading image at offset %d: %w", done, err))
		}
		if _, err := io.ReadAtLeast(dev, deviceBuf[:roundUp(n, block)], n); err != nil {
			return writeErr(WriteIO, devicePath, fmt.Errorf("reading device at offset %d: %w", done, err))
		}

		imageHash.Write(imageBuf[:n])
		deviceHash.Write(deviceBuf[:n])

		done += uint64(n)
		progress.Update(StageVerify, done)
	}

	imageSum, deviceSum := imageHash.Sum(nil), deviceHash.Sum(nil)
	if !bytes.Equal(imageSum, deviceSum) {
		return writeErr(WriteVerificationMismatch, devicePath, fmt.Errorf("%w: image %s, device %s",
			ErrVerificationMismatch, hex.EncodeToString(imageSum), hex.EncodeToString(deviceSum)))
	}

	im.Logger.Info().
		Str("device", devicePath).
		Str("digest", im.Digest.String()).
		Str("sum", hex.EncodeToString(imageSum)).
		Dur("elapsed", time.Since(start)).
		Msg("verification passed")
	return nil
}
