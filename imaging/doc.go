// Package imaging reads block devices to image files and writes (possibly
// compressed) images back to block devices, with optional verification.
//
// Device discovery lists removable disks and never returns the disk backing
// the root filesystem. Reads and writes use unbuffered, block-aligned I/O
// where the platform allows it, report progress through a Progress sink and
// stop at the next chunk boundary once a Flag is stopped.
//
// Compressed images (.gz, .xz, .zst, .bz2) are decoded into a temporary file
// before anything touches the device, so the write knows the exact length up
// front and verification can re-read the plain bytes.
package imaging
