package imaging

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is regardless of which pipeline produced them.
var (
	ErrCancelled            = errors.New("operation cancelled by user")
	ErrZeroSize             = errors.New("device size is reported as zero")
	ErrVerificationMismatch = errors.New("verification failed: hash mismatch")
	ErrSystemDriveUnknown   = errors.New("could not determine system drive")
	ErrUnsupported          = errors.New("device discovery is not supported on this platform")
)

// DiscoveryErrorKind classifies a DiscoveryError.
type DiscoveryErrorKind int

const (
	DiscoverySystemDriveUnknown DiscoveryErrorKind = iota + 1
	DiscoveryUnsupported
	DiscoveryIO
)

func (k DiscoveryErrorKind) String() string {
	switch k {
	case DiscoverySystemDriveUnknown:
		return "system drive unknown"
	case DiscoveryUnsupported:
		return "unsupported"
	case DiscoveryIO:
		return "i/o failure"
	default:
		return fmt.Sprintf("DiscoveryErrorKind(%d)", int(k))
	}
}

// DiscoveryError is returned by Discoverer implementations.
type DiscoveryError struct {
	Kind DiscoveryErrorKind
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("device discovery: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ReadErrorKind classifies a ReadError.
type ReadErrorKind int

const (
	ReadDeviceOpenFailed ReadErrorKind = iota + 1
	ReadZeroSize
	ReadIO
	ReadCancelled
)

func (k ReadErrorKind) String() string {
	switch k {
	case ReadDeviceOpenFailed:
		return "device open failed"
	case ReadZeroSize:
		return "zero size"
	case ReadIO:
		return "i/o failure"
	case ReadCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("ReadErrorKind(%d)", int(k))
	}
}

// ReadError is returned by Imager.Read.
type ReadError struct {
	Kind ReadErrorKind
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read: %v", e.Err)
	}
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteErrorKind classifies a WriteError.
type WriteErrorKind int

const (
	WriteDecompressFailed WriteErrorKind = iota + 1
	WriteDeviceOpenFailed
	WriteIO
	WriteCancelled
	WriteVerificationMismatch
)

func (k WriteErrorKind) String() string {
	switch k {
	case WriteDecompressFailed:
		return "decompress failed"
	case WriteDeviceOpenFailed:
		return "device open failed"
	case WriteIO:
		return "i/o failure"
	case WriteCancelled:
		return "cancelled"
	case WriteVerificationMismatch:
		return "verification mismatch"
	default:
		return fmt.Sprintf("WriteErrorKind(%d)", int(k))
	}
}

// WriteError is returned by Imager.Write, Imager.Verify and Imager.Materialize.
type WriteError struct {
	Kind WriteErrorKind
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write: %v", e.Err)
	}
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func readErr(kind ReadErrorKind, path string, err error) error {
	return &ReadError{Kind: kind, Path: path, Err: err}
}

func writeErr(kind WriteErrorKind, path string, err error) error {
	return &WriteError{Kind: kind, Path: path, Err: err}
}
