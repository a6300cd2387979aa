package main

import (
	"errors"
	"fmt"
	"io/fs"

	"dskimg/imaging"
)

const (
	exitFailed     = 1
	exitPermission = 13
	exitCancelled  = 130
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, imaging.ErrCancelled):
		return exitCancelled
	case errors.Is(err, fs.ErrPermission):
		return exitPermission
	default:
		return exitFailed
	}
}

// describeError turns an operation error into the one line shown to the user.
func describeError(err error) string {
	var (
		readErr      *imaging.ReadError
		writeErr     *imaging.WriteError
		discoveryErr *imaging.DiscoveryError
	)

	switch {
	case errors.Is(err, imaging.ErrCancelled):
		return "operation cancelled"
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("%v, try with elevated privileges", err)
	case errors.As(err, &readErr) && readErr.Kind == imaging.ReadZeroSize:
		return fmt.Sprintf("%s reports a size of zero, is a medium inserted?", readErr.Path)
	case errors.As(err, &writeErr) && writeErr.Kind == imaging.WriteVerificationMismatch:
		return fmt.Sprintf("verification failed, %s does not match the image (%v)", writeErr.Path, writeErr.Err)
	case errors.As(err, &writeErr) && writeErr.Kind == imaging.WriteDecompressFailed:
		return fmt.Sprintf("could not decompress %s: %v", writeErr.Path, writeErr.Err)
	case errors.As(err, &discoveryErr) && discoveryErr.Kind == imaging.DiscoverySystemDriveUnknown:
		return "cannot tell which disk holds the running system, refusing to list devices"
	default:
		return err.Error()
	}
}
