//go:build !linux

package imaging

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// unsupportedDiscoverer fails every scan so callers can tell "not
// implemented here" apart from "no devices".
type unsupportedDiscoverer struct{}

// NewDiscoverer returns the discoverer for the running platform.
func NewDiscoverer(logger zerolog.Logger) Discoverer {
	return unsupportedDiscoverer{}
}

func (unsupportedDiscoverer) Discover() ([]Device, error) {
	return nil, &DiscoveryError{
		Kind: DiscoveryUnsupported,
		Err:  fmt.Errorf("%w (%s)", ErrUnsupported, runtime.GOOS),
	}
}
