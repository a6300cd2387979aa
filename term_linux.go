//go:build linux

package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// hideControlEcho stops the terminal from printing ^C when the user
// interrupts an operation. The returned func restores the old settings.
func hideControlEcho(f *os.File) (restore func()) {
	fd := int(f.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return func() {}
	}

	saved := *termios
	termios.Lflag &^= unix.ECHOCTL
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return func() {}
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, &saved)
	}
}

// warnIfWSL notes that removable devices are usually not passed through to WSL.
func warnIfWSL(logger zerolog.Logger) {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return
	}
	if strings.Contains(strings.ToLower(string(data)), "microsoft") {
		logger.Warn().Msg("running inside WSL, USB and SD devices may not be visible")
	}
}
