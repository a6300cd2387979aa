//go:build !linux

package main

import (
	"os"

	"github.com/rs/zerolog"
)

func hideControlEcho(*os.File) (restore func()) {
	return func() {}
}

func warnIfWSL(zerolog.Logger) {}
