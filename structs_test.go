package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 bytes", formatBytes(0))
	assert.Equal(t, "1023 bytes", formatBytes(1023))
	assert.Equal(t, "1.00 KB", formatBytes(kb))
	assert.Equal(t, "1.50 KB", formatBytes(uint64(1536)))
	assert.Equal(t, "29.72 GB", formatBytes(uint64(31914983424)))
	assert.Equal(t, "2.00 TB", formatBytes(int64(2*tb)))
	assert.Equal(t, "-2.00 KB", formatBytes(-2048))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "N/A", formatSpeed(0))
	assert.Equal(t, "N/A", formatSpeed(-1))
	assert.Equal(t, "2.00 MB/s", formatSpeed(2*mb))
}
