package main

import (
	"testing"

	"dskimg/imaging"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, imaging.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, imaging.DefaultBlockSize, cfg.BlockSize)
	assert.Equal(t, "sha256", cfg.Digest)
	assert.False(t, cfg.NoVerify)
	assert.False(t, cfg.AssumeYes)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DSKIMG_CHUNK_SIZE", "4194304")
	t.Setenv("DSKIMG_DIGEST", "xxh64")
	t.Setenv("DSKIMG_NO_VERIFY", "true")
	t.Setenv("DSKIMG_TEMP_DIR", "/var/tmp")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4*mb, cfg.ChunkSize)
	assert.True(t, cfg.NoVerify)

	im := cfg.newImager(zerolog.Nop())
	assert.Equal(t, imaging.DigestXXH64, im.Digest)
	assert.Equal(t, "/var/tmp", im.TempDir)
	assert.Equal(t, 4*mb, im.ChunkSize)
	assert.IsType(t, imaging.AutoOpener{}, im.Opener)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{LogLevel: "info", ChunkSize: mb, BlockSize: 512, Digest: "sha256"}
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"bad level":         func(c *Config) { c.LogLevel = "loud" },
		"zero block":        func(c *Config) { c.BlockSize = 0 },
		"odd block":         func(c *Config) { c.BlockSize = 520 },
		"chunk below block": func(c *Config) { c.ChunkSize = 256 },
		"unknown digest":    func(c *Config) { c.Digest = "crc32" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
