package main

import (
	"fmt"
	"strings"

	"dskimg/imaging"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the settings shared by all commands. Every key can come from
// a flag or from a DSKIMG_* environment variable (DSKIMG_CHUNK_SIZE etc).
type Config struct {
	LogLevel  string `mapstructure:"log-level"`
	ChunkSize int    `mapstructure:"chunk-size"`
	BlockSize int    `mapstructure:"block-size"`
	TempDir   string `mapstructure:"temp-dir"`
	Digest    string `mapstructure:"digest"`

	NoVerify  bool `mapstructure:"no-verify"`
	AssumeYes bool `mapstructure:"assume-yes"`
	Force     bool `mapstructure:"force"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "warn")
	v.SetDefault("chunk-size", imaging.DefaultChunkSize)
	v.SetDefault("block-size", imaging.DefaultBlockSize)
	v.SetDefault("temp-dir", "")
	v.SetDefault("digest", imaging.DigestSHA256.String())
	v.SetDefault("no-verify", false)
	v.SetDefault("assume-yes", false)
	v.SetDefault("force", false)
}

// loadConfig reads flags, environment and defaults. There is no config file.
func loadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("DSKIMG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level %q", c.LogLevel)
	}
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block-size must be a positive power of two, got %d", c.BlockSize)
	}
	if c.ChunkSize < c.BlockSize {
		return fmt.Errorf("chunk-size (%d) must be at least block-size (%d)", c.ChunkSize, c.BlockSize)
	}
	if _, err := imaging.ParseDigest(c.Digest); err != nil {
		return err
	}
	return nil
}

// newImager builds the imaging engine for a validated config.
func (c *Config) newImager(logger zerolog.Logger) *imaging.Imager {
	im := imaging.New(logger)
	im.Opener = imaging.AutoOpener{}
	im.BlockSize = c.BlockSize
	im.ChunkSize = c.ChunkSize
	im.TempDir = c.TempDir
	im.Digest, _ = imaging.ParseDigest(c.Digest)
	return im
}
