package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tstromberg/photomark/pkg/toolchain"
)

// Config holds configuration for a photomark run.
type Config struct {
	InDir    string `yaml:"in_dir"`
	OutDir   string `yaml:"out_dir"`
	FullDir  string `yaml:"full_dir"`
	ThumbDir string `yaml:"thumb_dir"`
	TempDir  string `yaml:"temp_dir"`

	Toolchain    string `yaml:"toolchain"`
	Metadata     string `yaml:"metadata"`
	MagickBinary string `yaml:"magick_binary"`
	Font         string `yaml:"font"`
	Quality      int    `yaml:"quality"`

	// Force reprocesses sources whose outputs are already up to date.
	Force bool `yaml:"force"`
}

// ApplyDefaults fills zero/empty fields with defaults derived from OutDir.
func (c *Config) ApplyDefaults() {
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.FullDir == "" {
		c.FullDir = filepath.Join(c.OutDir, "full")
	}
	if c.ThumbDir == "" {
		c.ThumbDir = filepath.Join(c.OutDir, "thumbs")
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "photomark")
	}
	if c.Toolchain == "" {
		c.Toolchain = toolchain.BackendNative
	}
	if c.Metadata == "" {
		c.Metadata = toolchain.MetadataGoexif
	}
	if c.Quality == 0 {
		c.Quality = toolchain.DefaultQuality
	}
}

// ToolchainOptions returns the options used to construct the configured toolchain.
func (c *Config) ToolchainOptions() toolchain.Options {
	return toolchain.Options{
		Backend:      c.Toolchain,
		Metadata:     c.Metadata,
		Font:         c.Font,
		Quality:      c.Quality,
		MagickBinary: c.MagickBinary,
	}
}

// LoadConfig reads the YAML config file at path.
// A missing or empty file yields an empty Config; call ApplyDefaults once flags are merged.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if path == "" {
		return &c, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return &c, nil
}
