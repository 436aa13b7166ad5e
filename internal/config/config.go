// Package config loads symnav settings from an optional TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/phobologic/symnav/internal/fuzzy"
	"github.com/phobologic/symnav/internal/parse"
	"github.com/phobologic/symnav/internal/render"
)

// FileName is the config file looked up in the project root.
const FileName = ".symnav.toml"

// Config holds navigator settings.
type Config struct {
	// Workers is the number of files parsed concurrently; 0 means GOMAXPROCS.
	Workers int `toml:"workers"`
	// Depth limits how many directory levels are scanned; nil is unlimited.
	Depth *int `toml:"depth"`
	// Directory scopes scanning to a root-relative subtree.
	Directory string `toml:"directory"`
	// Exclude lists gitignore-syntax patterns of files never indexed.
	Exclude []string `toml:"exclude"`

	MaxFileSize         int64   `toml:"max_file_size"`
	MaxLineLength       int     `toml:"max_line_length"`
	MaxSuggestions      int     `toml:"max_suggestions"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`

	LogLevel string `toml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxFileSize:         parse.DefaultMaxFileSize,
		MaxLineLength:       render.DefaultMaxLineLength,
		MaxSuggestions:      fuzzy.DefaultLimit,
		SimilarityThreshold: fuzzy.DefaultThreshold,
		LogLevel:            "warn",
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadForRoot loads FileName from root if it exists.
func LoadForRoot(root string) (Config, error) {
	return Load(filepath.Join(root, FileName), true)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	case c.Depth != nil && *c.Depth < 0:
		return fmt.Errorf("depth must be >= 0, got %d", *c.Depth)
	case c.MaxFileSize < 0:
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	case c.MaxLineLength < 0:
		return fmt.Errorf("max_line_length must be >= 0, got %d", c.MaxLineLength)
	case c.MaxSuggestions < 0:
		return fmt.Errorf("max_suggestions must be >= 0, got %d", c.MaxSuggestions)
	case c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1:
		return fmt.Errorf("similarity_threshold must be within [0, 1], got %g", c.SimilarityThreshold)
	}
	return nil
}
