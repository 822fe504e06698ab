package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/dateutil"
	"github.com/alnah/go-mdarchive/internal/embed"
	"github.com/alnah/go-mdarchive/internal/fileutil"
	"github.com/alnah/go-mdarchive/internal/hostenv"
	"github.com/alnah/go-mdarchive/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// appDirName is the directory searched under os.UserConfigDir.
const appDirName = "go-mdarchive"

// Field length limits.
const (
	MaxPathLength      = 4096    // PATH_MAX on Linux
	MaxSuffixLength    = 50      // ".archived", ".offline"
	MaxTitleLength     = 200     // HTML page title
	MaxUserAgentLength = 256     // User-Agent header
	MaxFallbackLength  = 1 << 16 // inline data URI or file path
)

// Numeric limits.
const (
	MaxConcurrency = 64
	MaxWorkers     = 8
)

// Config holds all configuration for archive runs.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Images  ImagesConfig  `yaml:"images"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Batch   BatchConfig   `yaml:"batch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// InputConfig defines input source options.
type InputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default input directory (empty = must specify)
}

// OutputConfig defines where archived documents go.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default output directory (empty = next to the source)
	Suffix     string `yaml:"suffix"`     // Inserted before the extension, default ".archived"; auto[:PATTERN] dates it
	HTML       bool   `yaml:"html"`       // Also write a self-contained HTML page
	Title      string `yaml:"title"`      // HTML page title (empty = file name)
}

// ImagesConfig controls how images are fetched and embedded.
type ImagesConfig struct {
	Policy      string `yaml:"policy"`      // fallback or propagate
	Concurrency int    `yaml:"concurrency"` // 0 = unbounded
	Timeout     string `yaml:"timeout"`     // Go duration, e.g. "30s"
	MaxSize     int64  `yaml:"maxSize"`     // bytes per image, 0 = library default
	UserAgent   string `yaml:"userAgent"`
	Sniff       bool   `yaml:"sniff"`    // detect content type from bytes when the server is vague
	Fallback    string `yaml:"fallback"` // data URI or path to a replacement image
}

// RuntimeConfig selects the encoding strategy.
type RuntimeConfig struct {
	Mode      string `yaml:"mode"`      // auto, server or browser
	Chrome    bool   `yaml:"chrome"`    // back browser mode with headless Chrome
	ChromeBin string `yaml:"chromeBin"` // Chrome binary (empty = ROD_BROWSER_BIN or download)
}

// BatchConfig controls parallel processing of many files.
type BatchConfig struct {
	Workers int `yaml:"workers"` // 0 = auto
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	File string `yaml:"file"` // node_exporter textfile path (empty = disabled)
}

// Validate checks field lengths and enumerated values.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	lengths := []struct {
		field string
		value string
		max   int
	}{
		{"input.defaultDir", c.Input.DefaultDir, MaxPathLength},
		{"output.defaultDir", c.Output.DefaultDir, MaxPathLength},
		{"output.suffix", c.Output.Suffix, MaxSuffixLength},
		{"output.title", c.Output.Title, MaxTitleLength},
		{"images.userAgent", c.Images.UserAgent, MaxUserAgentLength},
		{"images.fallback", c.Images.Fallback, MaxFallbackLength},
		{"runtime.chromeBin", c.Runtime.ChromeBin, MaxPathLength},
		{"metrics.file", c.Metrics.File, MaxPathLength},
	}
	for _, l := range lengths {
		if err := validateFieldLength(l.field, l.value, l.max); err != nil {
			return err
		}
	}

	if c.Output.Suffix != "" {
		if err := fileutil.ValidateSuffix(c.Output.Suffix); err != nil {
			return fmt.Errorf("%w: output.suffix: %v", ErrInvalidValue, err)
		}
		if _, err := dateutil.Stamp(c.Output.Suffix, time.Time{}); err != nil {
			return fmt.Errorf("%w: output.suffix: %v", ErrInvalidValue, err)
		}
	}

	if _, err := embed.ParsePolicy(c.Images.Policy); err != nil {
		return fmt.Errorf("%w: images.policy: %v", ErrInvalidValue, err)
	}
	if c.Images.Concurrency < 0 || c.Images.Concurrency > MaxConcurrency {
		return fmt.Errorf("%w: images.concurrency: must be between 0 and %d, got %d",
			ErrInvalidValue, MaxConcurrency, c.Images.Concurrency)
	}
	if c.Images.Timeout != "" {
		d, err := time.ParseDuration(c.Images.Timeout)
		if err != nil {
			return fmt.Errorf("%w: images.timeout: %v", ErrInvalidValue, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: images.timeout: must be positive, got %s", ErrInvalidValue, c.Images.Timeout)
		}
	}
	if c.Images.MaxSize < 0 {
		return fmt.Errorf("%w: images.maxSize: must not be negative, got %d", ErrInvalidValue, c.Images.MaxSize)
	}
	if strings.HasPrefix(c.Images.Fallback, datauri.Prefix) {
		if _, _, err := datauri.Decode(c.Images.Fallback); err != nil {
			return fmt.Errorf("%w: images.fallback: %v", ErrInvalidValue, err)
		}
	}

	if _, err := hostenv.ParseMode(c.Runtime.Mode); err != nil {
		return fmt.Errorf("%w: runtime.mode: %v", ErrInvalidValue, err)
	}

	if c.Batch.Workers < 0 || c.Batch.Workers > MaxWorkers {
		return fmt.Errorf("%w: batch.workers: must be between 0 and %d, got %d",
			ErrInvalidValue, MaxWorkers, c.Batch.Workers)
	}

	return nil
}

// ImageTimeout returns images.timeout as a duration, zero when unset or invalid.
func (c *Config) ImageTimeout() time.Duration {
	if c.Images.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Images.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a neutral configuration: every field at its zero
// value, so library defaults apply.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SearchPaths lists the files LoadConfig tries for a config name, in order.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, appDirName, name+ext))
		}
	}
	return paths
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries the current directory, then ~/.config/go-mdarchive/, .yaml before .yml.
func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
