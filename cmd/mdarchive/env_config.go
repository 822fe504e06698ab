package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alnah/go-mdarchive/internal/config"
)

const envPrefix = "MDARCHIVE_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string // MDARCHIVE_CONFIG: config file name or path
	Policy     string // MDARCHIVE_POLICY: fallback or propagate
	Timeout    string // MDARCHIVE_TIMEOUT: per-image timeout

	// Tier 2 - I/O
	InputDir    string // MDARCHIVE_INPUT_DIR: default input directory
	OutputDir   string // MDARCHIVE_OUTPUT_DIR: default output directory
	MetricsFile string // MDARCHIVE_METRICS_FILE: Prometheus textfile path

	// Tier 3 - Extended
	Runtime     string // MDARCHIVE_RUNTIME: auto, server or browser
	ChromeBin   string // MDARCHIVE_CHROME_BIN: Chrome binary
	UserAgent   string // MDARCHIVE_USER_AGENT: User-Agent header
	Concurrency int    // MDARCHIVE_CONCURRENCY: images in flight per document
	Workers     int    // MDARCHIVE_WORKERS: parallel documents
}

// knownEnvVars lists valid MDARCHIVE_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	// Tier 1 - Essential
	"MDARCHIVE_CONFIG":  true,
	"MDARCHIVE_POLICY":  true,
	"MDARCHIVE_TIMEOUT": true,
	// Tier 2 - I/O
	"MDARCHIVE_INPUT_DIR":    true,
	"MDARCHIVE_OUTPUT_DIR":   true,
	"MDARCHIVE_METRICS_FILE": true,
	// Tier 3 - Extended
	"MDARCHIVE_RUNTIME":     true,
	"MDARCHIVE_CHROME_BIN":  true,
	"MDARCHIVE_USER_AGENT":  true,
	"MDARCHIVE_CONCURRENCY": true,
	"MDARCHIVE_WORKERS":     true,
	// Read by doctor only
	"MDARCHIVE_CONTAINER": true,
}

// loadEnvConfig reads configuration from environment variables.
// Returns a struct with all recognized MDARCHIVE_* values.
func loadEnvConfig(getenv func(string) string) *envConfig {
	cfg := &envConfig{
		ConfigPath:  getenv("MDARCHIVE_CONFIG"),
		Policy:      getenv("MDARCHIVE_POLICY"),
		Timeout:     getenv("MDARCHIVE_TIMEOUT"),
		InputDir:    getenv("MDARCHIVE_INPUT_DIR"),
		OutputDir:   getenv("MDARCHIVE_OUTPUT_DIR"),
		MetricsFile: getenv("MDARCHIVE_METRICS_FILE"),
		Runtime:     getenv("MDARCHIVE_RUNTIME"),
		ChromeBin:   getenv("MDARCHIVE_CHROME_BIN"),
		UserAgent:   getenv("MDARCHIVE_USER_AGENT"),
	}

	// Malformed numbers are ignored, like unset ones.
	if v := getenv("MDARCHIVE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if v := getenv("MDARCHIVE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized MDARCHIVE_* variables.
// Helps catch typos like MDARCHIVE_POLICIES instead of MDARCHIVE_POLICY.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, env := range environ {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Only sets values if the env var is set AND the config value is empty/zero.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Policy != "" && cfg.Images.Policy == "" {
		cfg.Images.Policy = env.Policy
	}
	if env.Timeout != "" && cfg.Images.Timeout == "" {
		cfg.Images.Timeout = env.Timeout
	}

	if env.InputDir != "" && cfg.Input.DefaultDir == "" {
		cfg.Input.DefaultDir = env.InputDir
	}
	if env.OutputDir != "" && cfg.Output.DefaultDir == "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
	if env.MetricsFile != "" && cfg.Metrics.File == "" {
		cfg.Metrics.File = env.MetricsFile
	}

	if env.Runtime != "" && cfg.Runtime.Mode == "" {
		cfg.Runtime.Mode = env.Runtime
	}
	// A Chrome binary implies Chrome-backed encoding.
	if env.ChromeBin != "" && cfg.Runtime.ChromeBin == "" {
		cfg.Runtime.ChromeBin = env.ChromeBin
		cfg.Runtime.Chrome = true
	}
	if env.UserAgent != "" && cfg.Images.UserAgent == "" {
		cfg.Images.UserAgent = env.UserAgent
	}
	if env.Concurrency > 0 && cfg.Images.Concurrency == 0 {
		cfg.Images.Concurrency = env.Concurrency
	}
	if env.Workers > 0 && cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = env.Workers
	}
}
