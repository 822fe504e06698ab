package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	prom "github.com/prometheus/client_golang/prometheus"

	mdarchive "github.com/alnah/go-mdarchive"
	"github.com/alnah/go-mdarchive/internal/config"
	"github.com/alnah/go-mdarchive/internal/datauri"
	"github.com/alnah/go-mdarchive/internal/dateutil"
	"github.com/alnah/go-mdarchive/internal/fileutil"
	"github.com/alnah/go-mdarchive/internal/hints"
	"github.com/alnah/go-mdarchive/internal/metrics"
	"github.com/alnah/go-mdarchive/internal/yamlutil"
)

// Sentinel errors for archive setup.
var (
	ErrInvalidSize  = errors.New("invalid size")
	ErrReadFallback = errors.New("failed to read fallback image")
)

// poolFactory builds the archiver pool for a run; swapped in tests.
type poolFactory func(workers int, opts []mdarchive.Option) (Pool, error)

func defaultPoolFactory(workers int, opts []mdarchive.Option) (Pool, error) {
	p, err := newArchiverPool(workers, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// runArchive resolves configuration, archives every discovered document and
// writes the metrics textfile when asked.
func runArchive(ctx context.Context, positionalArgs []string, flags *archiveFlags, env *Environment, newPool poolFactory) error {
	// Validate worker count early
	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	envCfg := loadEnvConfig(env.Getenv)
	if !flags.common.quiet {
		warnUnknownEnvVars(env.Stderr, env.Environ())
	}

	cfg, err := loadConfig(flags.common.config, envCfg.ConfigPath)
	if err != nil {
		return err
	}

	// Precedence: flags > env > config file > defaults
	applyEnvConfig(envCfg, cfg)
	if err := mergeFlags(flags, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if flags.out.printConfig {
		out, err := yamlutil.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = env.Stdout.Write(out)
		return err
	}

	logger := newLogger(env, flags.common.quiet, flags.common.verbose)
	opts, registry, err := buildOptions(cfg, logger)
	if err != nil {
		return err
	}

	inputPath, err := resolveInputPath(positionalArgs, cfg)
	if err != nil {
		return err
	}
	if flags.watch && inputPath == stdioPath {
		return ErrWatchStdin
	}
	outputDir := resolveOutputDir(flags.output, cfg)
	suffix, err := resolveSuffix(cfg.Output.Suffix, env.Now())
	if err != nil {
		return err
	}

	files, err := discoverFiles(inputPath, outputDir, suffix, cfg.Output.HTML)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no markdown files found in %s", ErrNoInput, inputPath)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	pool, err := newPool(cfg.Batch.Workers, opts)
	if err != nil {
		return err
	}
	if flags.common.verbose {
		logger.Debug("archiving", "documents", len(files), "workers", pool.Size())
	}

	params := &batchParams{title: cfg.Output.Title, workDir: workDir}
	results := archiveBatch(ctx, pool, files, params, env)
	summary := printResultsWithWriter(results, flags.common.quiet, flags.common.verbose, env)

	var runErr error
	if summary.Failed > 0 {
		runErr = fmt.Errorf("%d of %d document(s) failed: %w", summary.Failed, len(results), firstError(results))
	}

	if flags.watch && ctx.Err() == nil {
		if !flags.common.quiet {
			fmt.Fprintf(env.Stderr, "Watching %s for changes (Ctrl+C to stop)\n", displayPath(inputPath))
		}
		w := &docWatcher{
			inputPath: inputPath,
			outputDir: outputDir,
			suffix:    suffix,
			html:      cfg.Output.HTML,
			pool:      pool,
			params:    params,
			env:       env,
			logger:    logger,
			quiet:     flags.common.quiet,
			verbose:   flags.common.verbose,
		}
		// Failures while watching are reported as they happen.
		runErr = w.run(ctx)
	}
	closeErr := pool.Close()

	if registry != nil {
		if err := metrics.WriteTextfile(cfg.Metrics.File, registry); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if closeErr != nil {
		logger.Warn("closing archivers", "error", closeErr)
	}
	return runErr
}

// loadConfig loads the named config, preferring the flag over MDARCHIVE_CONFIG.
func loadConfig(flagName, envName string) (*config.Config, error) {
	name := flagName
	if name == "" {
		name = envName
	}
	if name == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(name)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *archiveFlags, cfg *config.Config) error {
	if flags.workers > 0 {
		cfg.Batch.Workers = flags.workers
	}

	// Image flags
	if flags.images.policy != "" {
		cfg.Images.Policy = flags.images.policy
	}
	if flags.images.timeout != "" {
		cfg.Images.Timeout = flags.images.timeout
	}
	if flags.images.concurrency != 0 {
		cfg.Images.Concurrency = flags.images.concurrency
	}
	if flags.images.userAgent != "" {
		cfg.Images.UserAgent = flags.images.userAgent
	}
	if flags.images.maxImageSize != "" {
		n, err := humanize.ParseBytes(flags.images.maxImageSize)
		if err != nil {
			return fmt.Errorf("%w: --max-image-size %q: %v", ErrInvalidSize, flags.images.maxImageSize, err)
		}
		if n == 0 || n > 1<<40 {
			return fmt.Errorf("%w: --max-image-size %q out of range", ErrInvalidSize, flags.images.maxImageSize)
		}
		cfg.Images.MaxSize = int64(n)
	}
	if flags.images.sniff {
		cfg.Images.Sniff = true
	}
	if flags.images.fallback != "" {
		cfg.Images.Fallback = flags.images.fallback
	}

	// Runtime flags
	if flags.runtime.mode != "" {
		cfg.Runtime.Mode = flags.runtime.mode
	}
	if flags.runtime.chromeBin != "" {
		cfg.Runtime.ChromeBin = flags.runtime.chromeBin
		cfg.Runtime.Chrome = true
	}
	if flags.runtime.chrome {
		cfg.Runtime.Chrome = true
	}

	// Output flags
	if flags.out.suffix != "" {
		cfg.Output.Suffix = flags.out.suffix
	}
	if flags.out.html {
		cfg.Output.HTML = true
	}
	if flags.out.title != "" {
		cfg.Output.Title = flags.out.title
	}
	if flags.out.metricsFile != "" {
		cfg.Metrics.File = flags.out.metricsFile
	}

	return nil
}

// buildOptions turns a validated config into archiver options. The returned
// registry is nil unless a metrics file is configured.
func buildOptions(cfg *config.Config, logger *slog.Logger) ([]mdarchive.Option, *prom.Registry, error) {
	policy, err := mdarchive.ParsePolicy(cfg.Images.Policy)
	if err != nil {
		return nil, nil, err
	}

	modeName := cfg.Runtime.Mode
	// Chrome only encodes in browser mode.
	if cfg.Runtime.Chrome && modeName == "" {
		modeName = "browser"
	}
	mode, err := mdarchive.ParseMode(modeName)
	if err != nil {
		return nil, nil, err
	}

	opts := []mdarchive.Option{
		mdarchive.WithFailurePolicy(policy),
		mdarchive.WithRuntimeMode(mode),
		mdarchive.WithConcurrency(cfg.Images.Concurrency),
		mdarchive.WithContentSniffing(cfg.Images.Sniff),
		mdarchive.WithLogger(logger),
	}
	if d := cfg.ImageTimeout(); d > 0 {
		opts = append(opts, mdarchive.WithTimeout(d))
	}
	if cfg.Images.UserAgent != "" {
		opts = append(opts, mdarchive.WithUserAgent(cfg.Images.UserAgent))
	}
	if cfg.Images.MaxSize > 0 {
		opts = append(opts, mdarchive.WithMaxImageSize(cfg.Images.MaxSize))
	}

	fallback, err := resolveFallback(cfg.Images.Fallback)
	if err != nil {
		return nil, nil, err
	}
	if fallback != "" {
		opts = append(opts, mdarchive.WithFallbackImage(fallback))
	}

	if cfg.Runtime.Chrome {
		opts = append(opts, mdarchive.WithChrome(cfg.Runtime.ChromeBin))
	}

	var registry *prom.Registry
	if cfg.Metrics.File != "" {
		registry = prom.NewRegistry()
		opts = append(opts, mdarchive.WithMetrics(mdarchive.NewPrometheusRecorder(registry)))
	}

	return opts, registry, nil
}

// resolveFallback returns the fallback as a data URI. Values that are not
// already data URIs name an image file, whose type is detected from its bytes.
func resolveFallback(value string) (string, error) {
	if value == "" || strings.HasPrefix(value, datauri.Prefix) {
		return value, nil
	}

	data, err := os.ReadFile(value) // #nosec G304 -- user-provided path
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadFallback, err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s is %s, not an image", mdarchive.ErrInvalidFallback, value, mt.String())
	}
	return datauri.Compose(mt.String(), data).String(), nil
}

// resolveSuffix expands auto[:PATTERN] into a dated suffix such as
// ".2026-01-02". Other values are used as given.
func resolveSuffix(value string, now time.Time) (string, error) {
	if value == "" {
		return DefaultSuffix, nil
	}
	if !dateutil.IsAuto(value) {
		return value, nil
	}
	stamp, err := dateutil.Stamp(value, now)
	if err != nil {
		return "", fmt.Errorf("%w: output.suffix: %v", config.ErrInvalidValue, err)
	}
	suffix := "." + stamp
	if err := fileutil.ValidateSuffix(suffix); err != nil {
		return "", fmt.Errorf("%w: output.suffix %q: %v", config.ErrInvalidValue, suffix, err)
	}
	return suffix, nil
}

// newLogger logs to stderr: errors only when quiet, every image when verbose.
func newLogger(env *Environment, quiet, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(env.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveInputPath determines the input from args or config.
func resolveInputPath(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Input.DefaultDir != "" {
		return cfg.Input.DefaultDir, nil
	}
	return "", ErrNoInput
}

// resolveOutputDir determines the output location from flag or config.
func resolveOutputDir(flagOutput string, cfg *config.Config) string {
	if flagOutput != "" {
		return flagOutput
	}
	return cfg.Output.DefaultDir
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, configName string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, mdarchive.ErrBrowserConnect), errors.Is(err, mdarchive.ErrPageCreate):
		return hints.ForBrowserConnect()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(config.SearchPaths(configName))
	case errors.Is(err, mdarchive.ErrOutsideRoot):
		return hints.ForOutsideRoot()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case mdarchive.IsImageFailure(err):
		return hints.ForImageFailure()
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	}
	return ""
}
