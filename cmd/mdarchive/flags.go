package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// ErrInvalidFlag wraps flag parsing failures.
var ErrInvalidFlag = errors.New("invalid flag")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// imageFlags controls fetching and embedding.
type imageFlags struct {
	policy       string
	timeout      string
	concurrency  int
	userAgent    string
	maxImageSize string // human size, e.g. "10MB"
	sniff        bool
	fallback     string // data URI or image path
}

// runtimeFlags selects the encoding strategy.
type runtimeFlags struct {
	mode      string
	chrome    bool
	chromeBin string
}

// outputFlags holds output naming and extra artifacts.
type outputFlags struct {
	suffix      string
	html        bool
	title       string
	metricsFile string
	printConfig bool
}

// archiveFlags holds all flags for the archive command.
type archiveFlags struct {
	common  commonFlags
	output  string
	workers int
	watch   bool
	images  imageFlags
	runtime runtimeFlags
	out     outputFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every image and show timings")
}

func addImageFlags(fs *flag.FlagSet, f *imageFlags) {
	fs.StringVarP(&f.policy, "policy", "p", "", "on image failure: fallback or propagate")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-image download timeout (e.g., 30s, 2m)")
	fs.IntVarP(&f.concurrency, "concurrency", "n", 0, "images in flight per document (0 = unbounded)")
	fs.StringVar(&f.userAgent, "user-agent", "", "User-Agent header for image requests")
	fs.StringVar(&f.maxImageSize, "max-image-size", "", "largest accepted image (e.g., 10MB, 512KiB)")
	fs.BoolVar(&f.sniff, "sniff", false, "detect image types from content when servers are vague")
	fs.StringVar(&f.fallback, "fallback", "", "replacement image: data URI or file path")
}

func addRuntimeFlags(fs *flag.FlagSet, f *runtimeFlags) {
	fs.StringVarP(&f.mode, "runtime", "r", "", "encoding strategy: auto, server, browser")
	fs.BoolVar(&f.chrome, "chrome", false, "encode through headless Chrome in browser mode")
	fs.StringVar(&f.chromeBin, "chrome-bin", "", "Chrome binary (implies --chrome)")
}

func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.StringVar(&f.suffix, "suffix", "", "inserted before the extension (default \".archived\", auto[:FORMAT] for a date)")
	fs.BoolVar(&f.html, "html", false, "also write a self-contained HTML page")
	fs.StringVar(&f.title, "title", "", "HTML page title (default: file name)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration and exit")
}

// newArchiveFlagSet registers every archive flag. Parsing and shell
// completion share it.
func newArchiveFlagSet() (*flag.FlagSet, *archiveFlags) {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	f := &archiveFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file, directory, or - for stdout")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel documents (0 = auto)")
	fs.BoolVar(&f.watch, "watch", false, "re-archive documents when they change")

	addCommonFlags(fs, &f.common)
	addImageFlags(fs, &f.images)
	addRuntimeFlags(fs, &f.runtime)
	addOutputFlags(fs, &f.out)

	return fs, f
}

// parseArchiveFlags parses archive command flags. Usage and errors go to stderr.
func parseArchiveFlags(args []string, stderr io.Writer) (*archiveFlags, []string, error) {
	fs, f := newArchiveFlagSet()
	fs.SetOutput(stderr)
	fs.Usage = func() { printArchiveUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFlag, err)
	}

	return f, fs.Args(), nil
}
