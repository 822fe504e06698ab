package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	mdarchive "github.com/alnah/go-mdarchive"
	"github.com/alnah/go-mdarchive/internal/fileutil"
	"github.com/alnah/go-mdarchive/internal/hints"
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// Sentinel errors for batch operations.
var (
	ErrNoInput      = errors.New("no input specified")
	ErrReadMarkdown = errors.New("failed to read markdown file")
	ErrWriteOutput  = errors.New("failed to write output file")
	ErrArchiverInit = errors.New("failed to initialize archiver")
)

// batchParams carries per-run settings shared by every document.
type batchParams struct {
	title   string // HTML title; empty uses the file name
	workDir string // base directory for stdin input
}

// ArchiveResult holds the outcome of a single document.
type ArchiveResult struct {
	InputPath  string
	OutputPath string
	HTMLPath   string
	Err        error
	Duration   time.Duration

	Images    int
	Fallbacks int
	Bytes     int
	External  int // images the HTML page still loads remotely
}

// archiveBatch processes files concurrently using the archiver pool.
func archiveBatch(ctx context.Context, pool Pool, files []FileToArchive, params *batchParams, env *Environment) []ArchiveResult {
	if len(files) == 0 {
		return nil
	}

	concurrency := min(pool.Size(), len(files))

	results := make([]ArchiveResult, len(files))
	var wg sync.WaitGroup
	jobs := make(chan int, len(files))

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			arc, err := pool.Acquire()
			if err != nil {
				// Archiver creation failed, mark remaining jobs as failed
				for idx := range jobs {
					results[idx] = ArchiveResult{
						InputPath: files[idx].InputPath,
						Err:       fmt.Errorf("%w: %w", ErrArchiverInit, err),
					}
				}
				return
			}
			defer pool.Release(arc)

			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = ArchiveResult{
						InputPath: files[idx].InputPath,
						Err:       ctx.Err(),
					}
					continue
				}
				results[idx] = archiveFile(ctx, arc, files[idx], params, env)
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// archiveFile processes a single document and returns the result.
func archiveFile(ctx context.Context, arc CLIArchiver, f FileToArchive, params *batchParams, env *Environment) ArchiveResult {
	start := time.Now()
	result := ArchiveResult{
		InputPath:  f.InputPath,
		OutputPath: f.OutputPath,
		HTMLPath:   f.HTMLPath,
	}
	fail := func(err error) ArchiveResult {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	content, baseDir, err := readInput(f.InputPath, params.workDir, env.Stdin)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrReadMarkdown, err))
	}

	res, err := arc.ArchiveDocument(ctx, mdarchive.Input{
		Markdown: content,
		BaseDir:  baseDir,
		HTML:     f.HTMLPath != "",
		Title:    resolveTitle(params.title, f.InputPath),
	})
	if err != nil {
		return fail(err)
	}

	if err := writeOutput(f.OutputPath, res.Markdown, env.Stdout); err != nil {
		return fail(err)
	}
	if f.HTMLPath != "" {
		if err := writeOutput(f.HTMLPath, res.HTML, env.Stdout); err != nil {
			return fail(err)
		}
	}

	result.Images = len(res.Images)
	result.Fallbacks = len(res.Fallbacks())
	result.External = len(res.ExternalImages)
	for _, img := range res.Images {
		result.Bytes += img.Bytes
	}
	result.Duration = time.Since(start)
	return result
}

// readInput returns the document and the directory its relative images
// resolve against.
func readInput(path, workDir string, stdin io.Reader) (string, string, error) {
	if path == stdioPath {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), workDir, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- discovered path
	if err != nil {
		return "", "", err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return "", "", err
	}
	return string(data), dir, nil
}

// writeOutput writes content to path atomically, or to stdout for "-".
func writeOutput(path, content string, stdout io.Writer) error {
	if path == stdioPath {
		if _, err := io.WriteString(stdout, content); err != nil {
			return fmt.Errorf("%w: stdout: %w", ErrWriteOutput, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("%w: creating output directory: %w", ErrWriteOutput, err)
	}
	// #nosec G306 -- archived documents are meant to be readable
	if err := fileutil.WriteFileAtomic(path, []byte(content), filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// resolveTitle picks the HTML title: the flag, else the file name.
func resolveTitle(title, inputPath string) string {
	if title != "" || inputPath == stdioPath {
		return title
	}
	return strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
}

// ResultSummary holds the count of succeeded and failed documents.
type ResultSummary struct {
	Succeeded int
	Failed    int
	Fallbacks int
}

// countResults tallies succeeded and failed documents.
func countResults(results []ArchiveResult) ResultSummary {
	var summary ResultSummary
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		summary.Fallbacks += r.Fallbacks
	}
	return summary
}

// firstError returns the first failure in input order.
func firstError(results []ArchiveResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// printResultsWithWriter outputs archive results using the provided writers.
// Status lines go to stderr when the document itself went to stdout.
func printResultsWithWriter(results []ArchiveResult, quiet, verbose bool, env *Environment) ResultSummary {
	summary := countResults(results)

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s: %v\n", displayPath(r.InputPath), r.Err)
			continue
		}

		if quiet {
			continue
		}

		w := env.Stdout
		if r.OutputPath == stdioPath {
			w = env.Stderr
		}

		if verbose {
			fmt.Fprintf(w, "%s -> %s (%d images, %d fallback, %s, %v)\n",
				displayPath(r.InputPath), displayOutput(r.OutputPath), r.Images, r.Fallbacks,
				humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Millisecond))
		} else if r.OutputPath != stdioPath {
			fmt.Fprintf(w, "Archived %s\n", r.OutputPath)
		}
		if r.HTMLPath != "" && !verbose {
			fmt.Fprintf(w, "Created %s\n", r.HTMLPath)
		}
		if r.External > 0 {
			fmt.Fprintf(env.Stderr, "warning: %s is not self-contained%s\n", r.HTMLPath, hints.ForExternalImages(r.External))
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed", summary.Succeeded, summary.Failed)
		if summary.Fallbacks > 0 {
			fmt.Fprintf(env.Stdout, ", %d image(s) replaced by fallback", summary.Fallbacks)
		}
		fmt.Fprintln(env.Stdout)
	}

	return summary
}

func displayPath(p string) string {
	if p == stdioPath {
		return "<stdin>"
	}
	return p
}

func displayOutput(p string) string {
	if p == stdioPath {
		return "<stdout>"
	}
	return p
}
