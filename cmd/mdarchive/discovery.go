package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	mdarchive "github.com/alnah/go-mdarchive"
)

// DefaultSuffix marks archived copies: notes.md becomes notes.archived.md.
const DefaultSuffix = ".archived"

// stdioPath selects stdin as input or stdout as output.
const stdioPath = "-"

// Sentinel errors for file discovery.
var (
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrStdoutBatch        = errors.New("stdout output needs a single input file")
)

// FileToArchive represents a single document to process.
type FileToArchive struct {
	InputPath  string // "-" reads stdin
	OutputPath string // "-" writes stdout
	HTMLPath   string // empty unless HTML output is enabled
}

// discoverFiles finds all markdown files to archive under inputPath.
// Files already carrying the suffix are skipped so reruns do not archive
// their own output.
func discoverFiles(inputPath, outputDir, suffix string, html bool) ([]FileToArchive, error) {
	if inputPath == stdioPath {
		out := outputDir
		if out == "" {
			out = stdioPath
		}
		return []FileToArchive{withHTML(FileToArchive{InputPath: stdioPath, OutputPath: out}, html)}, nil
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := validateMarkdownExtension(inputPath); err != nil {
			return nil, err
		}
		outPath := resolveOutputPath(inputPath, outputDir, "", suffix)
		return []FileToArchive{withHTML(FileToArchive{InputPath: inputPath, OutputPath: outPath}, html)}, nil
	}

	if outputDir == stdioPath {
		return nil, ErrStdoutBatch
	}

	var files []FileToArchive
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		if !isMarkdown(path) || isArchived(path, suffix) {
			return nil
		}
		outPath := resolveOutputPath(path, outputDir, inputPath, suffix)
		files = append(files, withHTML(FileToArchive{InputPath: path, OutputPath: outPath}, html))
		return nil
	})

	return files, err
}

func withHTML(f FileToArchive, html bool) FileToArchive {
	if html && f.OutputPath != stdioPath {
		f.HTMLPath = htmlOutputPath(f.OutputPath)
	}
	return f
}

// resolveOutputPath determines the archived path for a markdown file.
func resolveOutputPath(inputPath, outputDir, baseInputDir, suffix string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)
	name := base + suffix + ext

	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), name)
	}

	if outputDir == stdioPath || isMarkdown(outputDir) {
		return outputDir
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, inputPath)
		if err == nil {
			relDir := filepath.Dir(relPath)
			return filepath.Join(outputDir, relDir, name)
		}
	}

	return filepath.Join(outputDir, name)
}

// htmlOutputPath returns the HTML path next to an archived markdown path.
func htmlOutputPath(mdPath string) string {
	return strings.TrimSuffix(mdPath, filepath.Ext(mdPath)) + ".html"
}

func isMarkdown(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".md" || ext == ".markdown"
}

// isArchived reports whether path looks like a previous run's output.
func isArchived(path, suffix string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(base, suffix)
}

// validateMarkdownExtension checks that the file has a .md or .markdown extension.
func validateMarkdownExtension(path string) error {
	if !isMarkdown(path) {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, filepath.Ext(path))
	}
	return nil
}

// validateWorkers checks that the worker count is within valid bounds.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > mdarchive.MaxPoolSize {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, mdarchive.MaxPoolSize)
	}
	return nil
}
