package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatchStdin is returned when --watch is combined with stdin input.
var ErrWatchStdin = errors.New("--watch needs a file or directory input")

// defaultWatchDebounce coalesces the bursts of events editors emit on save.
const defaultWatchDebounce = 300 * time.Millisecond

// docWatcher re-archives documents whose source changes until ctx is done.
type docWatcher struct {
	inputPath string
	outputDir string
	suffix    string
	html      bool

	pool    Pool
	params  *batchParams
	env     *Environment
	logger  *slog.Logger
	quiet   bool
	verbose bool

	debounce time.Duration
	onReady  func() // called once the watches are in place; set by tests
	onFlush  func([]ArchiveResult)
}

// run blocks until ctx is done or the watcher fails.
func (w *docWatcher) run(ctx context.Context) error {
	info, err := os.Stat(w.inputPath)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()

	root := w.inputPath
	if !info.IsDir() {
		root = filepath.Dir(w.inputPath)
	}
	if err := addDirsRecursive(fw, root, w.logger); err != nil {
		return err
	}
	if w.onReady != nil {
		w.onReady()
	}

	debounce := w.debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if info.IsDir() && ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addDirsRecursive(fw, ev.Name, w.logger)
					continue
				}
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if !w.wants(ev.Name, info.IsDir()) {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			pending[filepath.Clean(ev.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			w.flush(ctx, pending, info.IsDir())
			pending = make(map[string]struct{})
		}
	}
}

// wants reports whether a change to path should trigger an archive.
func (w *docWatcher) wants(path string, dirMode bool) bool {
	if shouldIgnoreEvent(path) || !isMarkdown(path) || isArchived(path, w.suffix) {
		return false
	}
	if !dirMode {
		return filepath.Clean(path) == filepath.Clean(w.inputPath)
	}
	return true
}

// flush archives every pending document that still exists.
func (w *docWatcher) flush(ctx context.Context, pending map[string]struct{}, dirMode bool) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	baseDir := ""
	if dirMode {
		baseDir = w.inputPath
	}
	files := make([]FileToArchive, len(paths))
	for i, p := range paths {
		out := resolveOutputPath(p, w.outputDir, baseDir, w.suffix)
		files[i] = withHTML(FileToArchive{InputPath: p, OutputPath: out}, w.html)
	}

	results := archiveBatch(ctx, w.pool, files, w.params, w.env)
	printResultsWithWriter(results, w.quiet, w.verbose, w.env)
	if w.onFlush != nil {
		w.onFlush(results)
	}
}

func addDirsRecursive(fw *fsnotify.Watcher, root string, logger *slog.Logger) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			logger.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}

// shouldIgnoreEvent reports hidden, swap and lock files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
