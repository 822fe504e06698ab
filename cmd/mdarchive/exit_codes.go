package main

import (
	"errors"
	"os"

	mdarchive "github.com/alnah/go-mdarchive"
	"github.com/alnah/go-mdarchive/internal/config"
)

// Exit codes for the mdarchive CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Every document archived
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser/Chrome errors
	ExitImage   = 5 // An image failed under the propagate policy
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, mdarchive.ErrBrowserConnect) ||
		errors.Is(err, mdarchive.ErrPageCreate) {
		return ExitBrowser
	}

	// Image failures (exit 5)
	if mdarchive.IsImageFailure(err) {
		return ExitImage
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadMarkdown) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrReadFallback) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, mdarchive.ErrInvalidPolicy) ||
		errors.Is(err, mdarchive.ErrInvalidMode) ||
		errors.Is(err, mdarchive.ErrInvalidConcurrency) ||
		errors.Is(err, mdarchive.ErrInvalidFallback) ||
		errors.Is(err, ErrWatchStdin) ||
		errors.Is(err, mdarchive.ErrInvalidTimeout) ||
		errors.Is(err, mdarchive.ErrInvalidMaxImageSize) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidSize) ||
		errors.Is(err, ErrStdoutBatch) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrUnsupportedShell) ||
		errors.Is(err, ErrInvalidFlag) {
		return ExitUsage
	}

	return ExitGeneral
}
