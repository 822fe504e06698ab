// Package hostenv classifies the host runtime the archiver runs in.
//
// The classification selects which binary-to-text primitive encodes images:
// server-like hosts base64-encode bytes directly, browser-like hosts hand them
// to a platform file reader. It is resolved once per archiver and injected,
// never queried from per-image code.
package hostenv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMode indicates an unknown runtime mode name.
var ErrInvalidMode = errors.New("invalid runtime mode")

// Mode is the host execution context.
type Mode int

// Runtime modes.
const (
	ModeAuto Mode = iota // resolve with Detect
	ModeServer
	ModeBrowser
)

// String returns the mode name used in configuration and logs.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeServer:
		return "server"
	case ModeBrowser:
		return "browser"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a configuration value to a Mode (case-insensitive).
// The empty string maps to ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "server":
		return ModeServer, nil
	case "browser":
		return ModeBrowser, nil
	}
	return ModeAuto, fmt.Errorf("%w: %q (must be auto, server or browser)", ErrInvalidMode, s)
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModeAuto && m <= ModeBrowser
}

// Resolve returns m, or the detected mode when m is ModeAuto.
func Resolve(m Mode) Mode {
	if m == ModeAuto {
		return Detect()
	}
	return m
}
