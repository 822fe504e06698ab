package embed

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is returned by ParsePolicy for unknown names.
var ErrInvalidPolicy = errors.New("invalid failure policy")

// FailurePolicy decides what a failed image does to the whole run.
type FailurePolicy int

const (
	// PolicyFallback substitutes the placeholder and keeps going.
	PolicyFallback FailurePolicy = iota
	// PolicyPropagate fails the run with the first image error.
	PolicyPropagate
)

// String returns the policy name accepted by ParsePolicy.
func (p FailurePolicy) String() string {
	switch p {
	case PolicyFallback:
		return "fallback"
	case PolicyPropagate:
		return "propagate"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	return p == PolicyFallback || p == PolicyPropagate
}

// ParsePolicy parses "fallback" or "propagate" (case-insensitive). Empty means fallback.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fallback":
		return PolicyFallback, nil
	case "propagate":
		return PolicyPropagate, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected fallback or propagate)", ErrInvalidPolicy, s)
	}
}
