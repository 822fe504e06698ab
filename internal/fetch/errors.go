package fetch

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure kind.
var (
	ErrTransport   = errors.New("image transport failed")
	ErrStatus      = errors.New("image request returned non-success status")
	ErrContentType = errors.New("image response has no content type")
	ErrBodyRead    = errors.New("image body could not be read")
)

// Kind classifies a fetch failure.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindStatus
	KindContentType
	KindBodyRead
)

// String returns the kind name used in logs and reports.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindContentType:
		return "content_type"
	case KindBodyRead:
		return "body_read"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindStatus:
		return ErrStatus
	case KindContentType:
		return ErrContentType
	case KindBodyRead:
		return ErrBodyRead
	default:
		return nil
	}
}

// Error is a typed fetch failure for one URL.
// errors.Is matches both the kind's sentinel and the underlying cause.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int // set for KindStatus
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind.sentinel(), e.URL)
	if e.Kind == KindStatus {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
