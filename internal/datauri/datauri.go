// Package datauri builds and validates data: URIs and encodes image bytes into them.
//
// Two encoding strategies exist because the two host runtimes expose different
// primitives for turning binary payloads into text: Base64Encoder composes the
// URI directly, ReaderEncoder drives an asynchronous, event-driven FileReader.
// NewEncoder selects one of them once, from the resolved hostenv.Mode.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Prefix starts every data URI.
const Prefix = "data:"

// Sentinel errors for data URI operations.
var (
	ErrInvalid  = errors.New("invalid data URI")
	ErrEncoding = errors.New("image encoding failed")
)

// DataURI is a string guaranteed to start with "data:".
// Obtain one with Parse, MustParse or Compose.
type DataURI string

// String returns the URI text.
func (u DataURI) String() string {
	return string(u)
}

// Parse validates s and returns it as a DataURI.
func Parse(s string) (DataURI, error) {
	if !strings.HasPrefix(s, Prefix) {
		return "", fmt.Errorf("%w: expected %q prefix, got %q", ErrInvalid, Prefix, truncate(s, 32))
	}
	return DataURI(s), nil
}

// MustParse is like Parse but panics on invalid input. Use for constants.
func MustParse(s string) DataURI {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Compose builds data:<contentType>;base64,<payload>.
func Compose(contentType string, data []byte) DataURI {
	var b strings.Builder
	b.Grow(len(Prefix) + len(contentType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(Prefix)
	b.WriteString(contentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return DataURI(b.String())
}

// Decode splits a data URI into its payload and declared media type.
// The scheme and the base64 marker match case-insensitively.
// The media type keeps its parameters (e.g. "text/plain;charset=utf-8") and is
// empty when the URI declares none.
func Decode(uri string) (data []byte, contentType string, err error) {
	if !hasPrefixFold(uri, Prefix) {
		return nil, "", fmt.Errorf("%w: missing %q prefix", ErrInvalid, Prefix)
	}

	header, payload, ok := strings.Cut(uri[len(Prefix):], ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing ',' separator", ErrInvalid)
	}

	const base64Marker = ";base64"
	cut := len(header) - len(base64Marker)
	if cut < 0 || !strings.EqualFold(header[cut:], base64Marker) {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return []byte(decoded), header, nil
	}
	contentType = header[:cut]

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some producers omit padding.
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return data, contentType, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// truncate shortens s for error messages, data URIs can be megabytes long.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
