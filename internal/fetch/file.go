package fetch

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrOutsideRoot is the cause of a transport failure for paths escaping the root.
var ErrOutsideRoot = errors.New("path escapes document directory")

// FileSource reads images referenced by relative path or file:// URL from the
// local filesystem, confined to Root. Content types come from the extension,
// or from the bytes when the extension is unknown.
type FileSource struct {
	Root     string
	MaxBytes int64
}

var _ ByteSource = (*FileSource)(nil)

// NewFileSource returns a FileSource confined to root.
func NewFileSource(root string) (*FileSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving document directory: %w", err)
	}
	return &FileSource{Root: abs, MaxBytes: DefaultMaxBytes}, nil
}

// Fetch implements ByteSource.
func (s *FileSource) Fetch(ctx context.Context, ref string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTransport, URL: ref, Err: err}
	}

	path, err := s.resolve(ref)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: ref, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: ref, Err: err}
	}
	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if info.Size() > maxBytes {
		return nil, &Error{Kind: KindBodyRead, URL: ref, Err: fmt.Errorf("file exceeds %d bytes", maxBytes)}
	}

	data, err := os.ReadFile(path) // #nosec G304 -- confined to Root by resolve
	if err != nil {
		return nil, &Error{Kind: KindBodyRead, URL: ref, Err: err}
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		detected := mimetype.Detect(data)
		if detected.Is("application/octet-stream") {
			return nil, &Error{Kind: KindContentType, URL: ref}
		}
		contentType = detected.String()
	}

	return &Payload{Data: data, ContentType: contentType}, nil
}

// resolve turns a relative path or file:// URL into a path under Root.
func (s *FileSource) resolve(ref string) (string, error) {
	var path string
	if hasScheme(ref, "file") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", err
		}
		path = filepath.FromSlash(u.Path)
	} else {
		unescaped, err := url.PathUnescape(ref)
		if err != nil {
			unescaped = ref
		}
		// Drop query and fragment, they never name files.
		if i := strings.IndexAny(unescaped, "?#"); i >= 0 {
			unescaped = unescaped[:i]
		}
		path = filepath.Join(s.Root, filepath.FromSlash(unescaped))
	}

	if !isPathUnderDir(path, s.Root) {
		return "", ErrOutsideRoot
	}
	return path, nil
}

// IsLocalReference reports whether ref names a local file: a file:// URL or a
// relative path. Network URLs, data: URLs, protocol-relative URLs, anchors and
// absolute paths are not local references.
func IsLocalReference(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}
	if hasScheme(ref, "file") {
		return true
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		// Windows drive letters parse as one-letter schemes.
		if len(u.Scheme) > 1 {
			return false
		}
	}
	return !filepath.IsAbs(ref) && !strings.HasPrefix(ref, "/")
}

// isPathUnderDir checks if absPath is under dir (prevents path traversal).
func isPathUnderDir(absPath, dir string) bool {
	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(dir)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath+string(filepath.Separator), cleanDir)
}
