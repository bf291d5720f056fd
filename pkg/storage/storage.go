// Package storage stores named files such as exported session recordings.
//
// FileStore is implemented by Local (a directory), S3Store (any
// S3-compatible bucket) and Memory (tests and ephemeral runs). Open builds
// one from a Config.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
)

// FileStore reads and writes files by slash-separated path relative to the
// store root. Implementations are safe for concurrent use.
type FileStore interface {
	// Read opens the file. A missing file returns an error wrapping
	// os.ErrNotExist. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or truncates the file. The content becomes visible
	// when the writer is closed, and Close reports whether it was stored.
	// Writers returned by this package also implement Aborter.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the file. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ErrInvalidPath is returned for empty, absolute or escaping paths.
var ErrInvalidPath = errors.New("storage: invalid path")

// cleanPath validates p and returns it in canonical form.
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return c, nil
}

// ContentType returns the MIME type for p's extension, defaulting to
// application/octet-stream.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".wav":
		return "audio/wav"
	case ".pcm":
		return "audio/pcm"
	case "":
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Aborter is implemented by writers that can discard their content instead
// of committing it.
type Aborter interface {
	Abort() error
}

// Abort discards a writer after a failed write. Writers without an Abort
// method are closed.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// WriteFile writes data to p in one call. A failed write leaves p untouched.
func WriteFile(ctx context.Context, s FileStore, p string, data []byte) error {
	w, err := s.Write(ctx, p)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		Abort(w)
		return err
	}
	return w.Close()
}

// ReadFile reads the whole file at p.
func ReadFile(ctx context.Context, s FileStore, p string) ([]byte, error) {
	r, err := s.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
