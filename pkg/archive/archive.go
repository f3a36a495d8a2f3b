package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/ossinventory/pkg/errors"
	"github.com/matzehuels/ossinventory/pkg/httputil"
)

// DefaultExt is the extension used for npm tarballs.
const DefaultExt = "tgz"

// Result describes a downloaded archive.
type Result struct {
	Path  string
	Bytes int64
}

// EnsureDir creates dir and any missing parents. It succeeds if the directory
// already exists, including when another worker created it concurrently.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.ErrCodeOutput, err, "create directory %s", dir)
	}
	return nil
}

// FileName returns "<name>-<version>.<ext>" with every "/" in name replaced
// by "_". The result is a single path component.
func FileName(name, version, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	return strings.ReplaceAll(name, "/", "_") + "-" + version + "." + ext
}

// Fetcher downloads archives. Its HTTP client should bound downloads with an
// idle timeout rather than a total one, since archives may be large.
type Fetcher struct {
	http *httputil.Client
}

// Option configures a [Fetcher].
type Option func(*Fetcher)

// WithHTTPClient sets the shared HTTP client.
func WithHTTPClient(h *httputil.Client) Option {
	return func(f *Fetcher) {
		if h != nil {
			f.http = h
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{http: httputil.NewClient()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url into dir as FileName(name, version).
//
// All failures are FETCH_FAILED except an invalid name or version
// (INVALID_PACKAGE) and an uncreatable dir (OUTPUT_FAILED). A non-success
// status carries an *httputil.StatusError and leaves no file behind.
func (f *Fetcher) Fetch(ctx context.Context, name, version, url, dir string) (*Result, error) {
	if err := errs.ValidatePackageName(name); err != nil {
		return nil, err
	}
	if err := errs.ValidateVersion(version); err != nil {
		return nil, err
	}
	if err := errs.ValidateURL(url); err != nil {
		return nil, errs.Wrap(errs.ErrCodeFetch, err, "fetch %s@%s", name, version)
	}
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	body, _, err := f.http.Open(ctx, url)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFetch, err, "fetch %s@%s", name, version)
	}
	defer body.Close()

	path := filepath.Join(dir, FileName(name, version, DefaultExt))
	n, err := writeAtomic(path, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeFetch, err, "write %s", path)
	}
	return &Result{Path: path, Bytes: n}, nil
}

// writeAtomic copies r into a temporary file in path's directory and renames
// it to path once the copy is complete. The temporary file is removed on any
// failure.
func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("after %d bytes: %w", n, err)
	}
	return n, nil
}
