// Package fetch downloads, verifies and extracts source archives.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/distr1/cairodeps/internal/atomicfile"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/xerrors"
)

// Progress controls whether downloads render a progress bar on stderr. It
// defaults to whether stderr is a terminal.
var Progress = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

// ArchiveName returns the file name under which the archive at rawurl is
// stored, i.e. the last element of its path.
func ArchiveName(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", xerrors.Errorf("url.Parse: %v", err)
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return "", xerrors.Errorf("URL %q has no file name", rawurl)
	}
	return base, nil
}

// Download stores the resource at rawurl in dest.
func Download(ctx context.Context, rawurl, dest string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return xerrors.Errorf("url.Parse: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return xerrors.Errorf("unimplemented URL scheme %q", u.Scheme)
	}
	// Disable compression: some web servers would otherwise cause
	// http.DefaultTransport to transparently gunzip .tar.gz files.
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	c := &http.Client{Transport: t}

	logging.Infof("downloading %s to %s", rawurl, dest)
	req, err := http.NewRequestWithContext(ctx, "GET", rawurl, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		return xerrors.Errorf("unexpected HTTP status: got %d (%v), want %d", got, resp.Status, want)
	}

	// An interrupted download must never look like a cached archive.
	f, err := atomicfile.Create(dest)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	var w io.Writer = f
	if Progress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }))
		defer bar.Finish()
		w = io.MultiWriter(f, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return xerrors.Errorf("downloading %s: %w", rawurl, err)
	}
	return f.CloseAtomicallyReplace()
}

// Fetch makes the source tree of the archive at rawurl available in destDir
// and returns its path. The archive is downloaded unless already present,
// verified against checksum when verify is true, and extracted unless the
// source directory already exists.
func Fetch(ctx context.Context, rawurl, destDir, checksum string, verify bool) (string, error) {
	fn, err := ArchiveName(rawurl)
	if err != nil {
		return "", err
	}
	archive := filepath.Join(destDir, fn)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	if _, err := os.Stat(archive); err != nil {
		if !os.IsNotExist(err) {
			return "", err // file exists, but can’t access it?
		}
		if err := Download(ctx, rawurl, archive); err != nil {
			return "", xerrors.Errorf("download: %w", err)
		}
	}

	if verify {
		want, err := ParseChecksum(checksum)
		if err != nil {
			return "", err
		}
		if err := Verify(archive, want); err != nil {
			return "", xerrors.Errorf("verify: %w", err)
		}
	}

	return Extract(archive, destDir)
}
