// Package cairodepstest contains helpers for tests which run fake tools or
// serve generated source archives.
package cairodepstest

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
)

// SkipUnlessShell skips tests which run fake tools written as shell scripts.
func SkipUnlessShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip(err)
	}
}

// WriteExecutable creates dir/name (and dir) with mode 0755 and returns its
// path.
func WriteExecutable(t testing.TB, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	fn := filepath.Join(dir, name)
	if err := os.WriteFile(fn, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}
	return fn
}

// Entry is a member of a generated tar archive. Names ending in / are
// directories; entries with a Linkname are symlinks.
type Entry struct {
	Name     string
	Body     string
	Linkname string
}

// Tar returns an uncompressed tar archive of entries.
func Tar(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0644, Typeflag: tar.TypeReg, Size: int64(len(e.Body))}
		switch {
		case strings.HasSuffix(e.Name, "/"):
			hdr.Typeflag, hdr.Mode, hdr.Size = tar.TypeDir, 0755, 0
		case e.Linkname != "":
			hdr.Typeflag, hdr.Linkname, hdr.Size = tar.TypeSymlink, e.Linkname, 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip-compressed tar archive of entries.
func TarGz(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := pgzip.NewWriter(&buf)
	if _, err := gw.Write(Tar(t, entries)); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
