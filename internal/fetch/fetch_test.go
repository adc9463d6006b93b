package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/distr1/cairodeps/internal/cairodepstest"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

func compress(t *testing.T, suffix string, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch suffix {
	case ".tar.gz":
		w = pgzip.NewWriter(&buf)
	case ".tar.xz":
		w, err = xz.NewWriter(&buf)
	case ".tar.zst":
		w, err = zstd.NewWriter(&buf)
	case ".tar":
		return raw
	default:
		t.Fatalf("unknown suffix %q", suffix)
	}
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, dir, name string, entries []cairodepstest.Entry) string {
	t.Helper()
	suffix := ".tar" + filepath.Ext(name)
	if filepath.Ext(name) == ".tar" {
		suffix = ".tar"
	}
	fn := filepath.Join(dir, name)
	if err := os.WriteFile(fn, compress(t, suffix, cairodepstest.Tar(t, entries)), 0644); err != nil {
		t.Fatal(err)
	}
	return fn
}

func sha256hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	return files
}

func TestParseChecksum(t *testing.T) {
	const sum = "d7b6fdb522d81c11f5a0e0a0629a9f5480809ec90e595058674c1517822dfb8c"
	for _, tt := range []struct {
		in      string
		want    Checksum
		wantErr bool
	}{
		{in: sum, want: Checksum{Algo: "sha256", Hex: sum}},
		{in: "sha256:" + sum, want: Checksum{Algo: "sha256", Hex: sum}},
		{in: "blake3:" + sum, want: Checksum{Algo: "blake3", Hex: sum}},
		{in: strings.ToUpper(sum), want: Checksum{Algo: "sha256", Hex: strings.ToUpper(sum)}},
		{in: "md5:" + sum, wantErr: true},
		{in: sum[:10], wantErr: true},
		{in: strings.Repeat("z", 64), wantErr: true},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChecksum(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChecksum(%q) = %v, want error %v", tt.in, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseChecksum(%q): unexpected diff (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	content := []byte(strings.Repeat("cairo", 30000)) // spans several read chunks
	fn := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(fn, content, 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256hex(content)
	b3 := blake3.Sum256(content)

	for _, tt := range []struct {
		desc    string
		want    Checksum
		wantErr bool
	}{
		{desc: "sha256", want: Checksum{Algo: "sha256", Hex: sum}},
		{desc: "upper-case", want: Checksum{Algo: "sha256", Hex: strings.ToUpper(sum)}},
		{desc: "blake3", want: Checksum{Algo: "blake3", Hex: hex.EncodeToString(b3[:])}},
		{desc: "mismatch", want: Checksum{Algo: "sha256", Hex: sha256hex([]byte("other"))}, wantErr: true},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			err := Verify(fn, tt.want)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() = %v, want error %v", err, tt.wantErr)
			}
			if err != nil {
				for _, s := range []string{fn, sum, tt.want.Hex} {
					if !strings.Contains(err.Error(), s) {
						t.Errorf("error %q does not mention %q", err, s)
					}
				}
			}
		})
	}
}

func TestExtract(t *testing.T) {
	for _, tt := range []struct {
		desc    string
		archive string
		entries []cairodepstest.Entry
		want    []string
	}{
		{
			desc:    "expected directory",
			archive: "pkgconf-1.8.0.tar.gz",
			entries: []cairodepstest.Entry{
				{Name: "pkgconf-1.8.0/"},
				{Name: "pkgconf-1.8.0/meson.build", Body: "project('pkgconf')"},
			},
			want: []string{"meson.build"},
		},
		{
			desc:    "forge archive",
			archive: "1.17.6.tar.gz",
			entries: []cairodepstest.Entry{
				{Name: "cairo-1.17.6-b43e7c6f/"},
				{Name: "cairo-1.17.6-b43e7c6f/meson.build", Body: "project('cairo')"},
				{Name: "cairo-1.17.6-b43e7c6f/src/cairo.h", Body: "#define CAIRO_H"},
			},
			want: []string{"meson.build", "src", "src/cairo.h"},
		},
		{
			desc:    "single root",
			archive: "1.0.tar.xz",
			entries: []cairodepstest.Entry{
				{Name: "project/meson.build", Body: "project('x')"},
			},
			want: []string{"meson.build"},
		},
		{
			desc:    "zstd",
			archive: "1.0.tar.zst",
			entries: []cairodepstest.Entry{
				{Name: "x-1.0-abc/"},
				{Name: "x-1.0-abc/README", Body: "hi"},
				{Name: "x-1.0-abc/README.md", Linkname: "README"},
			},
			want: []string{"README", "README.md"},
		},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			dir := t.TempDir()
			fn := writeArchive(t, dir, tt.archive, tt.entries)
			src, err := Extract(fn, dir)
			if err != nil {
				t.Fatal(err)
			}
			wantSrc := filepath.Join(dir, strings.TrimSuffix(strings.TrimSuffix(tt.archive, filepath.Ext(tt.archive)), ".tar"))
			if got, want := src, wantSrc; got != want {
				t.Errorf("Extract() = %q, want %q", got, want)
			}
			if diff := cmp.Diff(tt.want, listTree(t, src)); diff != "" {
				t.Errorf("extracted tree: unexpected diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "pkgconf-1.8.0"), 0755); err != nil {
		t.Fatal(err)
	}
	// Not a valid archive: Extract must not even open it.
	fn := filepath.Join(dir, "pkgconf-1.8.0.tar.gz")
	if err := os.WriteFile(fn, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(fn, dir); err != nil {
		t.Fatal(err)
	}
}

func TestExtractRejectsEscape(t *testing.T) {
	for _, tt := range []struct {
		desc    string
		entries []cairodepstest.Entry
	}{
		{desc: "dotdot", entries: []cairodepstest.Entry{{Name: "../evil", Body: "x"}}},
		{desc: "nested dotdot", entries: []cairodepstest.Entry{{Name: "a/../../evil", Body: "x"}}},
		{desc: "absolute", entries: []cairodepstest.Entry{{Name: "/tmp/evil", Body: "x"}}},
		{desc: "symlink", entries: []cairodepstest.Entry{{Name: "a/link", Linkname: "../../etc/passwd"}}},
		{desc: "absolute symlink", entries: []cairodepstest.Entry{{Name: "a/link", Linkname: "/etc/passwd"}}},
		{desc: "symlink chain", entries: []cairodepstest.Entry{
			{Name: "x-1.0/"},
			{Name: "x-1.0/l", Linkname: ".."},
			{Name: "x-1.0/l/p", Linkname: ".."},
			{Name: "p/evil", Body: "x"},
		}},
		{desc: "write through symlink", entries: []cairodepstest.Entry{
			{Name: "x-1.0/"},
			{Name: "x-1.0/l", Linkname: "."},
			{Name: "x-1.0/l/evil", Body: "x"},
		}},
		{desc: "dotdot out of missing dir", entries: []cairodepstest.Entry{
			{Name: "m", Linkname: "."},
			{Name: "y", Linkname: "n/../m/.."},
		}},
		{desc: "dotdot through symlink", entries: []cairodepstest.Entry{
			{Name: "m", Linkname: "."},
			{Name: "y", Linkname: "m/.."},
		}},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			parent := t.TempDir()
			dir := filepath.Join(parent, "build")
			if err := os.Mkdir(dir, 0755); err != nil {
				t.Fatal(err)
			}
			fn := writeArchive(t, dir, "x-1.0.tar", tt.entries)
			if _, err := Extract(fn, dir); err == nil {
				t.Fatal("Extract unexpectedly succeeded")
			}
			if _, err := os.Lstat(filepath.Join(parent, "evil")); !os.IsNotExist(err) {
				t.Errorf("entry was written outside of the destination: %v", err)
			}
		})
	}
}

func newArchiveServer(t *testing.T, name string, body []byte) (*httptest.Server, *int32) {
	t.Helper()
	var requests int32
	mux := http.NewServeMux()
	mux.HandleFunc("/dist/"+name, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestFetch(t *testing.T) {
	Progress = false
	ctx := context.Background()
	body := compress(t, ".tar.gz", cairodepstest.Tar(t, []cairodepstest.Entry{
		{Name: "pkgconf-1.8.0/"},
		{Name: "pkgconf-1.8.0/meson.build", Body: "project('pkgconf')"},
	}))
	srv, requests := newArchiveServer(t, "pkgconf-1.8.0.tar.gz", body)
	dir := filepath.Join(t.TempDir(), "build-pkgconf-v1.8.0-x64")
	url := srv.URL + "/dist/pkgconf-1.8.0.tar.gz"

	for i := 0; i < 2; i++ {
		src, err := Fetch(ctx, url, dir, strings.ToUpper(sha256hex(body)), true)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := src, filepath.Join(dir, "pkgconf-1.8.0"); got != want {
			t.Errorf("Fetch() = %q, want %q", got, want)
		}
	}
	if got, want := atomic.LoadInt32(requests), int32(1); got != want {
		t.Errorf("server received %d requests, want %d", got, want)
	}
}

func TestFetchCorruptedArchive(t *testing.T) {
	Progress = false
	ctx := context.Background()
	body := compress(t, ".tar.gz", cairodepstest.Tar(t, []cairodepstest.Entry{
		{Name: "pkgconf-1.8.0/meson.build", Body: "project('pkgconf')"},
	}))
	want := sha256hex(body)
	body[len(body)/2] ^= 0xff
	srv, _ := newArchiveServer(t, "pkgconf-1.8.0.tar.gz", body)
	dir := t.TempDir()

	_, err := Fetch(ctx, srv.URL+"/dist/pkgconf-1.8.0.tar.gz", dir, want, true)
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("Fetch() = %v, want checksum mismatch", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pkgconf-1.8.0")); !os.IsNotExist(err) {
		t.Errorf("archive was extracted despite the checksum mismatch")
	}
}

func TestFetchWithoutVerification(t *testing.T) {
	Progress = false
	body := compress(t, ".tar.gz", cairodepstest.Tar(t, []cairodepstest.Entry{
		{Name: "pkgconf-1.8.0/meson.build", Body: "project('pkgconf')"},
	}))
	srv, _ := newArchiveServer(t, "pkgconf-1.8.0.tar.gz", body)
	dir := t.TempDir()
	if _, err := Fetch(context.Background(), srv.URL+"/dist/pkgconf-1.8.0.tar.gz", dir, "not-a-checksum", false); err != nil {
		t.Fatal(err)
	}
}

func TestDownloadNotFound(t *testing.T) {
	srv, _ := newArchiveServer(t, "exists.tar.gz", nil)
	dest := filepath.Join(t.TempDir(), "missing.tar.gz")
	if err := Download(context.Background(), srv.URL+"/dist/missing.tar.gz", dest); err == nil {
		t.Fatal("Download unexpectedly succeeded")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("failed download left %s behind", dest)
	}
}

func TestArchiveName(t *testing.T) {
	for _, tt := range []struct {
		url  string
		want string
	}{
		{"https://distfiles.dereferenced.org/pkgconf/pkgconf-1.8.0.tar.gz", "pkgconf-1.8.0.tar.gz"},
		{"https://gitlab.freedesktop.org/cairo/cairo/-/archive/1.17.6/1.17.6.tar.gz?ref=x", "1.17.6.tar.gz"},
	} {
		got, err := ArchiveName(tt.url)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("ArchiveName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
