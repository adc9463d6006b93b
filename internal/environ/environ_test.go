package environ

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetPreservesOrder(t *testing.T) {
	e := newEnv([]string{"HOME=/root", "PATH=/usr/bin", "LANG=C"}, false)
	e.Set("PKG_CONFIG", "invalid-executable")
	e.Set("HOME", "/home/x")
	want := []string{
		"HOME=/home/x",
		"PATH=/usr/bin",
		"LANG=C",
		"PKG_CONFIG=invalid-executable",
	}
	if diff := cmp.Diff(want, e.Environ()); diff != "" {
		t.Errorf("Environ(): diff (-want +got):\n%s", diff)
	}
}

func TestWindowsKeysAreCaseInsensitive(t *testing.T) {
	e := newEnv([]string{"Path=C:\\Windows", "=C:=C:\\"}, true)
	e.Set("PATH", "C:\\tools")
	if got, want := e.Value("path"), "C:\\tools"; got != want {
		t.Errorf("Value(path) = %q, want %q", got, want)
	}
	want := []string{"Path=C:\\tools"}
	if diff := cmp.Diff(want, e.Environ()); diff != "" {
		t.Errorf("Environ(): diff (-want +got):\n%s", diff)
	}
}

func TestPrependPath(t *testing.T) {
	e := newEnv([]string{"PATH=/usr/bin:/bin"}, false)
	e.PrependPath("/venv/Scripts", "/venv/bin")
	want := []string{"/venv/Scripts", "/venv/bin", "/usr/bin", "/bin"}
	if diff := cmp.Diff(want, e.Path()); diff != "" {
		t.Errorf("Path(): diff (-want +got):\n%s", diff)
	}

	empty := newEnv(nil, false)
	empty.PrependPath("/venv/bin")
	if got, want := empty.Value("PATH"), "/venv/bin"; got != want {
		t.Errorf("PATH = %q, want %q", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	e := newEnv([]string{"A=1"}, false)
	c := e.Clone()
	c.Set("A", "2")
	c.Set("B", "3")
	if got := e.Value("A"); got != "1" {
		t.Errorf("original A = %q after modifying clone", got)
	}
	if _, ok := e.Get("B"); ok {
		t.Errorf("original unexpectedly has B")
	}
}

func TestMerge(t *testing.T) {
	e := newEnv([]string{"PATH=/usr/bin", "A=1"}, true)
	e.Merge(map[string]string{
		"PATH":    "C:\\VC\\bin;/usr/bin",
		"INCLUDE": "C:\\VC\\include",
	})
	want := []string{
		"PATH=C:\\VC\\bin;/usr/bin",
		"A=1",
		"INCLUDE=C:\\VC\\include",
	}
	if diff := cmp.Diff(want, e.Environ()); diff != "" {
		t.Errorf("Environ(): diff (-want +got):\n%s", diff)
	}
}

func TestLookPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix permission bits")
	}
	first := t.TempDir()
	second := t.TempDir()
	for _, fn := range []string{
		filepath.Join(first, "ninja"),
		filepath.Join(second, "ninja"),
		filepath.Join(second, "meson"),
	} {
		if err := os.WriteFile(fn, []byte("#!/bin/sh\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// not executable:
	if err := os.WriteFile(filepath.Join(first, "meson"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	e := newEnv([]string{"PATH=" + first + ":" + second}, false)
	for _, tt := range []struct {
		file string
		want string
	}{
		{file: "ninja", want: filepath.Join(first, "ninja")},
		{file: "meson", want: filepath.Join(second, "meson")},
		{file: "patch", want: ""},
	} {
		got, ok := e.LookPath(tt.file)
		if ok != (tt.want != "") || got != tt.want {
			t.Errorf("LookPath(%q) = %q, %v; want %q", tt.file, got, ok, tt.want)
		}
	}
}

func TestLookPathWindowsExtensions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "meson.exe"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	e := newEnv([]string{"PATH=" + dir, "PATHEXT=.COM;.EXE"}, true)
	got, ok := e.LookPath("meson")
	if !ok {
		t.Fatalf("LookPath(meson) not found")
	}
	if want := filepath.Join(dir, "meson.exe"); got != want {
		t.Errorf("LookPath(meson) = %q, want %q", got, want)
	}
	if _, ok := e.LookPath("meson.exe"); !ok {
		t.Errorf("LookPath(meson.exe) not found")
	}
}
