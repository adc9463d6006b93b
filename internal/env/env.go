// Package env captures defaults derived from the environment. Inspect them
// using `cairodeps env`.
package env

import (
	"os"
	"path/filepath"
	"runtime"
)

// Prefix is the default installation prefix.
var Prefix = findPrefix(os.Getenv, runtime.GOOS)

// SupportDir is the directory containing 302.patch and cairo-subprojects/.
var SupportDir = findSupportDir()

// Python is the interpreter used to provision meson, if needed. Empty means
// python3, then python, are looked up on PATH.
var Python = os.Getenv("CAIRODEPS_PYTHON")

func findPrefix(getenv func(string) string, goos string) string {
	if p := getenv("CAIRODEPS_PREFIX"); p != "" {
		return p
	}
	if goos == "windows" {
		return "C:/prefix"
	}
	if venv := getenv("VIRTUAL_ENV"); venv != "" {
		return venv
	}
	return "/usr/local"
}

func findSupportDir() string {
	if d := os.Getenv("CAIRODEPS_SUPPORT_DIR"); d != "" {
		return d
	}
	exe, err := os.Executable()
	if err != nil {
		return "." // default
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
