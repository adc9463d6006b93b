// Package environ holds the process environment handed to every subprocess.
//
// Instead of mutating os.Environ, callers create one Env at startup, amend it
// as tools are discovered (PATH prepends, compiler variables) and pass it to
// each command explicitly.
package environ

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Env is an ordered set of environment variables. The zero value is not
// usable; use New or FromOS. Env is not safe for concurrent use.
type Env struct {
	// windows selects case-insensitive keys and PATHEXT handling.
	windows bool

	keys []string          // canonical keys in insertion order
	vals map[string]string // keyed by fold(key)
	orig map[string]string // fold(key) → key as first seen
}

// New returns an Env populated from kv, a list of KEY=VALUE strings (as
// returned by os.Environ). Later duplicates override earlier ones.
func New(kv []string) *Env {
	return newEnv(kv, runtime.GOOS == "windows")
}

// FromOS returns an Env seeded from the ambient process environment.
func FromOS() *Env { return New(os.Environ()) }

func newEnv(kv []string, windows bool) *Env {
	e := &Env{
		windows: windows,
		vals:    make(map[string]string),
		orig:    make(map[string]string),
	}
	for _, entry := range kv {
		idx := strings.IndexByte(entry, '=')
		if idx < 0 {
			continue
		}
		if idx == 0 {
			// Windows keeps per-drive working directories in variables
			// like "=C:"; they cannot be set by name.
			continue
		}
		e.Set(entry[:idx], entry[idx+1:])
	}
	return e
}

func (e *Env) fold(key string) string {
	if e.windows {
		return strings.ToUpper(key)
	}
	return key
}

// Get returns the value of key and whether it is set.
func (e *Env) Get(key string) (string, bool) {
	v, ok := e.vals[e.fold(key)]
	return v, ok
}

// Value returns the value of key, or "" if unset.
func (e *Env) Value(key string) string {
	v, _ := e.Get(key)
	return v
}

// Set sets key to value. On Windows, an existing variable keeps the spelling
// it was first set with (Path stays Path).
func (e *Env) Set(key, value string) {
	k := e.fold(key)
	if _, ok := e.vals[k]; !ok {
		e.keys = append(e.keys, k)
		e.orig[k] = key
	}
	e.vals[k] = value
}

// PrependPath puts dirs, in order, in front of the existing PATH entries.
func (e *Env) PrependPath(dirs ...string) {
	list := append([]string{}, dirs...)
	if cur := e.Value("PATH"); cur != "" {
		list = append(list, cur)
	}
	e.Set("PATH", strings.Join(list, e.listSeparator()))
}

// Path returns the PATH entries.
func (e *Env) Path() []string {
	cur := e.Value("PATH")
	if cur == "" {
		return nil
	}
	return strings.Split(cur, e.listSeparator())
}

func (e *Env) listSeparator() string {
	if e.windows {
		return ";"
	}
	return ":"
}

// Merge copies all variables of other into e, overriding existing values.
func (e *Env) Merge(other map[string]string) {
	keys := make([]string, 0, len(other))
	for k := range other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Set(k, other[k])
	}
}

// Clone returns an independent copy of e.
func (e *Env) Clone() *Env {
	c := &Env{
		windows: e.windows,
		keys:    append([]string{}, e.keys...),
		vals:    make(map[string]string, len(e.vals)),
		orig:    make(map[string]string, len(e.orig)),
	}
	for k, v := range e.vals {
		c.vals[k] = v
	}
	for k, v := range e.orig {
		c.orig[k] = v
	}
	return c
}

// Environ returns the variables as KEY=VALUE strings, suitable for
// exec.Cmd.Env.
func (e *Env) Environ() []string {
	result := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		result = append(result, e.orig[k]+"="+e.vals[k])
	}
	return result
}

// LookPath searches the directories in e's PATH (not the process PATH) for an
// executable named file. It returns "" and false if none is found.
func (e *Env) LookPath(file string) (string, bool) {
	exts := []string{""}
	if e.windows {
		exts = e.pathExts(file)
	}
	if strings.ContainsAny(file, `/\`) {
		for _, ext := range exts {
			if isExecutable(file+ext, e.windows) {
				return file + ext, true
			}
		}
		return "", false
	}
	for _, dir := range e.Path() {
		if dir == "" {
			continue
		}
		for _, ext := range exts {
			candidate := filepath.Join(dir, file+ext)
			if isExecutable(candidate, e.windows) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (e *Env) pathExts(file string) []string {
	pathext := e.Value("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	var exts []string
	lower := strings.ToLower(file)
	for _, ext := range strings.Split(strings.ToLower(pathext), ";") {
		if ext == "" {
			continue
		}
		if strings.HasSuffix(lower, ext) {
			// file already carries an executable extension
			return []string{""}
		}
		exts = append(exts, ext)
	}
	return exts
}

func isExecutable(path string, windows bool) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if windows {
		return true
	}
	return fi.Mode()&0111 != 0
}
