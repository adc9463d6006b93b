// Package lockfile guards a directory against concurrent use by several
// processes.
package lockfile

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// Name is the lock file created inside the guarded directory.
const Name = ".cairodeps.lock"

// ErrLocked is returned by Acquire when another process holds the lock.
var ErrLocked = xerrors.New("locked by another process")

// Lock is a held advisory lock.
type Lock struct {
	f *os.File
}

// Acquire takes the lock for dir without blocking, creating dir if needed.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	fn := filepath.Join(dir, Name)
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := lock(f); err != nil {
		f.Close()
		return nil, xerrors.Errorf("%s: %w", fn, err)
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left behind:
// removing it would race with another process which opened it already.
func (l *Lock) Release() error {
	if err := unlock(l.f); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
