package atomicfile

import (
	"os"
	"path/filepath"
)

// renameio does not support Windows; os.Rename replaces existing files via
// MoveFileEx with MOVEFILE_REPLACE_EXISTING, which is good enough here.
type tempFile struct {
	*os.File
	dest   string
	closed bool
	done   bool
}

// Create returns a PendingFile for dest, placed next to it so that the final
// rename does not cross volumes.
func Create(dest string) (PendingFile, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return nil, err
	}
	return &tempFile{File: f, dest: dest}, nil
}

func (t *tempFile) CloseAtomicallyReplace() error {
	if err := t.Sync(); err != nil {
		return err
	}
	t.closed = true
	if err := t.Close(); err != nil {
		return err
	}
	if err := os.Rename(t.Name(), t.dest); err != nil {
		return err
	}
	t.done = true
	return nil
}

func (t *tempFile) Cleanup() error {
	if t.done {
		return nil
	}
	if !t.closed {
		t.Close()
	}
	return os.Remove(t.Name())
}
