//go:build !windows

package atomicfile

import (
	"path/filepath"

	"github.com/google/renameio"
)

// Create returns a PendingFile for dest, placed next to it so that the final
// rename does not cross file systems.
func Create(dest string) (PendingFile, error) {
	f, err := renameio.TempFile(filepath.Dir(dest), dest)
	if err != nil {
		return nil, err
	}
	return f, nil
}
