// Package atomicfile writes files such that readers observe either the old
// or the complete new contents, never a partial write.
package atomicfile

import "io"

// PendingFile is written in full before it replaces its destination.
type PendingFile interface {
	io.Writer
	// CloseAtomicallyReplace moves the file to its destination.
	CloseAtomicallyReplace() error
	// Cleanup removes the file unless it was moved into place already.
	Cleanup() error
}

// WriteFile atomically replaces filename with data.
func WriteFile(filename string, data []byte) error {
	f, err := Create(filename)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}
