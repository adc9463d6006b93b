// Package patch prepares source trees: it copies bundled files into them and
// applies unified diffs using the patch(1) program.
package patch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/run"
	"golang.org/x/xerrors"
)

// msysPatch is where MSYS2 installs patch.exe by default.
var msysPatch = `C:\msys64\usr\bin\patch.exe`

// Locate returns the patch program to use.
func Locate(env *environ.Env) (string, error) {
	return locate(env, runtime.GOOS)
}

func locate(env *environ.Env, goos string) (string, error) {
	if p, ok := env.LookPath("patch"); ok {
		return p, nil
	}
	if goos != "windows" {
		return "", xerrors.New("'patch' executable not found")
	}
	logging.Warnf("'patch.exe' not found in PATH, trying default from msys2")
	if _, err := os.Stat(msysPatch); err != nil {
		return "", xerrors.Errorf("can't find 'patch.exe': %v", err)
	}
	return msysPatch, nil
}

// Apply applies the unified diff patchFile with strip level 1 in dir.
func Apply(ctx context.Context, r run.Runner, env *environ.Env, patchFile, dir string) error {
	patchExe, err := Locate(env)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(patchFile)
	if err != nil {
		return err
	}
	logging.Infof("applying patch %s (cwd: %s)", abs, dir)
	return r.Run(ctx, &run.Cmd{
		Args: []string{patchExe, "-p1", "-i", abs},
		Dir:  dir,
		Env:  env,
	})
}

// CopyTree replaces dst with a copy of the directory src.
func CopyTree(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return xerrors.Errorf("%s is not a directory", src)
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	logging.Infof("copying %s to %s", src, dst)
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			return os.MkdirAll(dest, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, dest)
		case info.Mode().IsRegular():
			return CopyFile(path, dest)
		}
		return nil // skip devices, sockets and the like
	})
}

// CopyFile copies the regular file src to dest, keeping its permission bits.
func CopyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
