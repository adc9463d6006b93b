// Package toolchain makes meson and ninja available, installing them into a
// Python virtual environment when they are not on PATH.
package toolchain

import (
	"context"
	"os"
	"path/filepath"

	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/run"
	"golang.org/x/xerrors"
)

// VenvDir is the name of the virtual environment directory created inside the
// build directory.
const VenvDir = "meson_venv"

// Toolchain holds the resolved build tool paths.
type Toolchain struct {
	Meson string
	Ninja string
}

// Ctx provisions build tools into one build directory.
type Ctx struct {
	Runner   run.Runner
	Env      *environ.Env // PATH is amended in place when the venv is used
	BuildDir string
	Python   string // interpreter for creating the venv; empty means look up python3 or python
}

func (c *Ctx) probe() (Toolchain, bool) {
	meson, mok := c.Env.LookPath("meson")
	ninja, nok := c.Env.LookPath("ninja")
	return Toolchain{Meson: meson, Ninja: ninja}, mok && nok
}

// Ensure returns the meson and ninja to use. If either is missing from PATH,
// the venv's script directories are prepended to PATH and the venv is created
// (or recreated, if it exists but does not provide both tools).
func (c *Ctx) Ensure(ctx context.Context) (Toolchain, error) {
	logging.Infof("checking if meson and ninja are installed")
	if tc, ok := c.probe(); ok {
		logging.Infof("found meson at %s, ninja at %s", tc.Meson, tc.Ninja)
		return tc, nil
	}

	logging.Warnf("meson or ninja isn't installed, installing into a venv")
	venv, err := filepath.Abs(filepath.Join(c.BuildDir, VenvDir))
	if err != nil {
		return Toolchain{}, err
	}
	// Resolved before the venv is put on PATH: a broken venv must be
	// recreated by the system interpreter, not by its own.
	python, pyErr := c.python()
	provision := func() error {
		if pyErr != nil {
			return pyErr
		}
		return c.provision(ctx, python, venv)
	}
	c.Env.PrependPath(filepath.Join(venv, "Scripts"), filepath.Join(venv, "bin"))

	if _, err := os.Stat(venv); err != nil {
		if !os.IsNotExist(err) {
			return Toolchain{}, err
		}
		if err := provision(); err != nil {
			return Toolchain{}, err
		}
	} else {
		logging.Infof("venv %s already exists, checking if it is usable", venv)
		if _, ok := c.probe(); !ok {
			if err := provision(); err != nil {
				return Toolchain{}, err
			}
		}
	}

	tc, ok := c.probe()
	if !ok {
		logging.Infof("venv %s still lacks meson or ninja, retrying", venv)
		if err := provision(); err != nil {
			return Toolchain{}, err
		}
		if tc, ok = c.probe(); !ok {
			return Toolchain{}, xerrors.Errorf("meson (%q) or ninja (%q) not found after installing them into %s", tc.Meson, tc.Ninja, venv)
		}
	}
	logging.Infof("found meson at %s, ninja at %s", tc.Meson, tc.Ninja)
	return tc, nil
}

func (c *Ctx) python() (string, error) {
	if c.Python != "" {
		return c.Python, nil
	}
	for _, name := range []string{"python3", "python"} {
		if p, ok := c.Env.LookPath(name); ok {
			return p, nil
		}
	}
	return "", xerrors.Errorf("neither python3 nor python found in PATH; specify -python")
}

// provision creates the venv at dir using python and pip-installs ninja and
// meson into it.
func (c *Ctx) provision(ctx context.Context, python, dir string) error {
	logging.Infof("creating a venv at %s", dir)
	if err := c.Runner.Run(ctx, &run.Cmd{
		Args: []string{python, "-m", "venv", dir},
		Env:  c.Env,
	}); err != nil {
		return err
	}

	venvPython := filepath.Join(dir, "bin", "python")
	if fi, err := os.Stat(filepath.Join(dir, "Scripts")); err == nil && fi.IsDir() {
		venvPython = filepath.Join(dir, "Scripts", "python")
	}
	logging.Infof("installing meson and ninja using pip")
	return c.Runner.Run(ctx, &run.Cmd{
		Args: []string{venvPython, "-m", "pip", "install", "ninja", "meson"},
		Env:  c.Env,
	})
}
