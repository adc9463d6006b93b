// Package meson drives the configure, compile and install steps of a meson
// project.
package meson

import (
	"context"
	"os"

	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/run"
	"golang.org/x/xerrors"
)

// Ctx runs one meson executable in one environment.
type Ctx struct {
	Runner run.Runner
	Env    *environ.Env
	Meson  string // path to the meson executable
}

// Options configures a meson build directory.
type Options struct {
	DefaultLibrary string   // static or shared
	Prefix         string   // installation prefix
	WrapMode       string   // e.g. forcefallback; empty keeps meson’s default
	Defines        []string // project options, e.g. -Dtests=false
}

// SetupArgs returns the arguments for configuring builddir.
func SetupArgs(builddir string, opts Options) []string {
	args := []string{
		"setup",
		builddir,
		"--default-library=" + opts.DefaultLibrary,
		"--prefix=" + opts.Prefix,
		"--buildtype=release",
	}
	if opts.WrapMode != "" {
		args = append(args, "--wrap-mode="+opts.WrapMode)
	}
	return append(args, opts.Defines...)
}

func (m *Ctx) meson(ctx context.Context, dir string, args ...string) error {
	logging.Infof("running meson with arguments: %v", args)
	return m.Runner.Run(ctx, &run.Cmd{
		Args: append([]string{m.Meson}, args...),
		Dir:  dir,
		Env:  m.Env,
	})
}

// Setup configures a fresh builddir for the sources in srcDir. An existing
// builddir from a previous run is removed first.
func (m *Ctx) Setup(ctx context.Context, srcDir, builddir string, opts Options) error {
	if opts.DefaultLibrary != "static" && opts.DefaultLibrary != "shared" {
		return xerrors.Errorf("invalid default library %q: want static or shared", opts.DefaultLibrary)
	}
	if _, err := os.Stat(builddir); err == nil {
		logging.Infof("removing stale build directory %s", builddir)
		if err := os.RemoveAll(builddir); err != nil {
			return err
		}
	}
	return m.meson(ctx, srcDir, SetupArgs(builddir, opts)...)
}

// Compile builds the configured builddir.
func (m *Ctx) Compile(ctx context.Context, srcDir, builddir string) error {
	return m.meson(ctx, srcDir, "compile", "-C", builddir)
}

// Install installs the build results into the configured prefix.
func (m *Ctx) Install(ctx context.Context, builddir string) error {
	return m.meson(ctx, "", "install", "--no-rebuild", "-C", builddir)
}
