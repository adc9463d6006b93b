// Package build runs the fetch, patch, configure, compile and install
// pipeline for one target.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/cairodeps"
	"github.com/distr1/cairodeps/internal/atomicfile"
	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/fetch"
	"github.com/distr1/cairodeps/internal/lockfile"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/meson"
	"github.com/distr1/cairodeps/internal/patch"
	"github.com/distr1/cairodeps/internal/run"
	"github.com/distr1/cairodeps/internal/toolchain"
	"github.com/distr1/cairodeps/internal/trace"
	"github.com/distr1/cairodeps/internal/vsenv"
	"golang.org/x/mod/semver"
	"golang.org/x/xerrors"
)

// patchedMarker is created in a source tree once its patches are applied.
const patchedMarker = ".cairodeps-patched"

// Request is one build, assembled from flags and defaults.
type Request struct {
	Target         *Target
	Version        string         // e.g. 1.17.6
	Arch           cairodeps.Arch // 32 or 64
	BuildDir       string         // empty means ./build-<target>-v<version>-x<arch>
	Prefix         string         // e.g. /usr/local
	Checksum       string         // empty means the target’s DefaultHash
	DefaultLibrary string         // static or shared
	CheckFileHash  bool
	Force          bool   // rebuild even if already installed
	SupportDir     string // contains patches and subproject definitions
	Python         string // interpreter for provisioning meson, if needed
}

func (r *Request) buildDir() string {
	if r.BuildDir != "" {
		return r.BuildDir
	}
	return cairodeps.BuildName{
		Target:  r.Target.Name,
		Version: r.Version,
		Arch:    r.Arch,
	}.String()
}

func (r *Request) checksum() (string, error) {
	if r.Checksum != "" {
		return r.Checksum, nil
	}
	if r.Version == r.Target.DefaultVersion || !r.CheckFileHash {
		return r.Target.DefaultHash, nil
	}
	return "", xerrors.Errorf("no checksum known for %s %s: specify -%s-hash or -check-file-hash=false",
		r.Target.Name, r.Version, r.Target.Name)
}

func (r *Request) validate() error {
	if r.Target == nil {
		return xerrors.New("BUG: no target")
	}
	if !cairodeps.Architectures[r.Arch] {
		return xerrors.Errorf("unsupported architecture %v", r.Arch)
	}
	if r.DefaultLibrary != "static" && r.DefaultLibrary != "shared" {
		return xerrors.Errorf("invalid -default-library %q: want static or shared", r.DefaultLibrary)
	}
	if r.Version == "" {
		return xerrors.Errorf("no %s version specified", r.Target.Name)
	}
	if !semver.IsValid(maybeV(r.Version)) {
		logging.Warnf("%s version %q is not a semantic version", r.Target.Name, r.Version)
	}
	return nil
}

func maybeV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// stamp identifies a completed installation. A change in any field causes a
// rebuild.
func (r *Request) stamp(prefix string) string {
	return fmt.Sprintf("%s %s x%v %s %s\n", r.Target.Name, r.Version, r.Arch, r.DefaultLibrary, prefix)
}

// Ctx carries the state shared by all builds of one process.
type Ctx struct {
	Runner      run.Runner
	Env         *environ.Env // amended as tools are found
	CompilerEnv vsenv.CompilerEnv

	compilerDone bool
	msvc         bool
}

func (b *Ctx) setupCompiler(ctx context.Context, arch cairodeps.Arch) (bool, error) {
	if b.compilerDone {
		return b.msvc, nil
	}
	logging.Infof("compiler environment: %v", b.CompilerEnv)
	msvc, err := b.CompilerEnv.Setup(ctx, b.Env, arch)
	if err != nil {
		return false, xerrors.Errorf("setting up compiler environment: %w", err)
	}
	b.compilerDone = true
	b.msvc = msvc
	return msvc, nil
}

func phase(target, name string, fn func() error) error {
	ev := trace.Phase(target, name)
	defer ev.Done()
	return fn()
}

// Fetch downloads, verifies and extracts the sources of req into its build
// directory and prepares them for building (bundled subprojects, patches).
// It returns the source directory.
func (b *Ctx) Fetch(ctx context.Context, req *Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	buildDir, err := filepath.Abs(req.buildDir())
	if err != nil {
		return "", err
	}
	lock, err := lockfile.Acquire(buildDir)
	if err != nil {
		return "", err
	}
	defer lock.Release()
	return b.fetch(ctx, req, buildDir)
}

func (b *Ctx) fetch(ctx context.Context, req *Request, buildDir string) (string, error) {
	sum, err := req.checksum()
	if err != nil {
		return "", err
	}
	var src string
	err = phase(req.Target.Name, "fetch", func() error {
		var err error
		src, err = fetch.Fetch(ctx, req.Target.URL(req.Version), buildDir, sum, req.CheckFileHash)
		return err
	})
	if err != nil {
		return "", err
	}
	if err := phase(req.Target.Name, "patch", func() error { return b.prepare(ctx, req, src) }); err != nil {
		return "", err
	}
	return src, nil
}

// prepare copies the bundled subprojects into src and applies patches, unless
// a previous run applied them already.
func (b *Ctx) prepare(ctx context.Context, req *Request, src string) error {
	t := req.Target
	if t.Subprojects != "" {
		if err := patch.CopyTree(filepath.Join(req.SupportDir, t.Subprojects), filepath.Join(src, "subprojects")); err != nil {
			return xerrors.Errorf("copying subprojects: %w", err)
		}
	}
	if len(t.Patches) == 0 {
		return nil
	}
	marker := filepath.Join(src, patchedMarker)
	if _, err := os.Stat(marker); err == nil {
		logging.Infof("%s already patched", src)
		return nil
	}
	logging.Infof("patching %s sources", t.Name)
	for _, p := range t.Patches {
		if err := patch.Apply(ctx, b.Runner, b.Env, filepath.Join(req.SupportDir, p), src); err != nil {
			return xerrors.Errorf("applying %s: %w", p, err)
		}
	}
	return atomicfile.WriteFile(marker, []byte(strings.Join(t.Patches, "\n")+"\n"))
}

// Build fetches, configures, compiles and installs req.Target. If a previous
// run installed the same request already, Build returns without doing
// anything unless req.Force is set.
func (b *Ctx) Build(ctx context.Context, req *Request) error {
	if err := req.validate(); err != nil {
		return err
	}
	t := req.Target
	logging.Infof("building %s %s", t.Name, req.Version)

	buildDir, err := filepath.Abs(req.buildDir())
	if err != nil {
		return err
	}
	prefix, err := filepath.Abs(req.Prefix)
	if err != nil {
		return err
	}
	logging.Infof("using %s as build directory", buildDir)
	logging.Infof("using %s as prefix", prefix)

	lock, err := lockfile.Acquire(buildDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	stampFn := filepath.Join(buildDir, "."+t.Name+"-installed")
	if prev, err := os.ReadFile(stampFn); err == nil && !req.Force {
		if string(prev) == req.stamp(prefix) {
			logging.Infof("%s %s already installed (%s), skipping; use -force to rebuild", t.Name, req.Version, stampFn)
			return nil
		}
		logging.Infof("%s is from a different configuration, rebuilding", stampFn)
	}

	msvc, err := b.setupCompiler(ctx, req.Arch)
	if err != nil {
		return err
	}

	src, err := b.fetch(ctx, req, buildDir)
	if err != nil {
		return err
	}

	tc, err := (&toolchain.Ctx{
		Runner:   b.Runner,
		Env:      b.Env,
		BuildDir: buildDir,
		Python:   req.Python,
	}).Ensure(ctx)
	if err != nil {
		return err
	}

	env := b.Env.Clone()
	env.Merge(t.Env)
	m := &meson.Ctx{Runner: b.Runner, Env: env, Meson: tc.Meson}
	mesonBuildDir := filepath.Join(src, "build-x"+req.Arch.String())
	opts := meson.Options{
		DefaultLibrary: req.DefaultLibrary,
		Prefix:         prefix,
		WrapMode:       t.WrapMode,
		Defines:        t.Defines,
	}
	logging.Infof("configuring using meson")
	if err := phase(t.Name, "setup", func() error { return m.Setup(ctx, src, mesonBuildDir, opts) }); err != nil {
		return err
	}
	logging.Infof("compiling")
	if err := phase(t.Name, "compile", func() error { return m.Compile(ctx, src, mesonBuildDir) }); err != nil {
		return err
	}
	logging.Infof("installing %s", t.Name)
	if err := phase(t.Name, "install", func() error { return m.Install(ctx, mesonBuildDir) }); err != nil {
		return err
	}

	if t.MSVCLibs && req.DefaultLibrary == "static" && msvc {
		if _, err := copyStaticLibs(filepath.Join(prefix, "lib")); err != nil {
			return err
		}
	}

	if err := atomicfile.WriteFile(stampFn, []byte(req.stamp(prefix))); err != nil {
		return err
	}
	logging.Infof("successfully built %s", t.Name)
	return nil
}
