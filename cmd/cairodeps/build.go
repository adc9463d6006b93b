package main

import (
	"context"
	"flag"

	"github.com/distr1/cairodeps"
	"github.com/distr1/cairodeps/internal/build"
	"github.com/distr1/cairodeps/internal/env"
	"golang.org/x/xerrors"
)

const buildHelp = `cairodeps build [-flags]

Download, patch, configure, compile and install pkgconf (opt-in) and cairo
using meson. Targets which were installed already with the same settings are
skipped unless -force is given.

Example:
  % cairodeps build -prefix=/opt/cairo -build-pkgconf
`

// buildFlags are shared by the build and fetch verbs.
type buildFlags struct {
	buildDir       string
	prefix         string
	arch           cairodeps.Arch
	checkFileHash  bool
	defaultLibrary string
	supportDir     string
	python         string
	force          bool
	versions       map[string]*string
	hashes         map[string]*string
}

func (bf *buildFlags) register(fset *flag.FlagSet) {
	bf.arch = cairodeps.HostArch
	fset.StringVar(&bf.buildDir, "build-dir", "", "build directory (default: ./build-<target>-v<version>-x<arch>)")
	fset.StringVar(&bf.prefix, "prefix", env.Prefix, "installation prefix ($CAIRODEPS_PREFIX)")
	fset.Var(&bf.arch, "arch", "architecture to build for: 32 or 64")
	fset.BoolVar(&bf.checkFileHash, "check-file-hash", true, "verify the checksum of downloaded archives")
	fset.StringVar(&bf.defaultLibrary, "default-library", "static", "static or shared")
	fset.StringVar(&bf.supportDir, "support-dir", env.SupportDir, "directory containing 302.patch and cairo-subprojects/ ($CAIRODEPS_SUPPORT_DIR)")
	fset.StringVar(&bf.python, "python", env.Python, "python interpreter for installing meson and ninja if needed ($CAIRODEPS_PYTHON; default: python3 or python from PATH)")
	fset.BoolVar(&bf.force, "force", false, "rebuild even if already installed")
	bf.versions = make(map[string]*string)
	bf.hashes = make(map[string]*string)
	for _, t := range build.Targets {
		bf.versions[t.Name] = fset.String(t.Name+"-version", t.DefaultVersion, "version of "+t.Name+" to build")
		bf.hashes[t.Name] = fset.String(t.Name+"-hash", "", "checksum (<sha256 hex> or blake3:<hex>) of the "+t.Name+" archive (default: known checksum of the default version)")
	}
}

func (bf *buildFlags) request(t *build.Target) *build.Request {
	return &build.Request{
		Target:         t,
		Version:        *bf.versions[t.Name],
		Arch:           bf.arch,
		BuildDir:       bf.buildDir,
		Prefix:         bf.prefix,
		Checksum:       *bf.hashes[t.Name],
		DefaultLibrary: bf.defaultLibrary,
		CheckFileHash:  bf.checkFileHash,
		Force:          bf.force,
		SupportDir:     bf.supportDir,
		Python:         bf.python,
	}
}

func buildCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	var bf buildFlags
	bf.register(fset)
	var (
		buildPkgconf = fset.Bool("build-pkgconf", false, "build pkgconf")
		buildCairo   = fset.Bool("build-cairo", true, "build cairo")
	)
	fset.Usage = usage(fset, buildHelp)
	fset.Parse(args)
	if fset.NArg() > 0 {
		return xerrors.Errorf("unexpected arguments %q", fset.Args())
	}

	enabled := map[string]bool{
		build.Pkgconf.Name: *buildPkgconf,
		build.Cairo.Name:   *buildCairo,
	}
	r, env, ce := newBuildCtx()
	b := &build.Ctx{Runner: r, Env: env, CompilerEnv: ce}
	for _, t := range build.Targets {
		if !enabled[t.Name] {
			continue
		}
		if err := b.Build(ctx, bf.request(t)); err != nil {
			return xerrors.Errorf("%s: %w", t.Name, err)
		}
	}
	return nil
}
