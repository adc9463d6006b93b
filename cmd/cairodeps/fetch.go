package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/distr1/cairodeps/internal/build"
	"golang.org/x/xerrors"
)

const fetchHelp = `cairodeps fetch [-flags] <target>

Download, verify and extract the sources of pkgconf or cairo into the build
directory, copy bundled subprojects and apply patches, without building.
Prints the source directory.

Example:
  % cairodeps fetch cairo
`

func fetchCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("fetch", flag.ExitOnError)
	var bf buildFlags
	bf.register(fset)
	fset.Usage = usage(fset, fetchHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: fetch [-flags] <target>")
	}
	t, err := build.TargetByName(fset.Arg(0))
	if err != nil {
		return err
	}

	r, env, ce := newBuildCtx()
	b := &build.Ctx{Runner: r, Env: env, CompilerEnv: ce}
	src, err := b.Fetch(ctx, bf.request(t))
	if err != nil {
		return err
	}
	fmt.Println(src)
	return nil
}
