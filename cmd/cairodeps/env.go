package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/distr1/cairodeps"
	"github.com/distr1/cairodeps/internal/env"
)

const envHelp = `cairodeps env

Print the defaults derived from the environment.
`

func printenv(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("env", flag.ExitOnError)
	fset.Usage = usage(fset, envHelp)
	fset.Parse(args)
	_, _, ce := newBuildCtx()
	fmt.Printf("CAIRODEPS_PREFIX=%q\n", env.Prefix)
	fmt.Printf("CAIRODEPS_SUPPORT_DIR=%q\n", env.SupportDir)
	fmt.Printf("CAIRODEPS_PYTHON=%q\n", env.Python)
	fmt.Printf("HOSTARCH=%q\n", "x"+cairodeps.HostArch.String())
	fmt.Printf("COMPILERENV=%q\n", ce.String())
	return nil
}
