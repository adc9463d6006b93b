// Program cairodeps downloads and builds the native libraries pycairo links
// against (pkgconf and cairo) using meson.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/distr1/cairodeps"
	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/run"
	"github.com/distr1/cairodeps/internal/trace"
	"github.com/distr1/cairodeps/internal/vsenv"
)

var tracefile = flag.String("tracefile", "", "path to store a Chrome trace of the build phases at")

// newBuildCtx returns the state shared by all builds of this process: the
// environment seeded from os.Environ and the compiler environment selected
// for this platform.
func newBuildCtx() (run.Runner, *environ.Env, vsenv.CompilerEnv) {
	r := run.Exec{}
	env := environ.FromOS()
	return r, env, vsenv.Select(runtime.GOOS, env, r)
}

func main() {
	logging.Setup(os.Stderr)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: cairodeps [global flags] <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Global flags:\n")
		flag.PrintDefaults()
		printVerbs()
	}
	global, args := splitGlobal(flag.CommandLine, os.Args[1:])
	flag.CommandLine.Parse(global)

	if *tracefile != "" {
		done, err := trace.Create(*tracefile)
		if err != nil {
			logging.Errorf("%v", err)
			os.Exit(1)
		}
		cairodeps.RegisterAtExit(done)
	}

	ctx, canc := cairodeps.InterruptibleContext()

	type cmd struct {
		helpText string
		fn       func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"build": {buildHelp, buildCmd},
		"fetch": {fetchHelp, fetchCmd},
		"hash":  {hashHelp, hash},
		"env":   {envHelp, printenv},
	}

	verb := "build"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "syntax: cairodeps help <verb>\n")
			printVerbs()
			os.Exit(2)
		}
		verb = args[0]
		args = []string{"-help"}
	}
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: cairodeps <command> [options]\n")
		os.Exit(2)
	}
	err := v.fn(ctx, args)
	canc()
	if aerr := cairodeps.RunAtExit(); aerr != nil && err == nil {
		err = aerr
	}
	if err != nil {
		logging.Errorf("%s: %+v", verb, err)
		if code, ok := run.ExitCode(err); ok {
			os.Exit(code)
		}
		os.Exit(1)
	}
}

// splitGlobal returns the leading arguments which are flags of fset. Without
// a verb, the remaining flags belong to the default build verb, as in
// cairodeps -tracefile=/tmp/t.json -prefix=/opt/cairo.
func splitGlobal(fset *flag.FlagSet, args []string) (global, rest []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" || !strings.HasPrefix(a, "-") {
			return args[:i], args[i:]
		}
		name := strings.TrimLeft(a, "-")
		hasValue := false
		if idx := strings.IndexByte(name, '='); idx > -1 {
			name, hasValue = name[:idx], true
		}
		if name == "h" || name == "help" {
			continue
		}
		if fset.Lookup(name) == nil {
			return args[:i], args[i:]
		}
		if !hasValue {
			i++ // all global flags take a value
		}
	}
	return args, nil
}

func printVerbs() {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "Verbs:\n")
	fmt.Fprintf(os.Stderr, "\tbuild - build pkgconf and/or cairo (default)\n")
	fmt.Fprintf(os.Stderr, "\tfetch - download, verify and extract the sources of one target\n")
	fmt.Fprintf(os.Stderr, "\thash  - print archive digests for use with -<target>-hash\n")
	fmt.Fprintf(os.Stderr, "\tenv   - print the defaults derived from the environment\n")
}
