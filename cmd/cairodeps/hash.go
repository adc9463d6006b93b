package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/distr1/cairodeps/internal/fetch"
	"golang.org/x/xerrors"
)

const hashHelp = `cairodeps hash [-algo=sha256|blake3] <file>...

Print the checksum of each file in the form accepted by -cairo-hash and
-pkgconf-hash, e.g. when updating to a new release.

Example:
  % cairodeps hash build-cairo-v1.17.6-x64/1.17.6.tar.gz
`

func hash(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("hash", flag.ExitOnError)
	algo := fset.String("algo", "sha256", "digest algorithm: sha256 or blake3")
	fset.Usage = usage(fset, hashHelp)
	fset.Parse(args)
	if fset.NArg() == 0 {
		return xerrors.Errorf("syntax: hash [-algo=sha256|blake3] <file>...")
	}
	for _, fn := range fset.Args() {
		digest, err := fetch.Digest(fn, *algo)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", fetch.Checksum{Algo: *algo, Hex: digest}, fn)
	}
	return nil
}
