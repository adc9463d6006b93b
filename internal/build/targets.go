package build

import (
	"sort"
	"strings"

	"golang.org/x/xerrors"
)

// Target describes how to fetch and build one library.
type Target struct {
	Name           string
	DefaultVersion string
	URLTemplate    string // {V} is replaced with the version
	DefaultHash    string // checksum of the DefaultVersion archive

	WrapMode string
	Defines  []string
	// Env overrides variables for all meson invocations.
	Env map[string]string

	// Subprojects names a directory in the support directory which replaces
	// the subprojects/ directory of the source tree.
	Subprojects string
	// Patches are applied to the source tree, relative to the support
	// directory.
	Patches []string
	// MSVCLibs copies lib*.a to *.lib after a static MSVC build, as
	// setuptools only looks for the latter.
	MSVCLibs bool
}

// URL returns the source archive URL of version.
func (t *Target) URL(version string) string {
	return strings.ReplaceAll(t.URLTemplate, "{V}", version)
}

var Pkgconf = &Target{
	Name:           "pkgconf",
	DefaultVersion: "1.8.0",
	URLTemplate:    "https://distfiles.dereferenced.org/pkgconf/pkgconf-{V}.tar.gz",
	DefaultHash:    "d7b6fdb522d81c11f5a0e0a0629a9f5480809ec90e595058674c1517822dfb8c",
	Defines:        []string{"-Dtests=false"},
}

var Cairo = &Target{
	Name:           "cairo",
	DefaultVersion: "1.17.6",
	URLTemplate:    "https://gitlab.freedesktop.org/cairo/cairo/-/archive/{V}/{V}.tar.gz",
	DefaultHash:    "49f88d58cf4cf2252dbf0c7e7e42d62812f7aabdee4a0c0793d509a6ce1be266",
	// Never link against libraries of the build host.
	WrapMode: "forcefallback",
	Defines: []string{
		"-Dtee=enabled",   // needed by the pycairo tests
		"-Dglib=disabled", // does not build statically on Windows
		"-Dtests=disabled",
	},
	Env: map[string]string{
		"PKG_CONFIG_PATH": "",
		"PKG_CONFIG":      "invalid-executable",
	},
	Subprojects: "cairo-subprojects",
	// Fixes the dwrite backend, see
	// https://gitlab.freedesktop.org/cairo/cairo/-/merge_requests/302
	Patches:  []string{"302.patch"},
	MSVCLibs: true,
}

// Targets lists all buildable targets by name, in build order.
var Targets = []*Target{Pkgconf, Cairo}

// TargetByName returns the target called name.
func TargetByName(name string) (*Target, error) {
	for _, t := range Targets {
		if t.Name == name {
			return t, nil
		}
	}
	var names []string
	for _, t := range Targets {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return nil, xerrors.Errorf("unknown target %q (known: %s)", name, strings.Join(names, ", "))
}
