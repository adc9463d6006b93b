package cairodeps

import "strings"

// BuildName identifies one version/architecture combination of a target. Its
// String form is used as the default build directory name, e.g.
// build-cairo-v1.17.6-x64.
type BuildName struct {
	Target  string
	Version string
	Arch    Arch
}

func (bn BuildName) String() string {
	return "build-" + bn.Target + "-v" + bn.Version + "-x" + bn.Arch.String()
}

// ExtractDirName returns the name of the directory an archive is expected to
// extract into: the file name without its last two dot-separated components,
// e.g. pkgconf-1.8.0.tar.gz → pkgconf-1.8.0 and 1.17.6.tar.gz → 1.17.6.
func ExtractDirName(archive string) string {
	parts := strings.Split(archive, ".")
	if len(parts) <= 2 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-2], ".")
}
