package cairodeps

import (
	"strconv"

	"golang.org/x/xerrors"
)

// Arch is the pointer width of the target, as passed to vcvars<arch>.bat and
// used in directory names (build-x64).
type Arch int

// Architectures contains one entry for each known architecture identifier.
var Architectures = map[Arch]bool{
	32: true,
	64: true,
}

// HostArch is the pointer width of the running binary.
var HostArch = Arch(strconv.IntSize)

func (a Arch) String() string { return strconv.Itoa(int(a)) }

// ParseArch parses "32" or "64", also accepting an "x" prefix (e.g. x64).
func ParseArch(s string) (Arch, error) {
	if len(s) > 1 && (s[0] == 'x' || s[0] == 'X') {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, xerrors.Errorf("invalid architecture %q: %w", s, err)
	}
	a := Arch(n)
	if !Architectures[a] {
		return 0, xerrors.Errorf("unsupported architecture %d (want 32 or 64)", n)
	}
	return a, nil
}

// Set implements flag.Value.
func (a *Arch) Set(s string) error {
	parsed, err := ParseArch(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
