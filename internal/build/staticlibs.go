package build

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/patch"
)

// copyStaticLibs copies every lib<name>.a in libdir to <name>.lib: meson
// names static libraries lib*.a even with MSVC, where setuptools expects
// *.lib. It returns the names of the created files.
func copyStaticLibs(libdir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(libdir, "lib*.a"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var created []string
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "lib"), ".a") + ".lib"
		logging.Infof("copying %s to %s", filepath.Base(m), name)
		if err := patch.CopyFile(m, filepath.Join(libdir, name)); err != nil {
			return nil, err
		}
		created = append(created, name)
	}
	return created, nil
}
