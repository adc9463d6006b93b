package fetch

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/distr1/cairodeps"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"
)

// normalizePattern matches top-level directories like
// cairo-1.17.6-b43e7c6f3cf7855e16170a06d3a9c7234c60ca94 as produced by forge
// archive endpoints.
const normalizePattern = "*-*-*"

func decompressor(fn string, r io.Reader) (io.Reader, func(), error) {
	nop := func() {}
	switch {
	case strings.HasSuffix(fn, ".tar.gz"), strings.HasSuffix(fn, ".tgz"):
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil
	case strings.HasSuffix(fn, ".tar.xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, nop, nil
	case strings.HasSuffix(fn, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case strings.HasSuffix(fn, ".tar"):
		return r, nop, nil
	}
	return nil, nil, xerrors.Errorf("unsupported archive format: %s", fn)
}

// Extract unpacks archive into destDir and returns the source directory,
// destDir/<archive name without its last two dot suffixes>. If that directory
// already exists, nothing is extracted.
//
// When the archive does not contain the expected directory, its first
// top-level directory matching *-*-* (or else its only top-level directory)
// is renamed to the expected name.
func Extract(archive, destDir string) (string, error) {
	srcDir := filepath.Join(destDir, cairodeps.ExtractDirName(filepath.Base(archive)))
	if fi, err := os.Stat(srcDir); err == nil && fi.IsDir() {
		return srcDir, nil // already extracted
	}

	logging.Infof("extracting %s", archive)
	roots, err := untar(archive, destDir)
	if err != nil {
		return "", xerrors.Errorf("extracting %s: %w", archive, err)
	}

	if _, err := os.Stat(srcDir); err == nil {
		return srcDir, nil
	}
	root, err := pickRoot(roots)
	if err != nil {
		return "", xerrors.Errorf("%s: %w", archive, err)
	}
	logging.Infof("renaming %s to %s", root, filepath.Base(srcDir))
	if err := os.Rename(filepath.Join(destDir, root), srcDir); err != nil {
		return "", err
	}
	return srcDir, nil
}

func pickRoot(roots []string) (string, error) {
	for _, r := range roots {
		if ok, _ := path.Match(normalizePattern, r); ok {
			return r, nil
		}
	}
	if len(roots) == 1 {
		return roots[0], nil
	}
	return "", xerrors.Errorf("cannot determine source directory among top-level entries %q", roots)
}

// untar extracts archive into destDir and returns the top-level directory
// names in archive order.
func untar(archive, destDir string) ([]string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, closeFn, err := decompressor(archive, f)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var roots []string
	seen := make(map[string]bool)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader || hdr.Typeflag == tar.TypeXHeader {
			continue
		}
		name, rel, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" {
			continue // the archive root itself ("./")
		}
		top := strings.SplitN(rel, "/", 2)[0]
		isDir := hdr.Typeflag == tar.TypeDir || strings.Contains(rel, "/")
		if isDir && !seen[top] {
			seen[top] = true
			roots = append(roots, top)
		}

		if err := checkParents(destDir, rel); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
			return nil, err
		}
		mode := hdr.FileInfo().Mode().Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(name, mode|0700); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := removeExisting(name); err != nil {
				return nil, err
			}
			if err := writeEntry(name, mode, tr); err != nil {
				return nil, err
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(destDir, rel, hdr.Linkname); err != nil {
				return nil, err
			}
			if err := removeExisting(name); err != nil {
				return nil, err
			}
			if err := os.Symlink(hdr.Linkname, name); err != nil {
				return nil, err
			}
		case tar.TypeLink:
			target, targetRel, err := entryPath(destDir, hdr.Linkname)
			if err != nil {
				return nil, err
			}
			if err := checkParents(destDir, targetRel); err != nil {
				return nil, err
			}
			if err := removeExisting(name); err != nil {
				return nil, err
			}
			if err := os.Link(target, name); err != nil {
				return nil, err
			}
		default:
			logging.Infof("skipping unsupported tar entry %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
	return roots, nil
}

func writeEntry(name string, mode os.FileMode, r io.Reader) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return f.Close()
}

// entryPath maps an archive member name to its location under destDir,
// rejecting names which would end up outside of it. rel is the slash-separated
// path relative to destDir.
func entryPath(destDir, name string) (full, rel string, _ error) {
	if path.IsAbs(name) || strings.Contains(name, `\`) || strings.HasPrefix(path.Clean(name), "../") {
		return "", "", xerrors.Errorf("archive entry %q escapes %s", name, destDir)
	}
	rel = strings.TrimPrefix(path.Clean("/"+name), "/")
	return filepath.Join(destDir, filepath.FromSlash(rel)), rel, nil
}

// checkParents fails if a directory on the way to the slash-separated path
// rel below destDir is a symlink: writing through it could end up anywhere.
func checkParents(destDir, rel string) error {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		p := filepath.Join(destDir, filepath.FromSlash(strings.Join(parts[:i], "/")))
		fi, err := os.Lstat(p)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return xerrors.Errorf("archive entry %q traverses symlink %s", rel, p)
		}
	}
	return nil
}

// checkLinkTarget resolves the target of the symlink rel component by
// component. The target must stay within destDir, must not pass through
// another symlink and may only leave directories which exist.
func checkLinkTarget(destDir, rel, linkname string) error {
	if path.IsAbs(linkname) || strings.Contains(linkname, `\`) {
		return xerrors.Errorf("symlink %s -> %s escapes %s", rel, linkname, destDir)
	}
	parts := append(strings.Split(path.Dir(rel), "/"), strings.Split(linkname, "/")...)
	var stack []string
	lstat := func() (os.FileInfo, error) {
		return os.Lstat(filepath.Join(destDir, filepath.FromSlash(strings.Join(stack, "/"))))
	}
	for i, p := range parts {
		switch p {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return xerrors.Errorf("symlink %s -> %s escapes %s", rel, linkname, destDir)
			}
			if fi, err := lstat(); err != nil || !fi.IsDir() {
				return xerrors.Errorf("symlink %s -> %s: %s is not a directory", rel, linkname, strings.Join(stack, "/"))
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, p)
			if i == len(parts)-1 {
				break
			}
			if fi, err := lstat(); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				return xerrors.Errorf("symlink %s -> %s traverses symlink %s", rel, linkname, strings.Join(stack, "/"))
			}
		}
	}
	return nil
}

// removeExisting makes room for an entry at name. Directories are never
// replaced.
func removeExisting(name string) error {
	fi, err := os.Lstat(name)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return xerrors.Errorf("archive entry %s would replace a directory", name)
	}
	return os.Remove(name)
}
