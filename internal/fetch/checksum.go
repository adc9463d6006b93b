package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/distr1/cairodeps/internal/logging"
	"golang.org/x/xerrors"
	"lukechampine.com/blake3"
)

// Checksum is an expected archive digest.
type Checksum struct {
	Algo string // "sha256" or "blake3"
	Hex  string
}

func (c Checksum) String() string {
	if c.Algo == "sha256" {
		return c.Hex
	}
	return c.Algo + ":" + c.Hex
}

// ParseChecksum parses "<hex>" (sha256) or "<algo>:<hex>".
func ParseChecksum(s string) (Checksum, error) {
	algo, digest := "sha256", s
	if idx := strings.IndexByte(s, ':'); idx > -1 {
		algo, digest = s[:idx], s[idx+1:]
	}
	h, err := newHash(algo)
	if err != nil {
		return Checksum{}, err
	}
	if len(digest) != 2*h.Size() {
		return Checksum{}, xerrors.Errorf("malformed %s checksum %q: want %d hex digits", algo, digest, 2*h.Size())
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return Checksum{}, xerrors.Errorf("malformed %s checksum %q: %v", algo, digest, err)
	}
	return Checksum{Algo: algo, Hex: digest}, nil
}

func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case "sha256":
		return sha256.New(), nil
	case "blake3":
		return blake3.New(32, nil), nil
	}
	return nil, xerrors.Errorf("unknown checksum algorithm %q (want sha256 or blake3)", algo)
}

// Digest returns the lower-case hex digest of the file at path.
func Digest(path, algo string) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", xerrors.Errorf("reading %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify returns an error unless the file at path has the digest want.
func Verify(path string, want Checksum) error {
	logging.Infof("verifying %s", path)
	got, err := Digest(path, want.Algo)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, want.Hex) {
		return xerrors.Errorf("%s mismatch for %s: got %s, want %s", want.Algo, path, got, want.Hex)
	}
	return nil
}
