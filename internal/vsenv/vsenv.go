// Package vsenv locates a native C compiler environment on Windows.
//
// Meson needs cl.exe and friends on PATH. Unless the process already runs in
// a Visual Studio developer shell (or another compiler is available), the
// latest Visual Studio installation is located with vswhere.exe and the
// variables set by its vcvars batch file are merged into the environment.
package vsenv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/cairodeps"
	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/logging"
	"github.com/distr1/cairodeps/internal/run"
	"golang.org/x/xerrors"
)

const sentinel = "---SPLIT---"

// CompilerEnv makes a C compiler available to subprocesses.
type CompilerEnv interface {
	// Setup amends env for building arch. It reports whether env was
	// amended with an MSVC environment.
	Setup(ctx context.Context, env *environ.Env, arch cairodeps.Arch) (bool, error)
	String() string
}

// NotApplicable is used on platforms which need no compiler discovery.
type NotApplicable struct{}

func (NotApplicable) Setup(context.Context, *environ.Env, cairodeps.Arch) (bool, error) {
	return false, nil
}

func (NotApplicable) String() string { return "not applicable" }

// Native is used when a compiler is already set up.
type Native struct {
	Reason string
}

func (Native) Setup(context.Context, *environ.Env, cairodeps.Arch) (bool, error) {
	return false, nil
}

func (n Native) String() string { return "native (" + n.Reason + ")" }

// nativeCompilers are looked up on PATH to detect an existing toolchain.
var nativeCompilers = []string{"cl.exe", "cc", "gcc", "clang", "clang-cl"}

// Select returns the CompilerEnv to use for a process running on goos with
// environment env. Discovery runs its subprocesses using r.
func Select(goos string, env *environ.Env, r run.Runner) CompilerEnv {
	if goos != "windows" {
		return NotApplicable{}
	}
	if env.Value("OSTYPE") == "cygwin" {
		return NotApplicable{}
	}
	if strings.Contains(env.Value("PATH"), "Visual Studio") {
		return Native{Reason: "PATH contains Visual Studio"}
	}
	// Set by the vcvars batch files of Visual Studio 2012 and newer.
	if _, ok := env.Get("VSINSTALLDIR"); ok {
		return Native{Reason: "VSINSTALLDIR is set"}
	}
	for _, cc := range nativeCompilers {
		if path, ok := env.LookPath(cc); ok {
			return Native{Reason: "found " + path}
		}
	}
	return &Discover{Runner: r}
}

// Discover sets up the environment of the latest Visual Studio installation
// providing the x86/x64 C++ tools.
type Discover struct {
	Runner run.Runner
}

func (*Discover) String() string { return "discover (vswhere.exe)" }

type installation struct {
	InstallationPath string `json:"installationPath"`
}

func (d *Discover) Setup(ctx context.Context, env *environ.Env, arch cairodeps.Arch) (bool, error) {
	root := env.Value("ProgramFiles(x86)")
	if root == "" {
		root = env.Value("ProgramFiles")
	}
	locator := filepath.Join(root, "Microsoft Visual Studio", "Installer", "vswhere.exe")
	if _, err := os.Stat(locator); err != nil {
		return false, xerrors.Errorf("could not find %s: %v", locator, err)
	}
	out, err := d.Runner.Output(ctx, &run.Cmd{
		Args: []string{
			locator,
			"-latest",
			"-prerelease",
			"-requiresAny",
			"-requires", "Microsoft.VisualStudio.Component.VC.Tools.x86.x64",
			"-products", "*",
			"-utf8",
			"-format", "json",
		},
		Env: env,
	})
	if err != nil {
		return false, err
	}
	var installs []installation
	if err := json.Unmarshal(out, &installs); err != nil || len(installs) == 0 || installs[0].InstallationPath == "" {
		// e.g. the installer is present, but Visual Studio itself is not
		return false, xerrors.New("could not parse vswhere.exe output")
	}

	bat := filepath.Join(installs[0].InstallationPath, "VC", "Auxiliary", "Build", "vcvars"+arch.String()+".bat")
	if _, err := os.Stat(bat); err != nil {
		return false, xerrors.Errorf("could not find %s: %v", bat, err)
	}
	logging.Infof("loading Visual Studio environment from %s", bat)

	vars, err := d.dump(ctx, env, bat)
	if err != nil {
		return false, err
	}
	env.Merge(vars)
	return true, nil
}

// dump runs bat and returns the environment variables it leaves behind.
func (d *Discover) dump(ctx context.Context, env *environ.Env, bat string) (map[string]string, error) {
	f, err := os.CreateTemp("", "cairodeps-vsenv-*.bat")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	if _, err := fmt.Fprintf(f, "@ECHO OFF\r\ncall \"%s\"\r\nECHO %s\r\nSET\r\n", bat, sentinel); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	shell := env.Value("ComSpec")
	if shell == "" {
		shell = "cmd.exe"
	}
	out, err := d.Runner.Output(ctx, &run.Cmd{
		Args: []string{shell, "/c", f.Name()},
		Env:  env,
	})
	if err != nil {
		return nil, err
	}
	return parseSet(string(out)), nil
}

// parseSet extracts the KEY=VALUE lines following the sentinel line.
func parseSet(out string) map[string]string {
	vars := make(map[string]string)
	seen := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == sentinel {
			seen = true
			continue
		}
		if !seen || line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 1 {
			continue
		}
		k, v := line[:idx], line[idx+1:]
		if strings.EqualFold(k, "path") {
			k = "PATH"
		}
		vars[k] = v
	}
	return vars
}
