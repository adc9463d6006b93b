// Package run executes external tools with an explicit environment.
package run

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/distr1/cairodeps/internal/environ"
	"github.com/distr1/cairodeps/internal/logging"
	"golang.org/x/xerrors"
)

// Cmd describes one subprocess invocation.
type Cmd struct {
	Args []string     // Args[0] is the program, resolved against Env's PATH
	Dir  string       // working directory; empty means the current one
	Env  *environ.Env // nil means the ambient process environment

	Stdout io.Writer // defaults to os.Stdout (Run only)
	Stderr io.Writer // defaults to os.Stderr
}

func (c *Cmd) String() string { return strings.Join(c.Args, " ") }

// Runner runs commands to completion. Implementations must return an error
// wrapping *exec.ExitError when the command exits non-zero.
type Runner interface {
	Run(ctx context.Context, c *Cmd) error
	Output(ctx context.Context, c *Cmd) ([]byte, error)
}

// Exec is the Runner which starts real processes.
type Exec struct{}

func (Exec) command(ctx context.Context, c *Cmd) (*exec.Cmd, error) {
	if len(c.Args) == 0 {
		return nil, xerrors.New("BUG: empty command")
	}
	name := c.Args[0]
	env := c.Env
	if env == nil {
		env = environ.FromOS()
	}
	// exec.Command would resolve name against the PATH of this process,
	// which is not the PATH handed to the child.
	if resolved, ok := env.LookPath(name); ok {
		name = resolved
	} else {
		return nil, xerrors.Errorf("%v: executable %q not found in PATH", c.Args, c.Args[0])
	}
	cmd := exec.CommandContext(ctx, name, c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = env.Environ()
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}
	return cmd, nil
}

// Run runs c with stdout and stderr passed through.
func (e Exec) Run(ctx context.Context, c *Cmd) error {
	cmd, err := e.command(ctx, c)
	if err != nil {
		return err
	}
	cmd.Stdout = os.Stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	logging.Infof("running %v (cwd: %s)", c.Args, dirOrDot(c.Dir))
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", c.Args, err)
	}
	return nil
}

// Output runs c and returns its standard output.
func (e Exec) Output(ctx context.Context, c *Cmd) ([]byte, error) {
	cmd, err := e.command(ctx, c)
	if err != nil {
		return nil, err
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, xerrors.Errorf("%v: %w", c.Args, err)
	}
	return stdout.Bytes(), nil
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// ExitCode returns the exit code of the subprocess failure wrapped in err, if
// any.
func ExitCode(err error) (int, bool) {
	var ee *exec.ExitError
	if xerrors.As(err, &ee) && ee.ExitCode() > 0 {
		return ee.ExitCode(), true
	}
	return 0, false
}
