// Package runtest provides a run.Runner which records commands instead of
// executing them.
package runtest

import (
	"context"
	"sync"

	"github.com/distr1/cairodeps/internal/run"
)

// Recorder implements run.Runner. Each command is appended to the log and,
// if Hook is set, handed to it to simulate side effects and results.
type Recorder struct {
	Hook func(c *run.Cmd) ([]byte, error)

	mu   sync.Mutex
	cmds []*run.Cmd
}

func (r *Recorder) record(c *run.Cmd) ([]byte, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()
	if r.Hook == nil {
		return nil, nil
	}
	return r.Hook(c)
}

func (r *Recorder) Run(ctx context.Context, c *run.Cmd) error {
	_, err := r.record(c)
	return err
}

func (r *Recorder) Output(ctx context.Context, c *run.Cmd) ([]byte, error) {
	return r.record(c)
}

// Cmds returns the recorded commands in execution order.
func (r *Recorder) Cmds() []*run.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*run.Cmd{}, r.cmds...)
}

// Args returns the argument vectors of the recorded commands.
func (r *Recorder) Args() [][]string {
	var result [][]string
	for _, c := range r.Cmds() {
		result = append(result, c.Args)
	}
	return result
}
