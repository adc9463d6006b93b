package cairodeps

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/distr1/cairodeps/internal/logging"
)

// InterruptibleContext returns a context which is canceled on the first
// SIGINT or SIGTERM, which kills the running meson, pip or patch process. A
// second signal terminates cairodeps immediately.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sig)
		select {
		case s := <-sig:
			logging.Warnf("received %v, aborting", s)
			canc()
		case <-ctx.Done():
		}
	}()
	return ctx, canc
}
