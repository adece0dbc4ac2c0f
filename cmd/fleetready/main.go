// Command fleetready ingests vendor maintenance feeds, reconciles them into
// maintenance events and serves fleet compliance scores.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/fleetready/pkg/logger"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString("fleetready: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
