package server

import (
	"context"
	"os/signal"
)

// NotifyContext returns a copy of parent that is cancelled when the process
// receives its first shutdown signal: SIGINT or SIGTERM on unix, interrupt
// elsewhere.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
