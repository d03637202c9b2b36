package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// GracefulShutdown blocks until SIGINT or SIGTERM, then drains in-flight
// requests for at most timeout before forcing the listener closed. A
// second signal during the drain forces an immediate exit. Completion is
// reported on done so main can wait before returning.
func GracefulShutdown(srv *http.Server, logger *zap.Logger, done chan bool, timeout time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining requests", zap.Duration("timeout", timeout))
	stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("Drain window elapsed with requests still in flight", zap.Error(err))
	}

	done <- true
}
