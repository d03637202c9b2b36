package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/observability/metrics"
	"github.com/swipedeck/swipedeck/internal/app/observability/tracer"
)

// ObservabilityShutdownFunc flushes and stops the telemetry providers.
type ObservabilityShutdownFunc func(context.Context) error

// InitObservability stands up the OTel tracer and meter providers, starts
// the Prometheus scrape listener on metricsAddr, and registers the
// application instruments.
func InitObservability(serviceName, metricsAddr string, logger *zap.Logger) (ObservabilityShutdownFunc, error) {
	otelShutdown, err := tracer.InitOtelProviders(serviceName, metricsAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics.InitAppMetrics()
	logger.Info("Observability initialized", zap.String("metrics_endpoint", metricsAddr+"/metrics"))

	return otelShutdown, nil
}
