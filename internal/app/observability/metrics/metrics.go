package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal       metric.Int64Counter
	HTTPRequestDuration     metric.Float64Histogram
	FeedBatchTotal          metric.Int64Counter
	FeedPoolServedTotal     metric.Int64Counter
	FeedFallbackServedTotal metric.Int64Counter
	BackfillTriggersTotal   metric.Int64Counter
	LocationCacheHitsTotal  metric.Int64Counter
	LocationCacheEntries    metric.Int64Gauge
	DBQueryDurationSeconds  metric.Float64Histogram
	DBQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("swipedeck")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.FeedBatchTotal, err = meter.Int64Counter(
			"feed_batch_requests_total",
			metric.WithDescription("Total number of batch feed assemblies"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feed_batch_requests_total: %v", err)
		}

		m.FeedPoolServedTotal, err = meter.Int64Counter(
			"feed_pool_events_served_total",
			metric.WithDescription("Events served from the recommendation pool"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feed_pool_events_served_total: %v", err)
		}

		m.FeedFallbackServedTotal, err = meter.Int64Counter(
			"feed_fallback_events_served_total",
			metric.WithDescription("Events served from the geo-filtered fallback query"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feed_fallback_events_served_total: %v", err)
		}

		m.BackfillTriggersTotal, err = meter.Int64Counter(
			"backfill_triggers_total",
			metric.WithDescription("Recommendation backfill triggers fired"),
			metric.WithUnit("{trigger}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create backfill_triggers_total: %v", err)
		}

		m.LocationCacheHitsTotal, err = meter.Int64Counter(
			"location_count_cache_hits_total",
			metric.WithDescription("Location-count cache hits"),
			metric.WithUnit("{hit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_count_cache_hits_total: %v", err)
		}

		m.LocationCacheEntries, err = meter.Int64Gauge(
			"location_count_cache_entries",
			metric.WithDescription("Live entries in the location-count cache"),
			metric.WithUnit("{entry}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create location_count_cache_entries: %v", err)
		}

		m.DBQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

// TryGet returns the instruments, or nil before InitAppMetrics has run.
// Hot paths use this so unit tests need no meter provider.
func TryGet() *AppMetrics {
	return appMetrics
}
