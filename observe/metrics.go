package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Fetch outcomes recorded by the interception engine.
const (
	OutcomeHit         = "hit"
	OutcomeNetwork     = "network"
	OutcomeUncacheable = "uncacheable"
	OutcomeOfflinePage = "offline_page"
	OutcomeUnavailable = "unavailable"
	OutcomePassthrough = "passthrough"
)

// Metrics records worker activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly.
type Metrics interface {
	// RecordFetch records one intercepted request and how it was answered.
	RecordFetch(ctx context.Context, outcome string, duration time.Duration)

	// RecordReplay records one offline queue item replay.
	RecordReplay(ctx context.Context, err error)

	// RecordPrecache records the result of an install precache pass.
	RecordPrecache(ctx context.Context, assets int, err error)
}

type otelMetrics struct {
	fetchTotal    metric.Int64Counter
	fetchDuration metric.Float64Histogram
	replayTotal   metric.Int64Counter
	precached     metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	fetchTotal, err := meter.Int64Counter(
		"offlinekit.fetch.total",
		metric.WithDescription("Intercepted requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"offlinekit.fetch.duration_ms",
		metric.WithDescription("Time to answer an intercepted request in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	replayTotal, err := meter.Int64Counter(
		"offlinekit.queue.replay.total",
		metric.WithDescription("Offline queue replays by result"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	precached, err := meter.Int64Counter(
		"offlinekit.precache.assets",
		metric.WithDescription("Assets stored by successful install passes"),
		metric.WithUnit("{asset}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		fetchTotal:    fetchTotal,
		fetchDuration: fetchDuration,
		replayTotal:   replayTotal,
		precached:     precached,
	}, nil
}

func (m *otelMetrics) RecordFetch(ctx context.Context, outcome string, duration time.Duration) {
	opt := metric.WithAttributes(attribute.String("outcome", outcome))
	m.fetchTotal.Add(ctx, 1, opt)
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *otelMetrics) RecordReplay(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.replayTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *otelMetrics) RecordPrecache(ctx context.Context, assets int, err error) {
	if err != nil {
		return
	}
	m.precached.Add(ctx, int64(assets))
}

type nopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordFetch(context.Context, string, time.Duration) {}

func (nopMetrics) RecordReplay(context.Context, error) {}

func (nopMetrics) RecordPrecache(context.Context, int, error) {}
