package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var meter = otel.Meter("coursescope/internal/gateway")

type instruments struct {
	requests metric.Int64Counter
	upstream metric.Float64Histogram
}

func newInstruments() instruments {
	var ins instruments
	var err error
	ins.requests, err = meter.Int64Counter(
		"coursescope_gateway_requests_total",
		metric.WithDescription("Scrape and relay requests by outcome."),
	)
	if err != nil {
		ins.requests = noop.Int64Counter{}
	}
	ins.upstream, err = meter.Float64Histogram(
		"coursescope_upstream_fetch_seconds",
		metric.WithDescription("Upstream page retrieval latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		ins.upstream = noop.Float64Histogram{}
	}
	return ins
}

func (ins instruments) record(ctx context.Context, op string, err error) {
	ins.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", KindOf(err).String()),
	))
}

func (ins instruments) observeFetch(ctx context.Context, op string, start time.Time) {
	ins.upstream.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("op", op)))
}
