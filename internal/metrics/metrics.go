// Package metrics instruments pipeline stage transitions with OpenTelemetry
// counters. No exporter is wired (no OTLP, no network transport)
// since xenomorph is a one-shot CLI, not a long-lived service; the SDK's
// in-process aggregation is enough for a final summary.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder holds the instruments the pipeline emits into.
type Recorder struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	stageTransitions metric.Int64Counter
	layerBytes       metric.Int64Counter
	processesTerminated metric.Int64Counter
	processesKilled     metric.Int64Counter
	processesStubborn   metric.Int64Counter
}

// New builds a Recorder with an in-process MeterProvider (no exporter).
func New() (*Recorder, error) {
	provider := sdkmetric.NewMeterProvider()
	meter := provider.Meter("xenomorph")

	stageTransitions, err := meter.Int64Counter("xenomorph.stage.transitions")
	if err != nil {
		return nil, err
	}
	layerBytes, err := meter.Int64Counter("xenomorph.rootfs.layer_bytes")
	if err != nil {
		return nil, err
	}
	terminated, err := meter.Int64Counter("xenomorph.procs.terminated")
	if err != nil {
		return nil, err
	}
	killed, err := meter.Int64Counter("xenomorph.procs.killed")
	if err != nil {
		return nil, err
	}
	stubborn, err := meter.Int64Counter("xenomorph.procs.stubborn")
	if err != nil {
		return nil, err
	}

	return &Recorder{
		provider:            provider,
		meter:                meter,
		stageTransitions:     stageTransitions,
		layerBytes:           layerBytes,
		processesTerminated:  terminated,
		processesKilled:      killed,
		processesStubborn:    stubborn,
	}, nil
}

// Stage records a pipeline stage transition (build/verify/coordinate/
// terminate/prepare/execute).
func (r *Recorder) Stage(ctx context.Context, name string) {
	if r == nil {
		return
	}
	r.stageTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", name)))
}

// LayerBytes adds n to the layer-bytes counter; the pipeline calls it once
// with the build's total layer size.
func (r *Recorder) LayerBytes(ctx context.Context, n int64) {
	if r == nil {
		return
	}
	r.layerBytes.Add(ctx, n)
}

// Termination records the terminator's result counts.
func (r *Recorder) Termination(ctx context.Context, terminated, killed, stubborn int) {
	if r == nil {
		return
	}
	r.processesTerminated.Add(ctx, int64(terminated))
	r.processesKilled.Add(ctx, int64(killed))
	r.processesStubborn.Add(ctx, int64(stubborn))
}

// Shutdown flushes and releases the provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
