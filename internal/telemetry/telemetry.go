// Copyright (c) Dapkit contributors. All rights reserved.

// Package telemetry provides the OpenTelemetry-backed sink for session
// start events. The dap package only defines the sink contract; this
// package owns exporter setup and shutdown.
package telemetry

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// System owns the tracer provider and exporter used for telemetry output.
type System struct {
	TracerProvider *sdktrace.TracerProvider
	spanExporter   sdktrace.SpanExporter
}

// NewSystem creates a telemetry system writing spans to w. A nil writer
// discards all telemetry.
func NewSystem(w io.Writer) (*System, error) {
	spanExp, expErr := newTraceExporter(w)
	if expErr != nil {
		return nil, expErr
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExp, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(tp)

	return &System{
		TracerProvider: tp,
		spanExporter:   spanExp,
	}, nil
}

// Shutdown flushes and releases the telemetry pipeline.
func (s *System) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.TracerProvider.Shutdown(ctx),
		s.spanExporter.Shutdown(ctx),
	)
}
