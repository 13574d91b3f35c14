// Copyright (c) Dapkit contributors. All rights reserved.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dapkit/dapkit/internal/dap"
)

const tracerName = "github.com/dapkit/dapkit/internal/telemetry"

// SpanSink implements the dap.TelemetrySink contract by emitting each
// session-start record as a span with flat attributes.
type SpanSink struct {
	tracer trace.Tracer
}

// SessionSink returns the sink for debugger session events.
func (s *System) SessionSink() *SpanSink {
	return &SpanSink{tracer: s.TracerProvider.Tracer(tracerName)}
}

func (s *SpanSink) Record(ctx context.Context, event dap.SessionStarted) error {
	attrs := []attribute.KeyValue{
		attribute.String("spawn_location", string(event.SpawnLocation)),
		attribute.Bool("with_build_task", event.WithBuildTask),
		attribute.String("adapter", event.Adapter),
		attribute.String("dock_position", event.DockPosition),
	}
	if event.Kind != nil {
		attrs = append(attrs, attribute.String("kind", string(*event.Kind)))
	}

	_, span := s.tracer.Start(ctx, event.EventName, trace.WithAttributes(attrs...))
	span.End()
	return nil
}
