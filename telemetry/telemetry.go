// Package telemetry defines the logging, metrics, and tracing interfaces
// threaded through the engine, node, and agent layers. Production code
// wires the clue/OpenTelemetry implementation; tests use the no-op one.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured log messages scoped to a run or workflow.
	Logger interface {
		Debug(ctx context.Context, msg string, kv ...any)
		Info(ctx context.Context, msg string, kv ...any)
		Warn(ctx context.Context, msg string, kv ...any)
		Error(ctx context.Context, msg string, kv ...any)
	}

	// Metrics records counters and timers.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
	}

	// Tracer creates spans for tracing operation execution.
	Tracer interface {
		StartSpan(ctx context.Context, name string) (context.Context, Span)
	}

	// Span represents an active unit of tracing work.
	Span interface {
		SetAttribute(key string, value any)
		RecordError(err error)
		End()
	}
)
