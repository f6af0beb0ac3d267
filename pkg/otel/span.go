package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartTurnSpan starts a span covering one conversational turn for a call.
func StartTurnSpan(ctx context.Context, callID string, turn int) (context.Context, trace.Span) {
	tracer := otel.Tracer("voice-agent")
	return tracer.Start(ctx, "session.turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("call.id", callID),
			attribute.Int("call.turn", turn),
		),
	)
}

// StartToolSpan starts a span covering one tool execution within a turn.
func StartToolSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	tracer := otel.Tracer("voice-agent")
	return tracer.Start(ctx, "tool."+tool,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("call.id", callID),
			attribute.String("tool.name", tool),
		),
	)
}
