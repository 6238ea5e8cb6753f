package reader

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FeedContext wraps Feed in an OpenTelemetry span when the Reader was built
// with WithTracer; otherwise it is exactly Feed with an ignored context.
// Demonstrates the tracing hook without mandating a configured collector.
func (r *Reader) FeedContext(ctx context.Context, buf []byte, maxMessages int) (Result, error) {
	if r.tracer == nil {
		return r.Feed(buf, maxMessages)
	}

	_, span := r.tracer.Start(ctx, "reader.Feed",
		trace.WithAttributes(
			attribute.String("modescore.reader.mode", r.mode.String()),
			attribute.Int("modescore.reader.buffer_len", len(buf)),
		),
	)
	defer span.End()

	res, err := r.Feed(buf, maxMessages)
	span.SetAttributes(
		attribute.Int("modescore.reader.consumed", res.Consumed),
		attribute.Int("modescore.reader.messages", len(res.Messages)),
	)
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}
