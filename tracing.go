package docstore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrCollection = attribute.Key("docstore.collection")
	AttrRecords    = attribute.Key("docstore.records")
	AttrEncrypted  = attribute.Key("docstore.encrypted")
	AttrFellBack   = attribute.Key("docstore.fell_back")
	AttrBackup     = attribute.Key("docstore.backup")
)

func (a *Adapter[T]) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, "docstore."+op,
		trace.WithAttributes(
			AttrCollection.String(a.name),
			AttrEncrypted.Bool(a.codec.encrypted()),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
