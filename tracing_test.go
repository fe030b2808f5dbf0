package docstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	docstore "github.com/goliatone/go-docstore"
	"github.com/goliatone/go-docstore/pkg/storage"
)

func TestSpansCoverLifecycle(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mem := storage.NewMemory()
	adapter, err := docstore.New[note](notesName, mem, docstore.WithTracer(provider.Tracer("test")))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, adapter.Register(ctx, nil))
	items := []note{{ID: "a", Title: "A"}}
	require.NoError(t, adapter.Save(ctx, items, docstore.ChangeSet[note]{Added: items}))

	mem.Put(notesName, []byte(`{"id":"a"}`))
	_, err = adapter.Load(ctx)
	require.Error(t, err)

	spans := recorder.Ended()
	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name())
	}
	// Nested loads end before their parents.
	assert.Equal(t, []string{
		"docstore.load", "docstore.register",
		"docstore.load", "docstore.save",
		"docstore.load",
	}, names)

	save := spans[3]
	attrs := map[string]any{}
	for _, kv := range save.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, notesName, attrs[string(docstore.AttrCollection)])
	assert.Equal(t, int64(1), attrs[string(docstore.AttrRecords)])
	assert.Equal(t, false, attrs[string(docstore.AttrFellBack)])
	assert.Equal(t, codes.Unset, save.Status().Code)

	nestedLoad := spans[2]
	assert.Equal(t, save.SpanContext().SpanID(), nestedLoad.Parent().SpanID())

	failed := spans[4]
	assert.Equal(t, codes.Error, failed.Status().Code)
	require.NotEmpty(t, failed.Events())
	assert.Equal(t, "exception", failed.Events()[0].Name)
}
