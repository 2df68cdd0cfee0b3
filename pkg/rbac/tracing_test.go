package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func TestConfigLoader_TracesFetch(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()

	loader, _ := newTestLoader(testRows())
	loader.Load(ctx)
	NewConfigLoader(&fakeRowSource{err: errDirectoryDown}, time.Minute, nil, nil).Load(ctx)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "rbac.config.fetch", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("rbac.config.source", "remote"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("rbac.config.rows", len(testRows())))

	assert.Contains(t, spans[1].Attributes(), attribute.String("rbac.config.source", "fallback"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestDirectoryLookups_Traced(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()

	dir := teamDirectory()
	dir.failGroups = map[string]bool{gV2: true}
	directory := newTestDirectory(dir)
	directory.Resolve(ctx, []string{gV1, gV2})

	byGroup := map[string]codes.Code{}
	for _, span := range recorder.Ended() {
		if span.Name() != "rbac.directory.group_members" {
			continue
		}
		for _, attr := range span.Attributes() {
			if attr.Key == "rbac.group.id" {
				byGroup[attr.Value.AsString()] = span.Status().Code
			}
		}
	}
	assert.Equal(t, map[string]codes.Code{gV1: codes.Unset, gV2: codes.Error}, byGroup)
}
