package server

import (
	"context"
	"sync"
	"testing"
	"time"

	esModel "github.com/Avi18971911/Beacon/internal/db/elasticsearch/model"
	"github.com/Avi18971911/Beacon/internal/metrics"
	"github.com/Avi18971911/Beacon/internal/project"
	"github.com/Avi18971911/Beacon/internal/project/trace/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonV1 "go.opentelemetry.io/proto/otlp/common/v1"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
)

type recordingBuffer struct {
	mu        sync.Mutex
	documents []esModel.SpanDocument
}

func (rb *recordingBuffer) WriteToBuffer(value []esModel.SpanDocument) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.documents = append(rb.documents, value...)
}

func (rb *recordingBuffer) Flush(context.Context) error {
	return nil
}

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func stringKV(key, value string) *commonV1.KeyValue {
	return &commonV1.KeyValue{Key: key, Value: &commonV1.AnyValue{Value: &commonV1.AnyValue_StringValue{StringValue: value}}}
}

func intKV(key string, value int64) *commonV1.KeyValue {
	return &commonV1.KeyValue{Key: key, Value: &commonV1.AnyValue{Value: &commonV1.AnyValue_IntValue{IntValue: value}}}
}

func protoSpan(id, parent byte, attributes ...*commonV1.KeyValue) *v1.Span {
	span := &v1.Span{
		TraceId:           []byte{0xaa, 0xbb},
		SpanId:            []byte{id},
		Name:              "span",
		Kind:              v1.Span_SPAN_KIND_INTERNAL,
		StartTimeUnixNano: uint64(start.UnixNano()),
		EndTimeUnixNano:   uint64(start.Add(250 * time.Millisecond).UnixNano()),
		Attributes:        attributes,
	}
	if parent != 0 {
		span.ParentSpanId = []byte{parent}
	}
	return span
}

func exportRequest(projectName string, spans ...*v1.Span) *protoTrace.ExportTraceServiceRequest {
	var resourceAttributes []*commonV1.KeyValue
	if projectName != "" {
		resourceAttributes = append(resourceAttributes, stringKV(ProjectNameAttribute, projectName))
	}
	return &protoTrace.ExportTraceServiceRequest{
		ResourceSpans: []*v1.ResourceSpans{{
			Resource:   &resourceV1.Resource{Attributes: resourceAttributes},
			ScopeSpans: []*v1.ScopeSpans{{Spans: spans}},
		}},
	}
}

func newTestServer() (TraceServiceServerImpl, *project.Registry, *recordingBuffer, *metrics.Metrics) {
	logger := zap.NewNop()
	registry := project.NewRegistry(project.DefaultProjectName, 0.01, logger)
	buffer := &recordingBuffer{}
	m := metrics.NewMetrics(func() int { return len(registry.Names()) })
	return NewTraceServiceServerImpl(registry, buffer, m, logger), registry, buffer, m
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("Routes spans to the project named by the resource", func(t *testing.T) {
		tss, registry, buffer, m := newTestServer()

		_, err := tss.Export(ctx, exportRequest("chat-app", protoSpan(1, 0), protoSpan(2, 1)))
		require.NoError(t, err)

		p, err := registry.Get("chat-app")
		require.NoError(t, err)
		assert.Equal(t, 2, p.SpanCount(nil, nil))
		assert.Equal(t, 1, p.TraceCount(nil, nil))
		assert.Len(t, buffer.documents, 2)
		assert.Equal(t, p.ID.String()+":01", buffer.documents[0].Id)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.SpansReceived.WithLabelValues("chat-app")))
	})

	t.Run("Falls back to the default project", func(t *testing.T) {
		tss, registry, _, _ := newTestServer()

		_, err := tss.Export(ctx, exportRequest("", protoSpan(1, 0)))
		require.NoError(t, err)
		assert.Equal(t, 1, registry.Default().SpanCount(nil, nil))
	})

	t.Run("Converts ids, times and status", func(t *testing.T) {
		tss, registry, _, _ := newTestServer()
		span := protoSpan(2, 1)
		span.Status = &v1.Status{Code: v1.Status_STATUS_CODE_ERROR, Message: "boom"}

		_, err := tss.Export(ctx, exportRequest("", span))
		require.NoError(t, err)

		record, ok := registry.Default().GetSpan("02")
		require.True(t, ok)
		assert.Equal(t, "aabb", record.Span.TraceID)
		assert.Equal(t, "01", record.Span.ParentSpanID)
		assert.Equal(t, "SPAN_KIND_INTERNAL", record.Span.SpanKind)
		assert.Equal(t, start, record.Span.StartTime)
		assert.Equal(t, model.Status{Code: model.ERROR, Message: "boom"}, record.Span.Status)
		latency, _ := record.Computed(model.LatencyMs)
		assert.Equal(t, 250.0, latency)
		errors, _ := record.Computed(model.ErrorCount)
		assert.Equal(t, 1.0, errors)
	})

	t.Run("Nests dotted attributes so token counts propagate", func(t *testing.T) {
		tss, registry, _, _ := newTestServer()

		_, err := tss.Export(ctx, exportRequest(
			"",
			protoSpan(1, 0),
			protoSpan(2, 1, intKV("llm.token_count.total", 40)),
			protoSpan(3, 1, intKV("llm.token_count.total", 2)),
		))
		require.NoError(t, err)

		root, ok := registry.Default().GetSpan("01")
		require.True(t, ok)
		total, _ := root.Computed(model.CumulativeLLMTokenCountTotal)
		assert.Equal(t, 42.0, total)
		assert.Equal(t, 42.0, registry.Default().TokenCountTotal())
	})

	t.Run("Turns indexed attribute keys into a document list", func(t *testing.T) {
		tss, registry, _, _ := newTestServer()

		_, err := tss.Export(ctx, exportRequest(
			"",
			protoSpan(1, 0,
				stringKV("retrieval.documents.0.document.id", "a"),
				stringKV("retrieval.documents.1.document.id", "b"),
				stringKV("retrieval.documents.2.document.id", "c"),
			),
		))
		require.NoError(t, err)
		assert.Equal(t, 3, registry.Default().GetNumDocuments("01"))
	})

	t.Run("Ignores duplicate spans sent twice", func(t *testing.T) {
		tss, registry, _, _ := newTestServer()

		_, err := tss.Export(ctx, exportRequest("", protoSpan(1, 0)))
		require.NoError(t, err)
		_, err = tss.Export(ctx, exportRequest("", protoSpan(1, 0)))
		require.NoError(t, err)
		assert.Equal(t, 1, registry.Default().SpanCount(nil, nil))
	})
}
