package server

import (
	"context"
	"encoding/hex"
	"time"

	esModel "github.com/Avi18971911/Beacon/internal/db/elasticsearch/model"
	"github.com/Avi18971911/Beacon/internal/db/write_buffer"
	"github.com/Avi18971911/Beacon/internal/metrics"
	"github.com/Avi18971911/Beacon/internal/project"
	"github.com/Avi18971911/Beacon/internal/project/trace/model"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
)

// ProjectNameAttribute is the resource attribute naming the project a batch of spans belongs to.
const ProjectNameAttribute = "openinference.project.name"

type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	registry    *project.Registry
	writeBuffer write_buffer.DatabaseWriteBuffer[esModel.SpanDocument]
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewTraceServiceServerImpl creates the OTLP trace receiver. dbWriteBuffer may be nil, in which
// case spans are only held in memory.
func NewTraceServiceServerImpl(
	registry *project.Registry,
	dbWriteBuffer write_buffer.DatabaseWriteBuffer[esModel.SpanDocument],
	m *metrics.Metrics,
	logger *zap.Logger,
) TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return TraceServiceServerImpl{
		registry:    registry,
		writeBuffer: dbWriteBuffer,
		metrics:     m,
		logger:      logger,
	}
}

func (tss TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	for _, resourceSpan := range req.GetResourceSpans() {
		p := tss.registry.GetOrCreate(getProjectName(resourceSpan))
		if p.IsArchived() {
			tss.logger.Debug("Receiving spans for archived project", zap.String("project", p.Name))
		}

		typedSpans := getTypedSpans(resourceSpan)
		documents := make([]esModel.SpanDocument, len(typedSpans))
		for i, span := range typedSpans {
			p.AddSpan(span)
			documents[i] = esModel.NewSpanDocument(p.ID.String(), p.Name, span)
		}
		tss.metrics.SpansReceived.WithLabelValues(p.Name).Add(float64(len(typedSpans)))
		if tss.writeBuffer != nil && len(documents) > 0 {
			tss.writeBuffer.WriteToBuffer(documents)
		}
	}

	return &protoTrace.ExportTraceServiceResponse{}, nil
}

func getProjectName(resourceSpan *v1.ResourceSpans) string {
	for _, attr := range resourceSpan.GetResource().GetAttributes() {
		if attr.Key == ProjectNameAttribute {
			return attr.Value.GetStringValue()
		}
	}
	return ""
}

func getTypedSpans(resourceSpan *v1.ResourceSpans) []model.Span {
	var typedSpans []model.Span
	for _, scopeSpan := range resourceSpan.GetScopeSpans() {
		for _, span := range scopeSpan.GetSpans() {
			typedSpans = append(typedSpans, getTypedSpan(span))
		}
	}
	return typedSpans
}

func getTypedSpan(span *v1.Span) model.Span {
	return model.Span{
		SpanID:       hex.EncodeToString(span.SpanId),
		TraceID:      hex.EncodeToString(span.TraceId),
		ParentSpanID: hex.EncodeToString(span.ParentSpanId),
		Name:         span.Name,
		SpanKind:     span.Kind.String(),
		StartTime:    unixNano(span.StartTimeUnixNano),
		EndTime:      unixNano(span.EndTimeUnixNano),
		Status:       getStatus(span),
		Attributes:   getAttributeMap(span.Attributes),
		Events:       getEvents(span),
	}
}

// unixNano maps the OTLP "unset" timestamp of 0 to the zero time.
func unixNano(timestamp uint64) time.Time {
	if timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(timestamp)).UTC()
}

func getEvents(span *v1.Span) []model.SpanEvent {
	if len(span.Events) == 0 {
		return nil
	}
	events := make([]model.SpanEvent, len(span.Events))
	for i, event := range span.Events {
		events[i] = model.SpanEvent{
			Name:       event.Name,
			Attributes: getAttributeMap(event.Attributes),
			Timestamp:  unixNano(event.TimeUnixNano),
		}
	}
	return events
}

func getStatus(span *v1.Span) model.Status {
	status := model.Status{Message: span.GetStatus().GetMessage()}
	switch span.GetStatus().GetCode() {
	case v1.Status_STATUS_CODE_OK:
		status.Code = model.OK
	case v1.Status_STATUS_CODE_ERROR:
		status.Code = model.ERROR
	default:
		status.Code = model.UNSET
	}
	return status
}
