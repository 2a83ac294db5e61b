package model

import "time"

type StatusCode string

const (
	UNSET StatusCode = "UNSET"
	OK    StatusCode = "OK"
	ERROR StatusCode = "ERROR"
)

type Status struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// Span is a single unit of work as received from an instrumented application. It is never
// modified after ingestion; values derived by the index live on SpanRecord instead.
type Span struct {
	SpanID       string      `json:"span_id"`
	TraceID      string      `json:"trace_id"`
	ParentSpanID string      `json:"parent_span_id,omitempty"` // empty for root spans
	Name         string      `json:"name"`
	SpanKind     string      `json:"span_kind"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      time.Time   `json:"end_time"` // zero while the span has not ended
	Status       Status      `json:"status"`
	Attributes   Attributes  `json:"attributes"`
	Events       []SpanEvent `json:"events,omitempty"`
}

type SpanEvent struct {
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}
