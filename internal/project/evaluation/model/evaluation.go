package model

type SubjectKind int

const (
	InvalidSubject SubjectKind = iota
	SpanSubject
	TraceSubject
	DocumentSubject
)

func (k SubjectKind) String() string {
	switch k {
	case SpanSubject:
		return "span"
	case TraceSubject:
		return "trace"
	case DocumentSubject:
		return "document"
	default:
		return "invalid"
	}
}

// Subject identifies what an evaluation judges: a span, a trace, or the document at a
// position within a retrieval span.
type Subject struct {
	SpanID           string `json:"span_id,omitempty"`
	TraceID          string `json:"trace_id,omitempty"`
	DocumentPosition *int   `json:"document_position,omitempty"` // only meaningful with SpanID
}

func (s Subject) Kind() SubjectKind {
	switch {
	case s.SpanID != "" && s.DocumentPosition != nil:
		if *s.DocumentPosition < 0 {
			return InvalidSubject
		}
		return DocumentSubject
	case s.SpanID != "":
		return SpanSubject
	case s.TraceID != "":
		return TraceSubject
	default:
		return InvalidSubject
	}
}

type Result struct {
	Score       *float64 `json:"score,omitempty"`
	Label       *string  `json:"label,omitempty"`
	Explanation *string  `json:"explanation,omitempty"`
}

type Evaluation struct {
	Name    string  `json:"name"`
	Subject Subject `json:"subject"`
	Result  Result  `json:"result"`
}

// SpanEvaluationRow is one row of the exported span evaluation table, keyed by span id and
// evaluation name.
type SpanEvaluationRow struct {
	SpanID string `json:"context.span_id"`
	Name   string `json:"name"`
	Result
}

type DocumentEvaluationRow struct {
	SpanID           string `json:"context.span_id"`
	DocumentPosition int    `json:"document_position"`
	Name             string `json:"name"`
	Result
}

type ExportedEvaluations struct {
	SpanEvaluations     []SpanEvaluationRow
	DocumentEvaluations []DocumentEvaluationRow
}
