package handler

import (
	"math"
	"time"

	"github.com/Avi18971911/Beacon/internal/project"
	evalModel "github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	traceModel "github.com/Avi18971911/Beacon/internal/project/trace/model"
)

// ProjectDTO represents a project known to the collector
// @swagger:model ProjectDTO
type ProjectDTO struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type ProjectsResponseDTO struct {
	Projects []ProjectDTO `json:"projects"`
}

// SpanDTO represents a span together with the values the index derived for it
// @swagger:model SpanDTO
type SpanDTO struct {
	SpanID       string    `json:"span_id"`
	TraceID      string    `json:"trace_id"`
	ParentSpanID string    `json:"parent_span_id,omitempty"`
	Name         string    `json:"name"`
	SpanKind     string    `json:"span_kind"`
	StartTime    time.Time `json:"start_time"`
	// Null while the span has not ended
	EndTime    *time.Time             `json:"end_time"`
	Status     StatusDTO              `json:"status"`
	Attributes map[string]interface{} `json:"attributes"`
	Events     []SpanEventDTO         `json:"events"`
	// Latency, error counts and cumulative token counts keyed by name
	ComputedAttributes map[string]float64 `json:"computed_attributes"`
}

type StatusDTO struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type SpanEventDTO struct {
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
	Timestamp  time.Time              `json:"timestamp"`
}

type SpansResponseDTO struct {
	Spans []SpanDTO `json:"spans"`
}

// TraceResponseDTO represents the spans of a trace and the evaluations attached to it
// @swagger:model TraceResponseDTO
type TraceResponseDTO struct {
	TraceID     string          `json:"trace_id"`
	Spans       []SpanDTO       `json:"spans"`
	Evaluations []EvaluationDTO `json:"evaluations"`
}

// EvaluationDTO represents a single evaluation result
// @swagger:model EvaluationDTO
type EvaluationDTO struct {
	Name             string   `json:"name"`
	SpanID           string   `json:"span_id,omitempty"`
	TraceID          string   `json:"trace_id,omitempty"`
	DocumentPosition *int     `json:"document_position,omitempty"`
	Score            *float64 `json:"score"`
	Label            *string  `json:"label"`
	Explanation      *string  `json:"explanation"`
}

type SpanEvaluationsResponseDTO struct {
	Evaluations         []EvaluationDTO `json:"evaluations"`
	DocumentEvaluations []EvaluationDTO `json:"document_evaluations"`
}

// DocumentScoresResponseDTO represents the per-document scores of a retrieval span. Documents
// without a score are null.
// @swagger:model DocumentScoresResponseDTO
type DocumentScoresResponseDTO struct {
	Scores []*float64 `json:"scores"`
}

// SummaryDTO represents the aggregate statistics of a project
// @swagger:model SummaryDTO
type SummaryDTO struct {
	Name            string     `json:"name"`
	SpanCount       int        `json:"span_count"`
	TraceCount      int        `json:"trace_count"`
	TokenCountTotal float64    `json:"token_count_total"`
	LatencyP50Ms    *float64   `json:"latency_ms_p50"`
	LatencyP99Ms    *float64   `json:"latency_ms_p99"`
	StartTime       *time.Time `json:"start_time"`
	StopTime        *time.Time `json:"stop_time"`
	LastUpdatedAt   *time.Time `json:"last_updated_at"`
	Archived        bool       `json:"archived"`
}

type EvaluationNamesResponseDTO struct {
	SpanEvaluationNames     []string `json:"span_evaluation_names"`
	TraceEvaluationNames    []string `json:"trace_evaluation_names"`
	DocumentEvaluationNames []string `json:"document_evaluation_names"`
}

type ExportResponseDTO struct {
	SpanEvaluations     []evalModel.SpanEvaluationRow     `json:"span_evaluations"`
	DocumentEvaluations []evalModel.DocumentEvaluationRow `json:"document_evaluations"`
}

type ArchiveResponseDTO struct {
	Archived bool `json:"archived"`
	// Whether the project's evaluations were written to the store
	Flushed bool `json:"flushed"`
}

// IngestEvaluationsRequestDTO represents a batch of evaluations for one project
// @swagger:model IngestEvaluationsRequestDTO
type IngestEvaluationsRequestDTO struct {
	// Defaults to the default project when empty
	ProjectName string                 `json:"project_name"`
	Evaluations []evalModel.Evaluation `json:"evaluations"`
}

type IngestEvaluationsResponseDTO struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

func toProjectDTO(p *project.Project) ProjectDTO {
	return ProjectDTO{Id: p.ID.String(), Name: p.Name, Archived: p.IsArchived()}
}

func toSpanDTO(record *traceModel.SpanRecord) SpanDTO {
	span := record.Span
	dto := SpanDTO{
		SpanID:             span.SpanID,
		TraceID:            span.TraceID,
		ParentSpanID:       span.ParentSpanID,
		Name:               span.Name,
		SpanKind:           span.SpanKind,
		StartTime:          span.StartTime,
		Status:             StatusDTO{Code: string(span.Status.Code), Message: span.Status.Message},
		Attributes:         span.Attributes,
		Events:             make([]SpanEventDTO, len(span.Events)),
		ComputedAttributes: record.ComputedValues(),
	}
	if dto.Attributes == nil {
		dto.Attributes = map[string]interface{}{}
	}
	if !span.EndTime.IsZero() {
		endTime := span.EndTime
		dto.EndTime = &endTime
	}
	for i, event := range span.Events {
		dto.Events[i] = SpanEventDTO{Name: event.Name, Attributes: event.Attributes, Timestamp: event.Timestamp}
	}
	return dto
}

func toSpanDTOs(records []*traceModel.SpanRecord) []SpanDTO {
	dtos := make([]SpanDTO, len(records))
	for i, record := range records {
		dtos[i] = toSpanDTO(record)
	}
	return dtos
}

func toEvaluationDTOs(evaluations []evalModel.Evaluation) []EvaluationDTO {
	dtos := make([]EvaluationDTO, len(evaluations))
	for i, evaluation := range evaluations {
		dtos[i] = EvaluationDTO{
			Name:             evaluation.Name,
			SpanID:           evaluation.Subject.SpanID,
			TraceID:          evaluation.Subject.TraceID,
			DocumentPosition: evaluation.Subject.DocumentPosition,
			Score:            evaluation.Result.Score,
			Label:            evaluation.Result.Label,
			Explanation:      evaluation.Result.Explanation,
		}
	}
	return dtos
}

// toNullableScores maps the NaN placeholder for a missing score to nil, which JSON can carry.
func toNullableScores(scores []float64) []*float64 {
	nullable := make([]*float64, len(scores))
	for i := range scores {
		if !math.IsNaN(scores[i]) {
			nullable[i] = &scores[i]
		}
	}
	return nullable
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func optionalQuantile(value float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &value
}

func emptyIfNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
