// Package project is the in-memory materialized view of a project's spans and evaluations.
package project

import (
	"sync/atomic"
	"time"

	evalModel "github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	evalService "github.com/Avi18971911/Beacon/internal/project/evaluation/service"
	traceModel "github.com/Avi18971911/Beacon/internal/project/trace/model"
	traceService "github.com/Avi18971911/Beacon/internal/project/trace/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Project composes one trace index and one evaluation index. It never joins across them.
type Project struct {
	ID   uuid.UUID
	Name string

	traces      *traceService.TraceIndex
	evaluations *evalService.EvaluationIndex
	archived    atomic.Bool
}

func NewProject(name string, sketchRelativeAccuracy float64, logger *zap.Logger) *Project {
	projectLogger := logger.With(zap.String("project", name))
	return &Project{
		ID:          uuid.New(),
		Name:        name,
		traces:      traceService.NewTraceIndex(sketchRelativeAccuracy, projectLogger),
		evaluations: evalService.NewEvaluationIndex(projectLogger),
	}
}

func (p *Project) AddSpan(span traceModel.Span) {
	p.traces.Add(span)
}

func (p *Project) AddEval(evaluation evalModel.Evaluation) {
	p.evaluations.Add(evaluation)
}

func (p *Project) GetSpan(spanID string) (*traceModel.SpanRecord, bool) {
	return p.traces.Get(spanID)
}

func (p *Project) GetSpans(query traceService.SpanQuery) []*traceModel.SpanRecord {
	return p.traces.GetSpans(query)
}

func (p *Project) GetTrace(traceID string) []*traceModel.SpanRecord {
	return p.traces.GetTrace(traceID)
}

func (p *Project) GetDescendantSpans(spanID string) []*traceModel.SpanRecord {
	return p.traces.GetDescendantSpans(spanID)
}

func (p *Project) GetNumDocuments(spanID string) int {
	return p.traces.GetNumDocuments(spanID)
}

func (p *Project) RootSpanLatencyQuantile(probability float64) (float64, bool) {
	return p.traces.RootSpanLatencyQuantile(probability)
}

func (p *Project) LatencyRankPercent(latencyMs float64) (float64, bool) {
	return p.traces.LatencyRankPercent(latencyMs)
}

func (p *Project) SpanCount(start, stop *time.Time) int {
	return p.traces.SpanCount(start, stop)
}

func (p *Project) TraceCount(start, stop *time.Time) int {
	return p.traces.TraceCount(start, stop)
}

func (p *Project) RightOpenTimeRange() (time.Time, time.Time, bool) {
	return p.traces.RightOpenTimeRange()
}

func (p *Project) TokenCountTotal() float64 {
	return p.traces.TokenCountTotal()
}

func (p *Project) GetEvaluationsBySpanID(spanID string) []evalModel.Evaluation {
	return p.evaluations.GetEvaluationsBySpanID(spanID)
}

func (p *Project) GetEvaluationsByTraceID(traceID string) []evalModel.Evaluation {
	return p.evaluations.GetEvaluationsByTraceID(traceID)
}

func (p *Project) GetDocumentEvaluationsBySpanID(spanID string) []evalModel.Evaluation {
	return p.evaluations.GetDocumentEvaluationsBySpanID(spanID)
}

func (p *Project) GetDocumentEvaluationScores(spanID, name string, numDocuments int) []float64 {
	return p.evaluations.GetDocumentEvaluationScores(spanID, name, numDocuments)
}

func (p *Project) GetSpanEvaluationNames() []string {
	return p.evaluations.GetSpanEvaluationNames()
}

func (p *Project) GetTraceEvaluationNames() []string {
	return p.evaluations.GetTraceEvaluationNames()
}

func (p *Project) GetDocumentEvaluationNames(spanID *string) []string {
	return p.evaluations.GetDocumentEvaluationNames(spanID)
}

func (p *Project) GetSpanEvaluationLabels(name string) []string {
	return p.evaluations.GetSpanEvaluationLabels(name)
}

func (p *Project) GetSpanEvaluationSpanIDs(name string) []string {
	return p.evaluations.GetSpanEvaluationSpanIDs(name)
}

func (p *Project) GetDocumentEvaluationSpanIDs(name string) []string {
	return p.evaluations.GetDocumentEvaluationSpanIDs(name)
}

func (p *Project) ExportEvaluations() evalModel.ExportedEvaluations {
	return p.evaluations.Export()
}

// EvaluationsVersion changes whenever an evaluation is stored.
func (p *Project) EvaluationsVersion() uint64 {
	return p.evaluations.Version()
}

// LastUpdatedAt is the later of the two indices' last mutation, zero if neither has been
// written to.
func (p *Project) LastUpdatedAt() time.Time {
	traces := p.traces.LastUpdatedAt()
	evaluations := p.evaluations.LastUpdatedAt()
	if evaluations.After(traces) {
		return evaluations
	}
	return traces
}

// Archive marks the project as no longer expecting writes. It does not release data and
// cannot be undone.
func (p *Project) Archive() {
	p.archived.Store(true)
}

func (p *Project) IsArchived() bool {
	return p.archived.Load()
}
