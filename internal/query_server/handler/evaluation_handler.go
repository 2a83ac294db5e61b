package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Avi18971911/Beacon/internal/export"
	"github.com/Avi18971911/Beacon/internal/metrics"
	"github.com/Avi18971911/Beacon/internal/project"
	evalModel "github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// IngestEvaluationsHandler creates a handler accepting a batch of evaluations.
// @Summary Ingest evaluations.
// @Tags evaluations
// @Accept json
// @Produce json
// @Param evaluations body IngestEvaluationsRequestDTO true "The evaluations and their project"
// @Success 202 {object} IngestEvaluationsResponseDTO "Evaluations without a valid subject are dropped"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Router /v1/evaluations [post]
func IngestEvaluationsHandler(
	registry *project.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(r.Body, logger)
		var req IngestEvaluationsRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("Error encountered when decoding request body", zap.Error(err))
			HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
			return
		}

		p := registry.GetOrCreate(req.ProjectName)
		var res IngestEvaluationsResponseDTO
		for _, evaluation := range req.Evaluations {
			kind := evaluation.Subject.Kind()
			m.EvaluationsReceived.WithLabelValues(p.Name, kind.String()).Inc()
			if kind == evalModel.InvalidSubject {
				m.EvaluationsDropped.WithLabelValues(p.Name).Inc()
				res.Dropped++
			} else {
				res.Accepted++
			}
			p.AddEval(evaluation)
		}
		writeJSON(w, http.StatusAccepted, res, logger)
	}
}

// SpanEvaluationsHandler creates a handler returning the evaluations attached to a span.
// @Summary Get the span and document evaluations of a span.
// @Tags evaluations
// @Produce json
// @Success 200 {object} SpanEvaluationsResponseDTO "Evaluations sorted by name"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/spans/{spanID}/evaluations [get]
func SpanEvaluationsHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		spanID := mux.Vars(r)["spanID"]
		writeJSON(w, http.StatusOK, SpanEvaluationsResponseDTO{
			Evaluations:         toEvaluationDTOs(p.GetEvaluationsBySpanID(spanID)),
			DocumentEvaluations: toEvaluationDTOs(p.GetDocumentEvaluationsBySpanID(spanID)),
		}, logger)
	}
}

// DocumentScoresHandler creates a handler returning one score per retrieved document of a span.
// @Summary Get document evaluation scores.
// @Tags evaluations
// @Produce json
// @Success 200 {object} DocumentScoresResponseDTO "Scores by document position, null where missing"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/spans/{spanID}/document_evaluations/{name}/scores [get]
func DocumentScoresHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		vars := mux.Vars(r)
		spanID := vars["spanID"]
		scores := p.GetDocumentEvaluationScores(spanID, vars["name"], p.GetNumDocuments(spanID))
		writeJSON(w, http.StatusOK, DocumentScoresResponseDTO{Scores: toNullableScores(scores)}, logger)
	}
}

// EvaluationNamesHandler creates a handler listing the evaluation names of a project.
// @Summary Get evaluation names.
// @Tags evaluations
// @Produce json
// @Param span_id query string false "Restrict document evaluation names to this span"
// @Success 200 {object} EvaluationNamesResponseDTO "Sorted names per subject kind"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/evaluations/names [get]
func EvaluationNamesHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		var spanID *string
		if raw := r.URL.Query().Get("span_id"); raw != "" {
			spanID = &raw
		}
		writeJSON(w, http.StatusOK, EvaluationNamesResponseDTO{
			SpanEvaluationNames:     emptyIfNil(p.GetSpanEvaluationNames()),
			TraceEvaluationNames:    emptyIfNil(p.GetTraceEvaluationNames()),
			DocumentEvaluationNames: emptyIfNil(p.GetDocumentEvaluationNames(spanID)),
		}, logger)
	}
}

// ExportEvaluationsHandler creates a handler returning the span and document evaluation
// tables of a project.
// @Summary Export evaluations.
// @Tags evaluations
// @Produce json
// @Success 200 {object} ExportResponseDTO "Rows sorted by name, span id and document position"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/evaluations/export [get]
func ExportEvaluationsHandler(
	registry *project.Registry,
	exporter export.EvaluationExporter,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		tables := exporter.Tables(p)
		writeJSON(w, http.StatusOK, ExportResponseDTO{
			SpanEvaluations:     emptyIfNil(tables.SpanEvaluations),
			DocumentEvaluations: emptyIfNil(tables.DocumentEvaluations),
		}, logger)
	}
}
