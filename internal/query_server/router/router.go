package router

import (
	"net/http"

	"github.com/Avi18971911/Beacon/internal/export"
	"github.com/Avi18971911/Beacon/internal/metrics"
	"github.com/Avi18971911/Beacon/internal/project"
	"github.com/Avi18971911/Beacon/internal/query_server/handler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func CreateRouter(
	registry *project.Registry,
	exporter export.EvaluationExporter,
	m *metrics.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle("/projects", handler.ProjectsHandler(registry, logger)).Methods("GET")

	p := r.PathPrefix("/projects/{project}").Subrouter()
	p.Handle("/spans", handler.SpansHandler(registry, logger)).Methods("GET")
	p.Handle("/traces/{traceID}", handler.TraceHandler(registry, logger)).Methods("GET")
	p.Handle("/spans/{spanID}/descendants", handler.DescendantsHandler(registry, logger)).Methods("GET")
	p.Handle("/spans/{spanID}/evaluations", handler.SpanEvaluationsHandler(registry, logger)).Methods("GET")
	p.Handle(
		"/spans/{spanID}/document_evaluations/{name}/scores",
		handler.DocumentScoresHandler(registry, logger),
	).Methods("GET")
	p.Handle("/summary", handler.SummaryHandler(registry, logger)).Methods("GET")
	p.Handle("/evaluations/names", handler.EvaluationNamesHandler(registry, logger)).Methods("GET")
	p.Handle(
		"/evaluations/export",
		handler.ExportEvaluationsHandler(registry, exporter, logger),
	).Methods("GET")
	p.Handle("/archive", handler.ArchiveHandler(registry, exporter, logger)).Methods("POST")

	r.Handle("/v1/evaluations", handler.IngestEvaluationsHandler(registry, m, logger)).Methods("POST")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	return r
}
