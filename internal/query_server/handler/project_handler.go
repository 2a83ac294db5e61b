package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Avi18971911/Beacon/internal/export"
	"github.com/Avi18971911/Beacon/internal/project"
	traceService "github.com/Avi18971911/Beacon/internal/project/trace/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var ErrInvalidTimeRange = errors.New("start must not be after stop")

// ProjectsHandler creates a handler listing every project.
// @Summary List projects.
// @Tags projects
// @Produce json
// @Success 200 {object} ProjectsResponseDTO "Projects sorted by name"
// @Router /projects [get]
func ProjectsHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects := registry.Projects()
		res := ProjectsResponseDTO{Projects: make([]ProjectDTO, len(projects))}
		for i, p := range projects {
			res.Projects[i] = toProjectDTO(p)
		}
		writeJSON(w, http.StatusOK, res, logger)
	}
}

// SpansHandler creates a handler for querying the spans of a project.
// @Summary Get spans, most recent first.
// @Tags spans
// @Produce json
// @Param start query string false "Inclusive lower bound on start time (RFC 3339)"
// @Param stop query string false "Exclusive upper bound on start time (RFC 3339)"
// @Param root_spans_only query bool false "Only return spans without a parent"
// @Param span_id query []string false "Only return these spans, in this order"
// @Success 200 {object} SpansResponseDTO "Matching spans"
// @Failure 400 {object} ErrorMessage "Invalid query"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/spans [get]
func SpansHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		query, err := parseSpanQuery(r)
		if err != nil {
			logger.Debug("Rejecting span query", zap.Error(err))
			HttpError(w, err.Error(), http.StatusBadRequest, logger)
			return
		}
		writeJSON(w, http.StatusOK, SpansResponseDTO{Spans: toSpanDTOs(p.GetSpans(query))}, logger)
	}
}

// TraceHandler creates a handler returning the spans and evaluations of one trace.
// @Summary Get a trace.
// @Tags spans
// @Produce json
// @Success 200 {object} TraceResponseDTO "The trace's spans in ingestion order"
// @Failure 404 {object} ErrorMessage "Project or trace not found"
// @Router /projects/{project}/traces/{traceID} [get]
func TraceHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		traceID := mux.Vars(r)["traceID"]
		spans := p.GetTrace(traceID)
		if len(spans) == 0 {
			HttpError(w, "Trace not found", http.StatusNotFound, logger)
			return
		}
		writeJSON(w, http.StatusOK, TraceResponseDTO{
			TraceID:     traceID,
			Spans:       toSpanDTOs(spans),
			Evaluations: toEvaluationDTOs(p.GetEvaluationsByTraceID(traceID)),
		}, logger)
	}
}

// DescendantsHandler creates a handler returning every span below the given span.
// @Summary Get the descendants of a span.
// @Tags spans
// @Produce json
// @Success 200 {object} SpansResponseDTO "Descendant spans, depth first"
// @Failure 404 {object} ErrorMessage "Project or span not found"
// @Router /projects/{project}/spans/{spanID}/descendants [get]
func DescendantsHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		spanID := mux.Vars(r)["spanID"]
		if _, found := p.GetSpan(spanID); !found {
			HttpError(w, "Span not found", http.StatusNotFound, logger)
			return
		}
		writeJSON(w, http.StatusOK, SpansResponseDTO{Spans: toSpanDTOs(p.GetDescendantSpans(spanID))}, logger)
	}
}

// SummaryHandler creates a handler returning aggregate statistics of a project.
// @Summary Get project statistics.
// @Tags projects
// @Produce json
// @Success 200 {object} SummaryDTO "Counts, token total and root latency quantiles"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/summary [get]
func SummaryHandler(registry *project.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		summary := SummaryDTO{
			Name:            p.Name,
			SpanCount:       p.SpanCount(nil, nil),
			TraceCount:      p.TraceCount(nil, nil),
			TokenCountTotal: p.TokenCountTotal(),
			LatencyP50Ms:    optionalQuantile(p.RootSpanLatencyQuantile(0.5)),
			LatencyP99Ms:    optionalQuantile(p.RootSpanLatencyQuantile(0.99)),
			LastUpdatedAt:   optionalTime(p.LastUpdatedAt()),
			Archived:        p.IsArchived(),
		}
		if start, stop, ok := p.RightOpenTimeRange(); ok {
			summary.StartTime = &start
			summary.StopTime = &stop
		}
		writeJSON(w, http.StatusOK, summary, logger)
	}
}

// ArchiveHandler creates a handler marking a project archived and writing its evaluations
// to the store when one is configured.
// @Summary Archive a project.
// @Tags projects
// @Produce json
// @Success 200 {object} ArchiveResponseDTO "The project is archived"
// @Failure 404 {object} ErrorMessage "Project not found"
// @Router /projects/{project}/archive [post]
func ArchiveHandler(
	registry *project.Registry,
	exporter export.EvaluationExporter,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := lookupProject(w, r, registry, logger)
		if !ok {
			return
		}
		p.Archive()
		logger.Info("Archived project", zap.String("project", p.Name))

		flushed := false
		err := exporter.Flush(r.Context(), p)
		switch {
		case err == nil:
			flushed = true
		case errors.Is(err, export.ErrStoreDisabled):
		default:
			logger.Error("Failed to flush evaluations of archived project", zap.String("project", p.Name), zap.Error(err))
		}
		writeJSON(w, http.StatusOK, ArchiveResponseDTO{Archived: true, Flushed: flushed}, logger)
	}
}

func parseSpanQuery(r *http.Request) (traceService.SpanQuery, error) {
	values := r.URL.Query()
	var query traceService.SpanQuery
	var err error
	if query.StartTime, err = parseOptionalTime(values.Get("start"), "start"); err != nil {
		return query, err
	}
	if query.StopTime, err = parseOptionalTime(values.Get("stop"), "stop"); err != nil {
		return query, err
	}
	if query.StartTime != nil && query.StopTime != nil && query.StartTime.After(*query.StopTime) {
		return query, ErrInvalidTimeRange
	}
	if raw := values.Get("root_spans_only"); raw != "" {
		if query.RootSpansOnly, err = strconv.ParseBool(raw); err != nil {
			return query, fmt.Errorf("invalid root_spans_only %q", raw)
		}
	}
	query.SpanIDs = values["span_id"]
	return query, nil
}

func parseOptionalTime(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s time %q, expected RFC 3339", name, raw)
	}
	return &t, nil
}
