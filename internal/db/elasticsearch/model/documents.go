package model

import (
	"fmt"

	evalModel "github.com/Avi18971911/Beacon/internal/project/evaluation/model"
	traceModel "github.com/Avi18971911/Beacon/internal/project/trace/model"
)

// SpanDocument is a span as stored in the span index. Re-sending a span overwrites the
// stored copy since the document id is derived from the project and span ids.
type SpanDocument struct {
	Id          string `json:"_id"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	traceModel.Span
}

type SpanEvaluationDocument struct {
	Id          string `json:"_id"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	evalModel.SpanEvaluationRow
}

type DocumentEvaluationDocument struct {
	Id          string `json:"_id"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	evalModel.DocumentEvaluationRow
}

func NewSpanDocument(projectID, projectName string, span traceModel.Span) SpanDocument {
	return SpanDocument{
		Id:          projectID + ":" + span.SpanID,
		ProjectID:   projectID,
		ProjectName: projectName,
		Span:        span,
	}
}

func NewSpanEvaluationDocument(
	projectID, projectName string,
	row evalModel.SpanEvaluationRow,
) SpanEvaluationDocument {
	return SpanEvaluationDocument{
		Id:                projectID + ":" + row.Name + ":" + row.SpanID,
		ProjectID:         projectID,
		ProjectName:       projectName,
		SpanEvaluationRow: row,
	}
}

func NewDocumentEvaluationDocument(
	projectID, projectName string,
	row evalModel.DocumentEvaluationRow,
) DocumentEvaluationDocument {
	return DocumentEvaluationDocument{
		Id:                    fmt.Sprintf("%s:%s:%s:%d", projectID, row.Name, row.SpanID, row.DocumentPosition),
		ProjectID:             projectID,
		ProjectName:           projectName,
		DocumentEvaluationRow: row,
	}
}
