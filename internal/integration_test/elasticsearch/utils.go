package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/Beacon/internal/db/elasticsearch/bootstrapper"
	"github.com/elastic/go-elasticsearch/v8"
)

var indices = []string{
	bootstrapper.SpanIndexName,
	bootstrapper.SpanEvaluationIndexName,
	bootstrapper.DocumentEvaluationIndexName,
}

func deleteAllDocuments(es *elasticsearch.Client) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
	}
	queryJSON, _ := json.Marshal(query)
	res, err := es.DeleteByQuery(indices, bytes.NewReader(queryJSON), es.DeleteByQuery.WithRefresh(true))
	if err != nil {
		return fmt.Errorf("failed to delete documents by query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to delete documents by query: %s", res.String())
	}
	return nil
}

func countProjectDocuments(es *elasticsearch.Client, index, projectID string) (int, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"project_id": projectID,
			},
		},
	}
	queryJSON, _ := json.Marshal(query)
	res, err := es.Count(
		es.Count.WithIndex(index),
		es.Count.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("failed to count documents: %s", res.String())
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return body.Count, nil
}
