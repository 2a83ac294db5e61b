package bootstrapper

const SpanEvaluationIndexName = "span_evaluation_index"
const DocumentEvaluationIndexName = "document_evaluation_index"

func evaluationProperties(extra map[string]interface{}) map[string]interface{} {
	properties := map[string]interface{}{
		"project_id": map[string]string{
			"type": "keyword",
		},
		"project_name": map[string]string{
			"type": "keyword",
		},
		"context": map[string]interface{}{
			"properties": map[string]interface{}{
				"span_id": map[string]string{
					"type": "keyword",
				},
			},
		},
		"name": map[string]string{
			"type": "keyword",
		},
		"score": map[string]string{
			"type": "double",
		},
		"label": map[string]string{
			"type": "keyword",
		},
		"explanation": map[string]string{
			"type": "text",
		},
	}
	for k, v := range extra {
		properties[k] = v
	}
	return properties
}

var spanEvaluationIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": evaluationProperties(nil),
	},
}

var documentEvaluationIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": evaluationProperties(map[string]interface{}{
			"document_position": map[string]string{
				"type": "integer",
			},
		}),
	},
}
